// Package engine maps the native output of each search engine onto a common
// row representation. Every engine is a column schema plus a pure mapping
// function; there is no shared behaviour beyond producing named fields.
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/phrp/pkg/core"
)

// ResultType identifies the search engine that produced a result file.
type ResultType int

const (
	Unknown ResultType = iota
	Sequest
	XTandem
	Inspect
	MSGFPlus
	MSAlign
	MODa
	MODPlus
	MSPathFinder
	TopPIC
	MaxQuant
)

var resultTypeNames = map[ResultType]string{
	Unknown:      "Unknown",
	Sequest:      "Sequest",
	XTandem:      "XTandem",
	Inspect:      "Inspect",
	MSGFPlus:     "MSGFPlus",
	MSAlign:      "MSAlign",
	MODa:         "MODa",
	MODPlus:      "MODPlus",
	MSPathFinder: "MSPathFinder",
	TopPIC:       "TopPIC",
	MaxQuant:     "MaxQuant",
}

// String returns the string representation of ResultType
func (t ResultType) String() string {
	if n, ok := resultTypeNames[t]; ok {
		return n
	}
	return "Unknown"
}

// ParseResultType matches a result type name case-insensitively.
func ParseResultType(s string) (ResultType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "msgf+", "msgfdb", "msgf":
		return MSGFPlus, true
	case "x!tandem", "tandem":
		return XTandem, true
	}
	for t, n := range resultTypeNames {
		if strings.ToLower(n) == s && t != Unknown {
			return t, true
		}
	}
	return Unknown, false
}

// Canonical field names produced by every mapping
const (
	FieldScan            = "Scan"
	FieldCharge          = "Charge"
	FieldPeptide         = "Peptide"         // annotated, X.SEQ.Y
	FieldProtein         = "Protein"         // ';' separated
	FieldProteinStart    = "ProteinStart"    // residue numbers, ';' separated like FieldProtein
	FieldProteinEnd      = "ProteinEnd"      // ';' separated like FieldProtein
	FieldTheoreticalMass = "TheoreticalMass" // neutral monoisotopic mass reported by the engine
	FieldPrecursorMass   = "PrecursorMass"   // observed neutral precursor mass
	FieldDeltaMass       = "DeltaMass"       // observed - theoretical, Da
	FieldCollisionMode   = "CollisionMode"
)

// ExplicitMod is a modification reported outside the peptide string.
type ExplicitMod struct {
	Position    int // 1-based; 0 for the N-terminus
	EndPosition int
	Mass        float64
	HasMass     bool
	Name        string
}

// Row is one raw record mapped to canonical fields.
type Row struct {
	Line   int
	Raw    string
	Fields map[string]string
	Scores map[string]string
	Mods   []ExplicitMod

	// Err is set when the record could not be mapped; the row is skipped.
	Err error
}

// Field returns a canonical field value.
func (r *Row) Field(name string) string {
	return r.Fields[name]
}

// Columns is one native record keyed by header name.
type Columns map[string]string

// Get returns the first non-empty value among the candidate column names.
func (c Columns) Get(names ...string) string {
	for _, n := range names {
		if v, ok := c[n]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Has reports whether any of the names is a column.
func (c Columns) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := c[n]; ok {
			return true
		}
	}
	return false
}

// MapFunc converts one native record into a row.
type MapFunc func(cols Columns) (Row, error)

// Schema describes one engine's native output.
type Schema struct {
	Type ResultType

	// Lower-case filename suffixes that identify the engine
	Suffixes []string

	// Header token sets; a header matches when every token of any set is present
	HeaderTokens [][]string

	// Suffixes that only count when the header also matches
	NeedsHeader bool

	// HeaderMarker is a column name that identifies the header line when
	// the file starts with a free-form preamble
	HeaderMarker string

	XML              bool
	ModStyle         ModStyle
	InlineStaticMods bool // fixed mods appear in the peptide string
	ScoreColumns     []string
	Map              MapFunc
}

// MatchesHeader reports whether a set of header columns belongs to the engine.
func (s *Schema) MatchesHeader(header []string) bool {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	for _, set := range s.HeaderTokens {
		all := true
		for _, tok := range set {
			if !have[tok] {
				all = false
				break
			}
		}
		if all && len(set) > 0 {
			return true
		}
	}
	return false
}

// Schemas lists every engine in detection order: the most specific suffixes first.
func Schemas() []*Schema {
	return []*Schema{
		topPICSchema,
		msPathFinderSchema,
		modPlusSchema,
		modaSchema,
		msAlignSchema,
		msgfPlusSchema,
		inspectSchema,
		sequestSchema,
		maxQuantSchema,
		xTandemSchema,
	}
}

// SchemaFor returns the schema of a result type.
func SchemaFor(t ResultType) (*Schema, bool) {
	for _, s := range Schemas() {
		if s.Type == t {
			return s, true
		}
	}
	return nil, false
}

// newRow starts a row with the engine's score columns copied over.
func newRow(cols Columns, scoreColumns []string) Row {
	row := Row{
		Fields: make(map[string]string),
		Scores: make(map[string]string),
	}
	for _, name := range scoreColumns {
		if v, ok := cols[name]; ok {
			row.Scores[name] = strings.TrimSpace(v)
		}
	}
	return row
}

// parseScan takes the first integer of values like "1234", "1234 1235" or "1234-1240".
func parseScan(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: invalid scan number '%s'", core.ErrMalformedRecord, s)
	}
	return strconv.Atoi(s[:end])
}

func parseCharge(s string) (int, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "+"))
	z, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("%w: invalid charge '%s'", core.ErrMalformedRecord, s)
		}
		z = int(f)
	}
	return z, nil
}

func parseMass(s string) (float64, error) {
	m, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid mass '%s'", core.ErrMalformedRecord, s)
	}
	return m, nil
}

func formatMass(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

// setScanAndCharge fills the two required integer fields.
func setScanAndCharge(row *Row, scan, charge string) error {
	n, err := parseScan(scan)
	if err != nil {
		return err
	}
	z, err := parseCharge(charge)
	if err != nil {
		return err
	}
	row.Fields[FieldScan] = strconv.Itoa(n)
	row.Fields[FieldCharge] = strconv.Itoa(z)
	return nil
}

// setMassFrom converts a reported mass with the given charge state (0 neutral,
// 1 M+H, >1 m/z) to a neutral mass field. Empty input leaves the field unset.
func setMassFrom(row *Row, field, value string, chargeFrom int) error {
	if value == "" {
		return nil
	}
	m, err := parseMass(value)
	if err != nil {
		return err
	}
	row.Fields[field] = formatMass(core.ConvoluteMass(m, chargeFrom, 0))
	return nil
}

// stripProteinDecoration removes "(pre=K,post=R)" style suffixes.
func stripProteinDecoration(p string) string {
	p = strings.TrimSpace(p)
	if idx := strings.Index(p, "(pre="); idx > 0 {
		p = p[:idx]
	}
	return strings.TrimSpace(p)
}

// joinPeptide builds X.SEQ.Y notation from separate columns.
func joinPeptide(prefix, seq, suffix string) string {
	return strings.TrimSpace(prefix) + "." + seq + "." + strings.TrimSpace(suffix)
}
