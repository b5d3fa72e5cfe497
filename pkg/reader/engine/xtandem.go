package engine

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// X!Tandem writes one <group type="model"> per spectrum. Inside it every
// <protein> repeats the <domain> elements of the peptides it contains, and a
// trailing support group carries the spectrum description.
var xTandemSchema = &Schema{
	Type:             XTandem,
	Suffixes:         []string{"_xt.xml", ".xml"},
	HeaderTokens:     [][]string{{"<bioml"}},
	NeedsHeader:      true,
	XML:              true,
	ModStyle:         ModStyleNone,
	InlineStaticMods: true,
	ScoreColumns:     xTandemScoreColumns,
}

var xTandemScoreColumns = []string{"hyperscore", "nextscore", "expect", "b_score", "y_score", "missed_cleavages"}

var descriptionScanRegex = regexp.MustCompile(`(?i)scan[=: ]\s*(\d+)`)

type xtDomain struct {
	key      string
	pre      string
	seq      string
	post     string
	start    int
	mh       string
	delta    string
	scores   map[string]string
	mods     []ExplicitMod
	proteins []string
	starts   []string
	ends     []string
}

type xtGroup struct {
	id          string
	mh          string
	z           string
	description string
	domains     []*xtDomain
	byKey       map[string]*xtDomain
}

// xtandemReader streams X!Tandem bioml output
type xtandemReader struct {
	decoder *xml.Decoder
	schema  *Schema
	pending []*Row
	current *Row
	err     error
	done    bool
	groups  int
}

func newXTandemReader(r io.Reader, schema *Schema) *xtandemReader {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Strict = false
	return &xtandemReader{decoder: decoder, schema: schema}
}

// Next advances to the next peptide hit.
func (r *xtandemReader) Next() bool {
	r.current = nil
	for len(r.pending) == 0 {
		if r.done || r.err != nil {
			return false
		}
		if err := r.readGroup(); err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
			r.done = true
		}
	}
	r.current = r.pending[0]
	r.pending = r.pending[1:]
	return true
}

// Row returns the current row
func (r *xtandemReader) Row() *Row {
	return r.current
}

// Err returns any error encountered during reading
func (r *xtandemReader) Err() error {
	return r.err
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// readGroup decodes tokens until one model group has been consumed and its
// rows queued.
func (r *xtandemReader) readGroup() error {
	var (
		group       *xtGroup
		depth       int // nesting of <group> inside the model group
		protein     string
		domain      *xtDomain
		inDescNote  bool
		description strings.Builder
	)

	for {
		tok, err := r.decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			line, _ := r.decoder.InputPos()
			return fmt.Errorf("line %d: %w", line, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "group":
				if group == nil {
					if attr(t, "type") != "model" {
						continue
					}
					r.groups++
					group = &xtGroup{
						id:    attr(t, "id"),
						mh:    attr(t, "mh"),
						z:     attr(t, "z"),
						byKey: make(map[string]*xtDomain),
					}
					continue
				}
				depth++
			case "protein":
				if group != nil {
					protein = attr(t, "label")
				}
			case "domain":
				if group != nil {
					domain = newXTDomain(t)
					domain.proteins = append(domain.proteins, protein)
				}
			case "aa":
				if domain != nil {
					if mod, ok := xtModification(t, domain.start); ok {
						domain.mods = append(domain.mods, mod)
					}
				}
			case "note":
				if group != nil && depth > 0 && strings.EqualFold(attr(t, "label"), "description") {
					inDescNote = true
					description.Reset()
				}
			}

		case xml.CharData:
			if inDescNote {
				description.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "note":
				if inDescNote {
					group.description = strings.TrimSpace(description.String())
					inDescNote = false
				}
			case "domain":
				if domain != nil {
					group.addDomain(domain)
					domain = nil
				}
			case "group":
				if group == nil {
					continue
				}
				if depth > 0 {
					depth--
					continue
				}
				line, _ := r.decoder.InputPos()
				r.pending = append(r.pending, r.groupRows(group, line)...)
				return nil
			}
		}
	}
}

func newXTDomain(se xml.StartElement) *xtDomain {
	d := &xtDomain{
		pre:    attr(se, "pre"),
		seq:    strings.TrimSpace(attr(se, "seq")),
		post:   attr(se, "post"),
		mh:     attr(se, "mh"),
		delta:  attr(se, "delta"),
		scores: make(map[string]string),
	}
	d.start, _ = strconv.Atoi(attr(se, "start"))
	d.starts = append(d.starts, attr(se, "start"))
	d.ends = append(d.ends, attr(se, "end"))
	for _, name := range xTandemScoreColumns {
		if v := attr(se, name); v != "" {
			d.scores[name] = v
		}
	}
	return d
}

// xtModification converts an <aa type="M" at="60" modified="15.995"/>
// element. Point mutations without a mass are ignored.
func xtModification(se xml.StartElement, domainStart int) (ExplicitMod, bool) {
	mass, err := strconv.ParseFloat(strings.TrimSpace(attr(se, "modified")), 64)
	if err != nil {
		return ExplicitMod{}, false
	}
	at, err := strconv.Atoi(attr(se, "at"))
	if err != nil {
		return ExplicitMod{}, false
	}
	pos := at - domainStart + 1
	return ExplicitMod{Position: pos, EndPosition: pos, Mass: mass, HasMass: true}, true
}

// addDomain merges domains repeated under several proteins.
func (g *xtGroup) addDomain(d *xtDomain) {
	var key strings.Builder
	key.WriteString(d.seq)
	for _, m := range d.mods {
		fmt.Fprintf(&key, "|%d:%s", m.Position, formatMass(m.Mass))
	}
	d.key = key.String()

	if existing, ok := g.byKey[d.key]; ok {
		existing.proteins = append(existing.proteins, d.proteins...)
		existing.starts = append(existing.starts, d.starts...)
		existing.ends = append(existing.ends, d.ends...)
		return
	}
	g.byKey[d.key] = d
	g.domains = append(g.domains, d)
}

// xtFlank converts the residues around a domain to a single flank residue;
// X!Tandem writes '[' and ']' at protein ends.
func xtFlank(s string, last bool) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var r byte
	if last {
		r = s[len(s)-1]
	} else {
		r = s[0]
	}
	if r == '[' || r == ']' {
		return "-"
	}
	return string(r)
}

func (r *xtandemReader) groupRows(g *xtGroup, line int) []*Row {
	scan := g.id
	if m := descriptionScanRegex.FindStringSubmatch(g.description); m != nil {
		scan = m[1]
	}

	rows := make([]*Row, 0, len(g.domains))
	for _, d := range g.domains {
		row := Row{
			Line:   line,
			Raw:    fmt.Sprintf("group %s: %s", g.id, d.seq),
			Fields: make(map[string]string),
			Scores: d.scores,
			Mods:   d.mods,
		}
		if err := setScanAndCharge(&row, scan, g.z); err != nil {
			row.Err = err
			rows = append(rows, &row)
			continue
		}
		row.Fields[FieldPeptide] = joinPeptide(xtFlank(d.pre, true), d.seq, xtFlank(d.post, false))
		row.Fields[FieldProtein] = strings.Join(d.proteins, ";")
		row.Fields[FieldProteinStart] = strings.Join(d.starts, ";")
		row.Fields[FieldProteinEnd] = strings.Join(d.ends, ";")
		if err := setMassFrom(&row, FieldPrecursorMass, g.mh, 1); err != nil {
			row.Err = err
		}
		if err := setMassFrom(&row, FieldTheoreticalMass, d.mh, 1); err != nil {
			row.Err = err
		}
		if d.delta != "" {
			row.Fields[FieldDeltaMass] = strings.TrimSpace(d.delta)
		}
		rows = append(rows, &row)
	}
	return rows
}
