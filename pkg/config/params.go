package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/phrp/pkg/core"
	"github.com/ChrisMcGann/phrp/pkg/filter"
)

// SearchParams holds what a search tool parameter file says about the search.
type SearchParams struct {
	Enzyme             core.EnzymeRule
	PrecursorTolerance float64
	ToleranceUnit      string // "ppm" or "Da"
	Mods               []ParamMod
	Values             map[string]string // every key=value line, last one wins
}

// ParamMod is one StaticMod= / DynamicMod= entry.
type ParamMod struct {
	Mass     float64
	MassText string
	Residues string // amino acids and terminus markers
	Kind     core.ModificationKind
	Name     string
	Line     int
}

// ParseSearchParams reads an MS-GF+ style "key=value" parameter file.
// Lines starting with '#' and trailing "# ..." comments are ignored.
func ParseSearchParams(r io.Reader, path string) (*SearchParams, error) {
	params := &SearchParams{
		Enzyme: core.Trypsin,
		Values: make(map[string]string),
	}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%s line %d: expected key=value: %s", path, lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		params.Values[key] = value

		switch strings.ToLower(key) {
		case "enzymeid", "enzyme":
			rule, err := core.LookupEnzyme(value)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, lineNum, err)
			}
			params.Enzyme = rule
		case "precursormasstolerance", "pmtolerance", "tolerance":
			tol, unit, err := parseTolerance(value)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, lineNum, err)
			}
			params.PrecursorTolerance, params.ToleranceUnit = tol, unit
		case "staticmod", "dynamicmod", "custommod":
			if strings.EqualFold(value, "none") {
				continue
			}
			mod, err := ParseModEntry(value)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, lineNum, err)
			}
			mod.Line = lineNum
			params.Mods = append(params.Mods, mod)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	return params, nil
}

// parseTolerance reads "20ppm", "0.5Da" or "10ppm,20ppm" (left,right; the larger wins).
func parseTolerance(s string) (float64, string, error) {
	var best float64
	unit := ""
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		u := "Da"
		num := part
		switch lower := strings.ToLower(part); {
		case strings.HasSuffix(lower, "ppm"):
			u, num = "ppm", part[:len(part)-3]
		case strings.HasSuffix(lower, "da"):
			num = part[:len(part)-2]
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, "", fmt.Errorf("invalid tolerance '%s'", s)
		}
		if v > best {
			best = v
		}
		unit = u
	}
	return best, unit, nil
}

// ParseModEntry reads "<mass|composition>,<residues>,<fix|opt>,<position>,<name>".
// Position is one of any, N-term, C-term, Prot-N-term, Prot-C-term.
func ParseModEntry(entry string) (ParamMod, error) {
	parts := strings.Split(entry, ",")
	if len(parts) < 4 {
		return ParamMod{}, fmt.Errorf("invalid modification entry '%s': expected at least 4 fields", entry)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	mass, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		m, ok := core.ParseComposition(parts[0])
		if !ok {
			return ParamMod{}, fmt.Errorf("invalid modification mass or composition '%s'", parts[0])
		}
		mass = m
	}

	residues := parts[1]
	if residues == "*" {
		residues = ""
	}

	fixed := false
	switch strings.ToLower(parts[2]) {
	case "fix", "fixed", "static":
		fixed = true
	case "opt", "dynamic":
	default:
		return ParamMod{}, fmt.Errorf("invalid modification type '%s'", parts[2])
	}

	mod := ParamMod{
		Mass:     mass,
		MassText: strconv.FormatFloat(core.RoundFloat(mass, core.MassPrecision), 'f', -1, 64),
	}
	if len(parts) > 4 {
		mod.Name = parts[4]
	}

	switch strings.ToLower(parts[3]) {
	case "any":
		mod.Residues = residues
		mod.Kind = core.KindDynamic
		if fixed {
			mod.Kind = core.KindStatic
		}
	case "n-term":
		mod.Residues = string(core.PeptideNTerminus) + residues
		mod.Kind = core.KindDynamic
		if fixed {
			mod.Kind = core.KindTerminalPeptideStatic
		}
	case "c-term":
		mod.Residues = string(core.PeptideCTerminus) + residues
		mod.Kind = core.KindDynamic
		if fixed {
			mod.Kind = core.KindTerminalPeptideStatic
		}
	case "prot-n-term":
		mod.Residues = string(core.ProteinNTerminus) + residues
		mod.Kind = core.KindDynamic
		if fixed {
			mod.Kind = core.KindProteinTerminusStatic
		}
	case "prot-c-term":
		mod.Residues = string(core.ProteinCTerminus) + residues
		mod.Kind = core.KindDynamic
		if fixed {
			mod.Kind = core.KindProteinTerminusStatic
		}
	default:
		return ParamMod{}, fmt.Errorf("invalid modification position '%s'", parts[3])
	}

	return mod, nil
}

// ApplyTolerance uses the search precursor tolerance as the default mass
// error window: ppm tolerances fill MaxAbsPPM, Da tolerances fill MaxAbsDa.
// A limit already set on f is kept. It reports whether f changed.
func (p *SearchParams) ApplyTolerance(f *filter.Config) bool {
	if p.PrecursorTolerance <= 0 {
		return false
	}
	switch p.ToleranceUnit {
	case "ppm":
		if f.MaxAbsPPM > 0 || f.MaxAbsDa > 0 {
			return false
		}
		f.MaxAbsPPM = p.PrecursorTolerance
	case "Da":
		if f.MaxAbsDa > 0 || f.MaxAbsPPM > 0 {
			return false
		}
		f.MaxAbsDa = p.PrecursorTolerance
	default:
		return false
	}
	return true
}

// Seed adds the parameter file modifications to a catalog. Names are mapped
// to mass correction tags where the catalog knows them.
func (p *SearchParams) Seed(catalog *core.ModificationCatalog) error {
	for _, m := range p.Mods {
		tag := ""
		if m.Name != "" {
			if t, ok := catalog.TagForName(m.Name); ok {
				if known, ok := catalog.TagMass(t); ok && core.MassesEqual(known, m.Mass) {
					tag = t
				}
			}
		}

		symbol := rune(core.NoSymbol)
		def := core.NewModificationDefinition(symbol, m.Mass, m.Residues, m.Kind, tag)
		def.MassText = m.MassText
		if _, err := catalog.Add(def); err != nil {
			return fmt.Errorf("line %d: %w", m.Line, err)
		}
	}
	return nil
}
