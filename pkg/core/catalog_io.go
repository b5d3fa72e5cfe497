package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// LoadModificationDefinitions reads a tab-delimited modification definitions
// file. Columns: symbol, mass, target residues, type, mass correction tag,
// affected atom; everything after the mass is optional. A header line and
// lines starting with '#' are skipped, unless '#' is the symbol of a definition.
func (c *ModificationCatalog) LoadModificationDefinitions(r io.Reader, path string) error {
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := scanner.Text()
		line := strings.TrimRight(raw, "\r\n")
		if strings.TrimSpace(line) == "" || isDefinitionComment(line) {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			return &CatalogLoadError{Path: path, Line: lineNum, Text: raw, Err: errors.New("expected at least 2 tab-separated fields (symbol, mass)")}
		}

		symbolStr := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			if lineNum == 1 {
				// header
				continue
			}
			return &CatalogLoadError{Path: path, Line: lineNum, Text: raw, Err: fmt.Errorf("invalid mass value '%s': %w", massStr, err)}
		}

		if utf8.RuneCountInString(symbolStr) != 1 {
			return &CatalogLoadError{Path: path, Line: lineNum, Text: raw, Err: fmt.Errorf("symbol '%s' must be a single character", symbolStr)}
		}
		symbol, _ := utf8.DecodeRuneInString(symbolStr)

		residues := ""
		if len(parts) > 2 {
			residues = strings.TrimSpace(parts[2])
			if residues == "*" {
				residues = ""
			}
		}

		kind := KindDynamic
		if symbol == NoSymbol {
			kind = KindStatic
		}
		if len(parts) > 3 && strings.TrimSpace(parts[3]) != "" {
			k, ok := ParseKind(parts[3])
			if !ok {
				return &CatalogLoadError{Path: path, Line: lineNum, Text: raw, Err: fmt.Errorf("invalid modification type '%s'", parts[3])}
			}
			kind = k
		}

		tag := ""
		if len(parts) > 4 {
			tag = strings.TrimSpace(parts[4])
		}

		atom := NoAtom
		if len(parts) > 5 {
			a := strings.TrimSpace(parts[5])
			if a != "" {
				atom, _ = utf8.DecodeRuneInString(a)
			}
		}
		if kind == KindIsotopic && atom == NoAtom {
			return &CatalogLoadError{Path: path, Line: lineNum, Text: raw, Err: errors.New("isotopic modification requires an affected atom")}
		}

		def := NewModificationDefinition(symbol, mass, residues, kind, tag)
		def.MassText = massStr
		def.AffectedAtom = atom
		if kind != KindDynamic && kind != KindUnknown {
			def.Symbol = NoSymbol
		}

		if _, err := c.Add(def); err != nil {
			return &CatalogLoadError{Path: path, Line: lineNum, Text: raw, Err: err}
		}
	}

	if err := scanner.Err(); err != nil {
		return &CatalogLoadError{Path: path, Line: lineNum, Err: fmt.Errorf("error reading file: %w", err)}
	}

	return nil
}

// isDefinitionComment reports whether a line is a comment. '#' is also a
// modification symbol, so "#<tab><mass>" is a definition.
func isDefinitionComment(line string) bool {
	if !strings.HasPrefix(strings.TrimSpace(line), "#") {
		return false
	}
	symbol, rest, ok := strings.Cut(line, "\t")
	if !ok || strings.TrimSpace(symbol) != "#" {
		return true
	}
	massStr, _, _ := strings.Cut(rest, "\t")
	_, err := strconv.ParseFloat(strings.TrimSpace(massStr), 64)
	return err != nil
}

// LoadMassCorrectionTags reads a tab-delimited mass correction tags file:
// tag name, monoisotopic mass and an optional affected atom.
func (c *ModificationCatalog) LoadMassCorrectionTags(r io.Reader, path string) error {
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			return &CatalogLoadError{Path: path, Line: lineNum, Text: raw, Err: errors.New("expected 2 tab-separated fields (tag, mass)")}
		}

		tag := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			if lineNum == 1 {
				continue
			}
			return &CatalogLoadError{Path: path, Line: lineNum, Text: raw, Err: fmt.Errorf("invalid mass value '%s': %w", massStr, err)}
		}

		atom := NoAtom
		if len(parts) > 2 {
			if a := strings.TrimSpace(parts[2]); a != "" {
				atom, _ = utf8.DecodeRuneInString(a)
			}
		}

		if err := c.AddKnownTag(tag, mass, atom); err != nil {
			return &CatalogLoadError{Path: path, Line: lineNum, Text: raw, Err: err}
		}
	}

	if err := scanner.Err(); err != nil {
		return &CatalogLoadError{Path: path, Line: lineNum, Err: fmt.Errorf("error reading file: %w", err)}
	}

	return nil
}

// WriteTo writes the catalog in the modification definitions file format.
func (c *ModificationCatalog) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64

	n, err := fmt.Fprintln(bw, "Symbol\tMass\tTargetResidues\tType\tMassCorrectionTag\tAffectedAtom")
	total += int64(n)
	if err != nil {
		return total, err
	}

	for _, d := range c.defs {
		residues := d.TargetResidues
		if residues == "" {
			residues = "*"
		}
		n, err := fmt.Fprintf(bw, "%c\t%s\t%s\t%s\t%s\t%c\n",
			d.Symbol, d.MassText, residues, d.Kind.Code(), d.MassCorrectionTag, d.AffectedAtom)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, bw.Flush()
}
