package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// EnzymeRule describes where an enzyme cuts.
type EnzymeRule struct {
	Name        string
	Residues    string // residues next to the cut
	Exceptions  string // residues on the other side that block the cut
	CTerminal   bool   // cut after Residues (true) or before them (false)
	NonSpecific bool   // every bond counts as cleaved
}

// Trypsin cleaves C-terminal to K/R unless followed by P
var Trypsin = EnzymeRule{Name: "Trypsin", Residues: "KR", Exceptions: "P", CTerminal: true}

// EnzymeRules lists the supported enzymes, keyed by lower-case name
var EnzymeRules = map[string]EnzymeRule{
	"trypsin":      Trypsin,
	"trypsin/p":    {Name: "Trypsin/P", Residues: "KR", CTerminal: true},
	"lys-c":        {Name: "Lys-C", Residues: "K", Exceptions: "P", CTerminal: true},
	"arg-c":        {Name: "Arg-C", Residues: "R", Exceptions: "P", CTerminal: true},
	"asp-n":        {Name: "Asp-N", Residues: "D", CTerminal: false},
	"glu-c":        {Name: "Glu-C", Residues: "E", Exceptions: "P", CTerminal: true},
	"chymotrypsin": {Name: "Chymotrypsin", Residues: "FWYL", Exceptions: "P", CTerminal: true},
	"noenzyme":     {Name: "NoEnzyme", NonSpecific: true},
}

// enzymeIDs maps MSGF+ EnzymeID values to enzyme names
var enzymeIDs = map[int]string{
	0: "noenzyme",
	1: "trypsin",
	2: "chymotrypsin",
	3: "lys-c",
	5: "glu-c",
	6: "arg-c",
	7: "asp-n",
	9: "noenzyme",
}

// LookupEnzyme finds an enzyme by name (case-insensitive) or MSGF+ EnzymeID.
func LookupEnzyme(name string) (EnzymeRule, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Trypsin, nil
	}
	if rule, ok := EnzymeRules[key]; ok {
		return rule, nil
	}
	if id, err := strconv.Atoi(key); err == nil {
		if n, ok := enzymeIDs[id]; ok {
			return EnzymeRules[n], nil
		}
	}
	return EnzymeRule{}, fmt.Errorf("unknown enzyme '%s'", name)
}

// cleaves reports whether the bond between left and right is cut by the rule.
func (e EnzymeRule) cleaves(left, right rune) bool {
	if e.NonSpecific {
		return true
	}
	if isBoundary(left) || isBoundary(right) {
		return true
	}
	if e.CTerminal {
		return strings.ContainsRune(e.Residues, left) && !strings.ContainsRune(e.Exceptions, right)
	}
	return strings.ContainsRune(e.Residues, right) && !strings.ContainsRune(e.Exceptions, left)
}

// isBoundary reports whether r marks a protein or peptide end.
func isBoundary(r rune) bool {
	return r == ProteinTerminusFlank || IsTerminusMarker(r)
}

// SplitPrefixAndSuffix splits "X.SEQUENCE.Y" notation on the first and last
// dot. Dots between two digits belong to inline masses ("M+15.995") and are
// not separators. Without separators the whole string is the sequence. With a
// single separator the shorter side is taken as the flank and the other flank
// is left empty.
func SplitPrefixAndSuffix(peptide string) (prefix, sequence, suffix string) {
	first, last := -1, -1
	for i := 0; i < len(peptide); i++ {
		if peptide[i] != '.' || isDecimalPoint(peptide, i) {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return "", peptide, ""
	}
	if first != last {
		return peptide[:first], peptide[first+1 : last], peptide[last+1:]
	}

	left, right := peptide[:first], peptide[first+1:]
	if len(left) <= len(right) {
		return left, right, ""
	}
	return "", left, right
}

func isDecimalPoint(s string, i int) bool {
	return i > 0 && i+1 < len(s) && isDigit(s[i-1]) && isDigit(s[i+1])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// CleanSequence drops everything that is not an upper-case letter:
// modification symbols, inline masses and brackets.
func CleanSequence(sequence string) string {
	var b strings.Builder
	b.Grow(len(sequence))
	for _, r := range sequence {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// flankResidue returns the residue of a flank adjacent to the sequence.
func flankResidue(flank string, last bool) (rune, bool) {
	var out []rune
	for _, r := range flank {
		if unicode.IsUpper(r) || isBoundary(r) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return 0, false
	}
	if last {
		return out[len(out)-1], true
	}
	return out[0], true
}

// CountTrypticTermini returns how many of the two peptide ends (0, 1 or 2)
// agree with the enzyme rule. A flank that is a terminus marker always counts.
func CountTrypticTermini(prefix, sequence, suffix string, rule EnzymeRule) int {
	clean := []rune(CleanSequence(sequence))
	if len(clean) == 0 {
		return 0
	}

	count := 0
	if p, ok := flankResidue(prefix, true); ok && rule.cleaves(p, clean[0]) {
		count++
	}
	if s, ok := flankResidue(suffix, false); ok && rule.cleaves(clean[len(clean)-1], s) {
		count++
	}
	return count
}

// CountMissedCleavages counts internal sites the enzyme would have cut.
func CountMissedCleavages(sequence string, rule EnzymeRule) int {
	if rule.NonSpecific {
		return 0
	}
	clean := []rune(CleanSequence(sequence))
	missed := 0
	for i := 0; i+1 < len(clean); i++ {
		if rule.cleaves(clean[i], clean[i+1]) {
			missed++
		}
	}
	return missed
}
