package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/phrp/pkg/core"
)

// ModStyle is the way an engine writes modifications into a peptide string.
type ModStyle int

const (
	// ModStyleNone: the peptide string is clean; mods come from other columns
	ModStyleNone ModStyle = iota
	// ModStyleSymbol: "PEPT*IDE", a symbol after the modified residue
	ModStyleSymbol
	// ModStyleSignedMass: "M+15.995PEPTIDE", "+42.011PEPTIDE" for the N-terminus
	ModStyleSignedMass
	// ModStyleBracket: "M[15.995]PEP", "(ABC)[Oxidation]DEF"
	ModStyleBracket
	// ModStyleParenName: "_M(Oxidation (M))PEPTIDE_"
	ModStyleParenName
)

// InlineMod is a modification embedded in a peptide string.
type InlineMod struct {
	Position    int // 1-based; 0 when written before the first residue
	EndPosition int
	Symbol      rune
	Mass        float64
	HasMass     bool
	Name        string
}

// ParseAnnotation extracts the clean sequence and the embedded modifications
// from the sequence part of a peptide (flanks already removed).
func ParseAnnotation(sequence string, style ModStyle) (string, []InlineMod, error) {
	switch style {
	case ModStyleSymbol:
		return parseSymbols(sequence)
	case ModStyleSignedMass:
		return parseSignedMasses(sequence)
	case ModStyleBracket:
		return parseBrackets(sequence)
	case ModStyleParenName:
		return parseParenNames(sequence)
	default:
		return core.CleanSequence(sequence), nil, nil
	}
}

func isResidue(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// parseSymbols treats every non-letter as a modification symbol on the
// residue before it.
func parseSymbols(seq string) (string, []InlineMod, error) {
	var clean strings.Builder
	var mods []InlineMod
	pos := 0
	for _, r := range seq {
		if isResidue(r) {
			clean.WriteRune(r)
			pos++
			continue
		}
		if r == ' ' {
			continue
		}
		mods = append(mods, InlineMod{Position: pos, EndPosition: pos, Symbol: r})
	}
	return clean.String(), mods, nil
}

// parseSignedMasses reads "+15.995" / "-17.027" runs and lower-case names
// such as Inspect's "phos".
func parseSignedMasses(seq string) (string, []InlineMod, error) {
	var clean strings.Builder
	var mods []InlineMod
	runes := []rune(seq)
	pos := 0
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case isResidue(r):
			clean.WriteRune(r)
			pos++
			i++
		case r == '+' || r == '-':
			j := i + 1
			for j < len(runes) && (runes[j] >= '0' && runes[j] <= '9' || runes[j] == '.') {
				j++
			}
			text := string(runes[i:j])
			m, err := strconv.ParseFloat(text, 64)
			if err != nil || j == i+1 {
				return "", nil, fmt.Errorf("%w: invalid mass annotation '%s' in %s", core.ErrMalformedRecord, text, seq)
			}
			mods = append(mods, InlineMod{Position: pos, EndPosition: pos, Mass: m, HasMass: true})
			i = j
		case r >= 'a' && r <= 'z':
			j := i
			for j < len(runes) && runes[j] >= 'a' && runes[j] <= 'z' {
				j++
			}
			mods = append(mods, InlineMod{Position: pos, EndPosition: pos, Name: string(runes[i:j])})
			i = j
		default:
			// symbols such as '*' from older engines still mark the previous residue
			mods = append(mods, InlineMod{Position: pos, EndPosition: pos, Symbol: r})
			i++
		}
	}
	return clean.String(), mods, nil
}

// parseBrackets reads "[mass]" or "[Name]" after a residue or after a
// parenthesised residue range "(ABC)".
func parseBrackets(seq string) (string, []InlineMod, error) {
	var clean strings.Builder
	var mods []InlineMod
	runes := []rune(seq)
	pos := 0
	groupStart, groupEnd := 0, 0
	inGroup := false
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case isResidue(r):
			clean.WriteRune(r)
			pos++
			if !inGroup {
				groupStart = pos
			}
			groupEnd = pos
			i++
		case r == '(':
			inGroup = true
			groupStart = pos + 1
			i++
		case r == ')':
			inGroup = false
			groupEnd = pos
			i++
		case r == '[':
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				return "", nil, fmt.Errorf("%w: unterminated '[' in %s", core.ErrMalformedRecord, seq)
			}
			content := strings.TrimSpace(string(runes[i+1 : j]))
			start, end := groupStart, groupEnd
			if pos == 0 {
				start, end = 0, 0
			}
			for _, part := range strings.Split(content, ";") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				mod := InlineMod{Position: start, EndPosition: end}
				if m, err := strconv.ParseFloat(part, 64); err == nil {
					mod.Mass = m
					mod.HasMass = true
				} else {
					mod.Name = part
				}
				mods = append(mods, mod)
			}
			i = j + 1
		default:
			i++
		}
	}
	return clean.String(), mods, nil
}

// parseParenNames reads MaxQuant modified sequences. Names may contain
// nested parentheses: "(Oxidation (M))".
func parseParenNames(seq string) (string, []InlineMod, error) {
	seq = strings.Trim(seq, "_")
	var clean strings.Builder
	var mods []InlineMod
	runes := []rune(seq)
	pos := 0
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case isResidue(r):
			clean.WriteRune(r)
			pos++
			i++
		case r == '(':
			depth := 0
			j := i
			for ; j < len(runes); j++ {
				if runes[j] == '(' {
					depth++
				} else if runes[j] == ')' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if j >= len(runes) {
				return "", nil, fmt.Errorf("%w: unbalanced '(' in %s", core.ErrMalformedRecord, seq)
			}
			name := strings.TrimSpace(string(runes[i+1 : j]))
			mods = append(mods, InlineMod{Position: pos, EndPosition: pos, Name: name})
			i = j + 1
		default:
			i++
		}
	}
	return clean.String(), mods, nil
}
