// Package core provides the modification model, mass calculations and the
// peptide-spectrum match representation shared by every search engine reader.
package core

import (
	"math"
	"strings"
)

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900
	MassP = 30.9737615100

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	// MassWater is added once per peptide for the free termini
	MassWater = 2*MassH + MassO

	// MassC13Delta is the mass difference between 13C and 12C
	MassC13Delta = 1.00335483
)

// MassPrecision is the number of decimal digits used whenever two masses are
// compared for equality.
const MassPrecision = 6

// MassTolerance is the matching tolerance that corresponds to MassPrecision.
const MassTolerance = 1e-6

// AminoAcidComposition stores elemental composition
type AminoAcidComposition struct {
	C, H, N, O, S int
}

// Count returns the number of atoms of the given element symbol.
func (c AminoAcidComposition) Count(atom rune) int {
	switch atom {
	case 'C':
		return c.C
	case 'H':
		return c.H
	case 'N':
		return c.N
	case 'O':
		return c.O
	case 'S':
		return c.S
	}
	return 0
}

// Add returns the element-wise sum of two compositions.
func (c AminoAcidComposition) Add(o AminoAcidComposition) AminoAcidComposition {
	return AminoAcidComposition{C: c.C + o.C, H: c.H + o.H, N: c.N + o.N, O: c.O + o.O, S: c.S + o.S}
}

// AminoAcidCompositions maps amino acid one-letter codes to elemental composition
var AminoAcidCompositions = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1, S: 0},
	'R': {C: 6, H: 12, N: 4, O: 1, S: 0},
	'N': {C: 4, H: 6, N: 2, O: 2, S: 0},
	'D': {C: 4, H: 5, N: 1, O: 3, S: 0},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3, S: 0},
	'Q': {C: 5, H: 8, N: 2, O: 2, S: 0},
	'G': {C: 2, H: 3, N: 1, O: 1, S: 0},
	'H': {C: 6, H: 7, N: 3, O: 1, S: 0},
	'I': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'L': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'K': {C: 6, H: 12, N: 2, O: 1, S: 0},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1, S: 0},
	'P': {C: 5, H: 7, N: 1, O: 1, S: 0},
	'S': {C: 3, H: 5, N: 1, O: 2, S: 0},
	'T': {C: 4, H: 7, N: 1, O: 2, S: 0},
	'W': {C: 11, H: 10, N: 2, O: 1, S: 0},
	'Y': {C: 9, H: 9, N: 1, O: 2, S: 0},
	'V': {C: 5, H: 9, N: 1, O: 1, S: 0},
}

// ResidueMasses holds the monoisotopic residue masses of the 20 standard
// amino acids. Ambiguous codes (B, J, O, U, X, Z) are deliberately absent.
var ResidueMasses = map[rune]float64{
	'A': 71.0371100902557,
	'R': 156.101100018982,
	'N': 114.042921543121,
	'D': 115.026938284469,
	'C': 103.009180455399,
	'E': 129.042588348008,
	'Q': 128.058570476661,
	'G': 57.0214600367165,
	'H': 137.058904540016,
	'I': 113.084058496782,
	'L': 113.084058496782,
	'K': 128.094955530019,
	'M': 131.040479981995,
	'F': 147.068408442414,
	'P': 97.0527594114959,
	'S': 87.0320236270725,
	'T': 101.047673690624,
	'W': 186.079307240646,
	'Y': 163.063322476123,
	'V': 99.0684087058578,
}

// ResidueMass returns the monoisotopic residue mass of a standard amino acid.
func ResidueMass(residue rune) (float64, bool) {
	m, ok := ResidueMasses[residue]
	return m, ok
}

// MassOffset is a modification mass applied at a residue position.
// Position is 1-based within the clean sequence; 0 is used for the N-terminus.
type MassOffset struct {
	Position int
	Mass     float64
}

// ComputeSequenceMass returns the neutral monoisotopic mass of a clean
// sequence: residue masses plus one water plus every modification delta.
func ComputeSequenceMass(sequence string, mods []MassOffset) (float64, error) {
	mass := MassWater
	pos := 0
	for _, aa := range sequence {
		pos++
		m, ok := ResidueMasses[aa]
		if !ok {
			return 0, &ResidueError{Sequence: sequence, Residue: aa, Position: pos}
		}
		mass += m
	}

	for _, mod := range mods {
		mass += mod.Mass
	}

	return mass, nil
}

// SequenceComposition sums the elemental composition of a clean sequence,
// including the terminal water.
func SequenceComposition(sequence string) (AminoAcidComposition, error) {
	comp := AminoAcidComposition{H: 2, O: 1}
	pos := 0
	for _, aa := range sequence {
		pos++
		aaComp, ok := AminoAcidCompositions[aa]
		if !ok {
			return comp, &ResidueError{Sequence: sequence, Residue: aa, Position: pos}
		}
		comp = comp.Add(aaComp)
	}
	return comp, nil
}

// ConvoluteMass converts a mass from one charge state to another.
// Charge 0 denotes a neutral mass, charge 1 an M+H value, anything higher an m/z.
func ConvoluteMass(mass float64, chargeFrom, chargeTo int) float64 {
	if chargeFrom == chargeTo {
		return mass
	}

	// Normalise to M+H first
	var mh float64
	switch {
	case chargeFrom == 0:
		mh = mass + ProtonMass
	case chargeFrom == 1:
		mh = mass
	default:
		mh = mass*float64(chargeFrom) - ProtonMass*float64(chargeFrom-1)
	}

	switch {
	case chargeTo == 0:
		return mh - ProtonMass
	case chargeTo == 1:
		return mh
	default:
		return (mh + ProtonMass*float64(chargeTo-1)) / float64(chargeTo)
	}
}

// MassToPPM converts a mass difference to parts per million of a reference mass.
func MassToPPM(deltaMass, referenceMass float64) float64 {
	return deltaMass / referenceMass * 1e6
}

// CorrectIsotopeError removes whole 13C offsets from a raw precursor error
// until the residual lies within [-0.5, 0.5] Da. The returned shift satisfies
// raw == corrected + shift*MassC13Delta.
//
// MassC13Delta is slightly larger than 1 Da, so a raw error just past a
// half-Dalton boundary cannot land inside the window; the shift with the
// smaller residual is kept there and |corrected| stays within MassC13Delta/2.
func CorrectIsotopeError(rawDeltaDa float64) (float64, int) {
	if math.IsNaN(rawDeltaDa) || math.IsInf(rawDeltaDa, 0) {
		return rawDeltaDa, 0
	}

	shift := 0
	step := 0
	switch {
	case rawDeltaDa > 0.5:
		step = 1
	case rawDeltaDa < -0.5:
		step = -1
	default:
		return rawDeltaDa, 0
	}

	corrected := rawDeltaDa
	for math.Abs(corrected) > 0.5 && corrected*float64(step) > 0 {
		shift += step
		corrected = rawDeltaDa - float64(shift)*MassC13Delta
	}

	if math.Abs(corrected) > 0.5 {
		prev := rawDeltaDa - float64(shift-step)*MassC13Delta
		if math.Abs(prev) < math.Abs(corrected) {
			shift -= step
			corrected = prev
		}
	}

	return corrected, shift
}

// ParseComposition converts an empirical formula such as "C2H3N1O1" or
// "H-2O-1" into a monoisotopic mass.
func ParseComposition(formula string) (float64, bool) {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return 0, false
	}

	masses := map[rune]float64{'C': MassC, 'H': MassH, 'N': MassN, 'O': MassO, 'S': MassS, 'P': MassP}
	runes := []rune(formula)
	total := 0.0
	for i := 0; i < len(runes); {
		m, ok := masses[runes[i]]
		if !ok {
			return 0, false
		}
		i++

		sign := 1
		if i < len(runes) && runes[i] == '-' {
			sign = -1
			i++
		}
		count := 0
		digits := 0
		for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
			count = count*10 + int(runes[i]-'0')
			i++
			digits++
		}
		if digits == 0 {
			if sign < 0 {
				return 0, false
			}
			count = 1
		}
		total += float64(sign*count) * m
	}

	return total, true
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// MassesEqual reports whether two masses agree at MassPrecision decimals.
func MassesEqual(a, b float64) bool {
	return RoundFloat(math.Abs(a-b), MassPrecision) == 0
}
