package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// PSM represents a single peptide-spectrum match, normalised from any
// search engine.
type PSM struct {
	// Required fields
	ScanNumber    int
	Charge        int
	Peptide       string // as reported, including prefix/suffix and mod annotations
	Prefix        string
	Suffix        string
	CleanSequence string

	// Derived fields
	Modifications        []ModifiedResidue
	MonoisotopicMass     float64 // computed neutral mass including mods
	PrecursorNeutralMass float64
	MassErrorDa          float64 // isotope-corrected
	MassErrorPPM         float64
	IsotopeShift         int
	TrypticTermini       int
	MissedCleavages      int

	// Optional metadata
	CollisionMode string
	Proteins      []ProteinMatch
	SequenceID    int
	Scores        map[string]string

	// Internal tracking
	SourceFile   string
	SourceFormat string
	RecordNumber int // 1-based line or element number in the source
}

// ModifiedResidue is one modification placed on the clean sequence.
// Position and EndPosition are 1-based and equal unless the engine only
// localised the mod to a residue range. Isotopic labels span the whole
// peptide and record how many atoms they replace in AtomCount.
type ModifiedResidue struct {
	Residue      rune
	Position     int
	EndPosition  int
	Terminus     rune // terminus marker the mod sits on, 0 for a residue
	AtomCount    int
	Modification *ModificationDefinition
}

// MassDelta returns the mass the modification adds to the peptide.
func (m ModifiedResidue) MassDelta() float64 {
	if m.AtomCount > 0 {
		return m.Modification.Mass * float64(m.AtomCount)
	}
	return m.Modification.Mass
}

// ProteinMatch is a protein reported for a PSM, with the residue span when known.
type ProteinMatch struct {
	Name  string
	Start int
	End   int
}

// ValidationError represents an error found during PSM validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a PSM carries the fields downstream writers rely on.
func (p *PSM) Validate() error {
	var errs []string

	if p.CleanSequence == "" {
		errs = append(errs, "sequence is required")
	}
	if p.Charge <= 0 {
		errs = append(errs, "charge must be positive")
	}
	if p.ScanNumber < 0 {
		errs = append(errs, "scan number must be non-negative")
	}
	if math.IsNaN(p.MonoisotopicMass) || math.IsInf(p.MonoisotopicMass, 0) || p.MonoisotopicMass <= 0 {
		errs = append(errs, "monoisotopic mass must be positive")
	}
	if math.IsNaN(p.MassErrorPPM) || math.IsInf(p.MassErrorPPM, 0) {
		errs = append(errs, "mass error is not a number")
	}
	for i, m := range p.Modifications {
		if m.Modification == nil {
			errs = append(errs, fmt.Sprintf("modification %d has no definition", i))
			continue
		}
		if m.Position < 0 || m.Position > len(p.CleanSequence)+1 {
			errs = append(errs, fmt.Sprintf("modification %d position %d is outside the peptide", i, m.Position))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "PSM",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// SortModifications orders modifications by position, N-terminal mods first.
func (p *PSM) SortModifications() {
	sort.SliceStable(p.Modifications, func(i, j int) bool {
		return p.Modifications[i].Position < p.Modifications[j].Position
	})
}

// HasModification reports whether a mod with the given tag sits at position.
func (p *PSM) HasModification(tag string, position int) bool {
	for _, m := range p.Modifications {
		if m.Position == position && m.Modification.MassCorrectionTag == tag {
			return true
		}
	}
	return false
}

// MassOffsets converts the modifications for the mass calculator.
func (p *PSM) MassOffsets() []MassOffset {
	out := make([]MassOffset, 0, len(p.Modifications))
	for _, mod := range p.Modifications {
		out = append(out, MassOffset{Position: mod.Position, Mass: mod.MassDelta()})
	}
	return out
}

// ModString returns a string representation of modifications in format "tag@pos;tag@pos;..."
func (p *PSM) ModString() string {
	if len(p.Modifications) == 0 {
		return ""
	}

	var parts []string
	for _, mod := range p.Modifications {
		parts = append(parts, fmt.Sprintf("%s@%c%d", mod.Modification.MassCorrectionTag, mod.Residue, mod.Position))
	}
	return strings.Join(parts, ";")
}

// ModifiedSequence renders the clean sequence with dynamic mod symbols after
// the residues they sit on.
func (p *PSM) ModifiedSequence() string {
	byPos := make(map[int][]rune)
	for _, mod := range p.Modifications {
		if mod.Modification.Symbol != NoSymbol {
			byPos[mod.Position] = append(byPos[mod.Position], mod.Modification.Symbol)
		}
	}

	var b strings.Builder
	for i, r := range p.CleanSequence {
		b.WriteRune(r)
		for _, s := range byPos[i+1] {
			b.WriteRune(s)
		}
	}
	return b.String()
}

// HasAutoDefinedMods reports whether any modification was auto-defined.
func (p *PSM) HasAutoDefinedMods() bool {
	for _, mod := range p.Modifications {
		if mod.Modification.AutoDefined {
			return true
		}
	}
	return false
}

// Score returns an engine-specific score, if the engine reported it.
func (p *PSM) Score(name string) (string, bool) {
	v, ok := p.Scores[name]
	return v, ok
}

// GetScore returns an engine-specific score or def when the column is absent.
func (p *PSM) GetScore(name, def string) string {
	if v, ok := p.Score(name); ok {
		return v
	}
	return def
}

// ScoreFloat parses a score as a float.
func (p *PSM) ScoreFloat(name string) (float64, bool) {
	v, ok := p.Score(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Name returns the PSM name in format "Scan/Sequence/Charge"
func (p *PSM) Name() string {
	return fmt.Sprintf("%d/%s/%d", p.ScanNumber, p.CleanSequence, p.Charge)
}

// PrimaryProtein returns the first reported protein name.
func (p *PSM) PrimaryProtein() string {
	if len(p.Proteins) == 0 {
		return ""
	}
	return p.Proteins[0].Name
}
