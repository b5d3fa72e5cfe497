// Package core provides modification parsing and management
package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ModificationKind describes how a modification is applied during a search.
type ModificationKind int

const (
	KindUnknown ModificationKind = iota
	KindDynamic
	KindStatic
	KindTerminalPeptideStatic
	KindIsotopic
	KindProteinTerminusStatic
)

// String returns the string representation of ModificationKind
func (k ModificationKind) String() string {
	switch k {
	case KindDynamic:
		return "Dynamic"
	case KindStatic:
		return "Static"
	case KindTerminalPeptideStatic:
		return "TerminalPeptideStatic"
	case KindIsotopic:
		return "Isotopic"
	case KindProteinTerminusStatic:
		return "ProteinTerminusStatic"
	default:
		return "Unknown"
	}
}

// Code returns the one-letter code used in modification definition files.
func (k ModificationKind) Code() string {
	switch k {
	case KindDynamic:
		return "D"
	case KindStatic:
		return "S"
	case KindTerminalPeptideStatic:
		return "T"
	case KindIsotopic:
		return "I"
	case KindProteinTerminusStatic:
		return "P"
	default:
		return "U"
	}
}

// ParseKind accepts either the one-letter code or the full kind name.
func ParseKind(s string) (ModificationKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "dynamic", "dyn", "opt":
		return KindDynamic, true
	case "s", "static", "fix", "fixed":
		return KindStatic, true
	case "t", "terminalpeptidestatic":
		return KindTerminalPeptideStatic, true
	case "i", "isotopic":
		return KindIsotopic, true
	case "p", "proteinterminusstatic":
		return KindProteinTerminusStatic, true
	case "u", "unknown", "":
		return KindUnknown, true
	}
	return KindUnknown, false
}

const (
	// NoSymbol marks a definition that never appears in an annotated sequence
	NoSymbol = '-'
	// NoAtom is the affected atom of every non-isotopic modification
	NoAtom = '-'
	// LastResortSymbol is shared by every unknown modification once the pool runs out
	LastResortSymbol = '_'

	// Terminus markers allowed in a target residue set
	ProteinNTerminus = '['
	PeptideNTerminus = '<'
	ProteinCTerminus = ']'
	PeptideCTerminus = '>'

	// ProteinTerminusFlank is the prefix/suffix residue used at a protein end
	ProteinTerminusFlank = '-'

	// MaxTagLength is the longest mass correction tag allowed
	MaxTagLength = 8
)

// IsTerminusMarker reports whether r is one of the four terminus markers.
func IsTerminusMarker(r rune) bool {
	return r == ProteinNTerminus || r == PeptideNTerminus || r == ProteinCTerminus || r == PeptideCTerminus
}

// ModificationDefinition describes a single modification.
type ModificationDefinition struct {
	Symbol            rune
	Mass              float64
	MassText          string // mass as read from the source file
	TargetResidues    string // sorted set; empty means anywhere
	Kind              ModificationKind
	MassCorrectionTag string
	AffectedAtom      rune
	OccurrenceCount   int
	AutoDefined       bool
}

// NewModificationDefinition builds a definition with a normalised residue set.
func NewModificationDefinition(symbol rune, mass float64, residues string, kind ModificationKind, tag string) *ModificationDefinition {
	if symbol == 0 {
		symbol = NoSymbol
	}
	return &ModificationDefinition{
		Symbol:            symbol,
		Mass:              mass,
		MassText:          strconv.FormatFloat(mass, 'f', -1, 64),
		TargetResidues:    NormalizeResidues(residues),
		Kind:              kind,
		MassCorrectionTag: tag,
		AffectedAtom:      NoAtom,
	}
}

// NormalizeResidues upper-cases amino acid letters, drops duplicates and
// returns the set in sorted order.
func NormalizeResidues(residues string) string {
	if residues == "" {
		return ""
	}
	seen := make(map[rune]bool)
	var out []rune
	for _, r := range residues {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		if r == ' ' || r == ',' || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return string(out)
}

// TargetsResidue reports whether the definition may be applied to r.
func (d *ModificationDefinition) TargetsResidue(r rune) bool {
	if d.TargetResidues == "" {
		return true
	}
	return strings.ContainsRune(d.TargetResidues, r)
}

// AminoAcidTargets returns the target residues with terminus markers removed.
func (d *ModificationDefinition) AminoAcidTargets() string {
	return strings.Map(func(r rune) rune {
		if IsTerminusMarker(r) {
			return -1
		}
		return r
	}, d.TargetResidues)
}

// TargetsTerminalResidue reports whether a terminus definition applies when
// r is the residue at that terminus.
func (d *ModificationDefinition) TargetsTerminalResidue(r rune) bool {
	aa := d.AminoAcidTargets()
	return aa == "" || strings.ContainsRune(aa, r)
}

// TerminusTargets returns only the terminus markers of the target set.
func (d *ModificationDefinition) TerminusTargets() string {
	return strings.Map(func(r rune) rune {
		if IsTerminusMarker(r) {
			return r
		}
		return -1
	}, d.TargetResidues)
}

// Equivalent reports whether two definitions describe the same chemistry:
// equal mass at MassPrecision, same kind, same tag and same affected atom.
func (d *ModificationDefinition) Equivalent(o *ModificationDefinition) bool {
	if d == nil || o == nil {
		return d == o
	}
	return MassesEqual(d.Mass, o.Mass) &&
		d.Kind == o.Kind &&
		d.MassCorrectionTag == o.MassCorrectionTag &&
		d.AffectedAtom == o.AffectedAtom
}

// FullyEquivalent additionally compares target residues. For dynamic and
// static mods o only needs to target a subset of d's residues.
func (d *ModificationDefinition) FullyEquivalent(o *ModificationDefinition) bool {
	if !d.Equivalent(o) {
		return false
	}
	if d.Kind == KindDynamic || d.Kind == KindStatic {
		return residuesSubset(o.TargetResidues, d.TargetResidues)
	}
	return d.TargetResidues == o.TargetResidues
}

// residuesSubset reports whether every residue in sub appears in super.
// An empty super set targets everything.
func residuesSubset(sub, super string) bool {
	if super == "" {
		return true
	}
	if sub == "" {
		return false
	}
	for _, r := range sub {
		if !strings.ContainsRune(super, r) {
			return false
		}
	}
	return true
}

// ValidateTag checks the mass correction tag naming rules.
func ValidateTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("mass correction tag is empty")
	}
	if len(tag) > MaxTagLength {
		return fmt.Errorf("mass correction tag '%s' is longer than %d characters", tag, MaxTagLength)
	}
	if strings.ContainsAny(tag, ",: \t") {
		return fmt.Errorf("mass correction tag '%s' contains a comma, colon or space", tag)
	}
	return nil
}

func (d *ModificationDefinition) String() string {
	residues := d.TargetResidues
	if residues == "" {
		residues = "*"
	}
	return fmt.Sprintf("%c %s %s (%s, %s)", d.Symbol, d.MassText, residues, d.Kind, d.MassCorrectionTag)
}

// builtinTag is a well-known modification with the names search engines use for it
type builtinTag struct {
	Tag   string
	Mass  float64
	Names []string
}

// builtinTags holds common Unimod modifications keyed by mass correction tag
var builtinTags = []builtinTag{
	{"Acetyl", 42.010565, []string{"Acetyl", "Acetylation", "ac"}},
	{"Amidated", -0.984016, []string{"Amidated"}},
	{"Biotinyl", 226.077598, []string{"Biotin"}},
	{"IodoAcet", 57.021464, []string{"Carbamidomethyl", "Carbamidomethylation", "cam"}},
	{"Carbamyl", 43.005814, []string{"Carbamyl"}},
	{"CarbxMth", 58.005479, []string{"Carboxymethyl"}},
	{"Deamide", 0.984016, []string{"Deamidated", "Deamidation", "de"}},
	{"MetHse", -29.992806, []string{"Met->Hse"}},
	{"MetHsl", -48.003371, []string{"Met->Hsl"}},
	{"NIPCAM", 99.068414, []string{"NIPCAM"}},
	{"Phosph", 79.966331, []string{"Phospho", "Phosphorylation", "ph", "phos"}},
	{"H2O_Loss", -18.010565, []string{"Dehydrated", "Glu->pyro-Glu", "Water_Loss"}},
	{"AcrylAmd", 71.037114, []string{"Propionamide"}},
	{"PyroCAM", 39.994915, []string{"Pyro-carbamidomethyl"}},
	{"NH3_Loss", -17.026549, []string{"Gln->pyro-Glu", "Ammonia-loss"}},
	{"Sodium", 21.981943, []string{"Cation:Na"}},
	{"Methyl", 14.01565, []string{"Methyl", "Methylation"}},
	{"Plus1Oxy", 15.994915, []string{"Oxidation", "ox"}},
	{"DiMethyl", 28.0313, []string{"Dimethyl", "Dimethylation"}},
	{"TriMeth", 42.04695, []string{"Trimethyl", "Trimethylation"}},
	{"MethylTh", 45.987721, []string{"Methylthio"}},
	{"Sulfo", 79.956815, []string{"Sulfo"}},
	{"Hexose", 162.052824, []string{"Hex"}},
	{"Lipoyl", 188.032956, []string{"Lipoyl"}},
	{"HexNAc", 203.079373, []string{"HexNAc"}},
	{"Farnesyl", 204.187801, []string{"Farnesyl"}},
	{"Myristyl", 210.198366, []string{"Myristoyl"}},
	{"PyrdxlPh", 229.014009, []string{"PyridoxalPhosphate"}},
	{"Palmitoy", 238.229666, []string{"Palmitoyl"}},
	{"GerGer", 272.250401, []string{"GeranylGeranyl"}},
	{"PhosPant", 340.085794, []string{"Phosphopantetheine"}},
	{"FAD", 783.141486, []string{"FAD"}},
	{"Guanid", 42.021798, []string{"Guanidinyl"}},
	{"HNE", 156.11503, []string{"HNE"}},
	{"Glucuron", 176.032088, []string{"Glucuronyl"}},
	{"Glutathi", 305.068156, []string{"Glutathione"}},
	{"Propionl", 56.026215, []string{"Propionyl"}},
	{"TMT6Tag", 229.162932, []string{"TMT", "TMT6plex", "TMT10plex", "TMT11plex"}},
	{"TMT16Tag", 304.207146, []string{"TMTPro", "TMTpro", "TMT16plex", "TMT_Pro"}},
	{"itrac", 144.102063, []string{"iTRAQ4plex", "iTRAQ"}},
	{"iTRAQ8", 304.205360, []string{"iTRAQ8plex"}},
	{"Dehydro", -1.007825, []string{"Dehydro"}},
}
