package stream

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/phrp/pkg/core"
	"github.com/ChrisMcGann/phrp/pkg/reader/engine"
)

// observedMod is an inline or explicit modification before resolution.
type observedMod struct {
	position    int // 0 for the N-terminus
	endPosition int
	symbol      rune
	mass        float64
	hasMass     bool
	name        string
}

// resolveModifications places every observed modification on the PSM and
// then adds the fixed modifications the engine leaves implicit.
func (r *Reader) resolveModifications(psm *core.PSM, row *engine.Row, inline []engine.InlineMod) error {
	observed := make([]observedMod, 0, len(inline)+len(row.Mods))
	for _, m := range inline {
		observed = append(observed, observedMod{m.Position, m.EndPosition, m.Symbol, m.Mass, m.HasMass, m.Name})
	}
	for _, m := range row.Mods {
		observed = append(observed, observedMod{m.Position, m.EndPosition, 0, m.Mass, m.HasMass, m.Name})
	}

	n := len(psm.CleanSequence)
	for _, obs := range observed {
		pos := obs.position
		if pos > n {
			pos = n
		}
		end := obs.endPosition
		if end < pos || end > n {
			end = pos
		}

		residues, termini := r.siteOf(psm, pos, end)
		q := core.Query{Kind: core.KindUnknown, Residues: residues, Termini: termini}

		def, err := r.resolveObserved(obs, q, row)
		if err != nil {
			return err
		}

		mr := core.ModifiedResidue{
			Position:     max(pos, 1),
			EndPosition:  max(end, 1),
			Modification: def,
		}
		mr.Residue = rune(psm.CleanSequence[mr.Position-1])
		if pos == 0 {
			mr.Terminus = nTerminus(psm)
		}
		psm.Modifications = append(psm.Modifications, mr)
	}

	if !r.schema.InlineStaticMods {
		r.applyFixedModifications(psm)
	}
	r.applyIsotopicModifications(psm)
	return nil
}

// siteOf returns the residues covered by [pos, end] and the terminus markers
// that apply there. Position 0 is the N-terminus before the first residue.
func (r *Reader) siteOf(psm *core.PSM, pos, end int) (string, string) {
	seq := psm.CleanSequence
	n := len(seq)
	first := max(pos, 1)
	last := max(end, first)
	residues := seq[first-1 : last]

	var termini strings.Builder
	if first == 1 {
		termini.WriteRune(core.PeptideNTerminus)
		if isProteinTerminusFlank(psm.Prefix) {
			termini.WriteRune(core.ProteinNTerminus)
		}
	}
	if last == n && pos != 0 {
		termini.WriteRune(core.PeptideCTerminus)
		if isProteinTerminusFlank(psm.Suffix) {
			termini.WriteRune(core.ProteinCTerminus)
		}
	}
	return residues, termini.String()
}

func isProteinTerminusFlank(flank string) bool {
	return strings.TrimSpace(flank) == string(core.ProteinTerminusFlank)
}

func nTerminus(psm *core.PSM) rune {
	if isProteinTerminusFlank(psm.Prefix) {
		return core.ProteinNTerminus
	}
	return core.PeptideNTerminus
}

func cTerminus(psm *core.PSM) rune {
	if isProteinTerminusFlank(psm.Suffix) {
		return core.ProteinCTerminus
	}
	return core.PeptideCTerminus
}

// resolveObserved maps one observation to a catalog definition. Symbols must
// already be defined; masses are auto-defined when unseen; names must be
// known tags or aliases.
func (r *Reader) resolveObserved(obs observedMod, q core.Query, row *engine.Row) (*core.ModificationDefinition, error) {
	switch {
	case obs.hasMass:
		q.Mass = obs.mass
		def, created := r.catalog.ResolveQuery(q)
		if created {
			r.noteAutoDefined(def, row)
		}
		return def, nil

	case obs.name != "":
		def, created, err := r.catalog.ResolveName(obs.name, q)
		if err != nil {
			return nil, err
		}
		if created {
			r.noteAutoDefined(def, row)
		}
		return def, nil

	case obs.symbol != 0:
		def, ok := r.catalog.LookupBySymbol(obs.symbol)
		if !ok {
			return nil, fmt.Errorf("%w: '%c'", core.ErrUnknownSymbol, obs.symbol)
		}
		def.OccurrenceCount++
		return def, nil
	}
	return nil, fmt.Errorf("%w: modification without symbol, mass or name", core.ErrMalformedRecord)
}

func (r *Reader) noteAutoDefined(def *core.ModificationDefinition, row *engine.Row) {
	r.emit(core.Diagnostic{
		Severity:     core.SeverityInfo,
		Code:         core.CodeAutoDefinedModification,
		Path:         r.path,
		Line:         row.Line,
		Message:      fmt.Sprintf("unexpected modification mass %s defined as %s (symbol %c)", def.MassText, def.MassCorrectionTag, def.Symbol),
		Raw:          row.Raw,
		Modification: def,
	})
}

// applyFixedModifications adds static residue, peptide terminus and protein
// terminus modifications from the catalog.
func (r *Reader) applyFixedModifications(psm *core.PSM) {
	seq := psm.CleanSequence
	n := len(seq)

	for _, def := range r.catalog.Definitions() {
		switch def.Kind {
		case core.KindStatic:
			targets := def.AminoAcidTargets()
			if targets == "" {
				continue
			}
			for i, aa := range seq {
				if strings.ContainsRune(targets, aa) {
					r.addFixed(psm, def, i+1, 0)
				}
			}

		case core.KindTerminalPeptideStatic:
			terms := def.TerminusTargets()
			if strings.ContainsRune(terms, core.PeptideNTerminus) && def.TargetsTerminalResidue(rune(seq[0])) {
				r.addFixed(psm, def, 1, core.PeptideNTerminus)
			}
			if strings.ContainsRune(terms, core.PeptideCTerminus) && def.TargetsTerminalResidue(rune(seq[n-1])) {
				r.addFixed(psm, def, n, core.PeptideCTerminus)
			}

		case core.KindProteinTerminusStatic:
			terms := def.TerminusTargets()
			if strings.ContainsRune(terms, core.ProteinNTerminus) && nTerminus(psm) == core.ProteinNTerminus {
				r.addFixed(psm, def, 1, core.ProteinNTerminus)
			}
			if strings.ContainsRune(terms, core.ProteinCTerminus) && cTerminus(psm) == core.ProteinCTerminus {
				r.addFixed(psm, def, n, core.ProteinCTerminus)
			}
		}
	}
}

func (r *Reader) addFixed(psm *core.PSM, def *core.ModificationDefinition, pos int, terminus rune) {
	if psm.HasModification(def.MassCorrectionTag, pos) {
		return
	}
	def.OccurrenceCount++
	psm.Modifications = append(psm.Modifications, core.ModifiedResidue{
		Residue:      rune(psm.CleanSequence[pos-1]),
		Position:     pos,
		EndPosition:  pos,
		Terminus:     terminus,
		Modification: def,
	})
}

// applyIsotopicModifications adds one whole-peptide entry per isotopic label,
// scaled by the number of affected atoms.
func (r *Reader) applyIsotopicModifications(psm *core.PSM) {
	labels := r.catalog.DefinitionsOfKind(core.KindIsotopic)
	if len(labels) == 0 {
		return
	}
	comp, err := core.SequenceComposition(psm.CleanSequence)
	if err != nil {
		// the mass calculation reports the invalid residue
		return
	}
	for _, def := range labels {
		count := comp.Count(def.AffectedAtom)
		if count == 0 {
			continue
		}
		def.OccurrenceCount++
		psm.Modifications = append(psm.Modifications, core.ModifiedResidue{
			Residue:      rune(psm.CleanSequence[0]),
			Position:     1,
			EndPosition:  len(psm.CleanSequence),
			AtomCount:    count,
			Modification: def,
		})
	}
}
