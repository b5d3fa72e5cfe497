package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/phrp/pkg/core"
)

// MSPathFinder ic tsv output. The sequence is clean; modifications are a
// separate "Name position" list such as "Oxidation 7,Dehydro 1" that
// leaves out fixed modifications.
var msPathFinderSchema = &Schema{
	Type:         MSPathFinder,
	Suffixes:     []string{"_ictda.tsv", "_ictarget.tsv", "_mspathfinder.tsv", "_icdecoy.tsv"},
	HeaderTokens: [][]string{{"Sequence", "Modifications", "Composition", "MostAbundantIsotopeMz"}},
	ModStyle:     ModStyleNone,
	ScoreColumns: msPathFinderScoreColumns,
	Map:          mapMSPathFinder,
}

var msPathFinderScoreColumns = []string{
	"Composition", "ProteinDesc", "ProteinLength", "NumMatchedFragments",
	"Probability", "SpecEValue", "EValue", "QValue", "PepQValue",
}

func mapMSPathFinder(cols Columns) (Row, error) {
	row := newRow(cols, msPathFinderScoreColumns)

	if err := setScanAndCharge(&row, cols.Get("Scan"), cols.Get("Charge")); err != nil {
		return row, err
	}
	row.Fields[FieldPeptide] = joinPeptide(cols.Get("Pre"), cols.Get("Sequence"), cols.Get("Post"))
	row.Fields[FieldProtein] = cols.Get("ProteinName")
	row.Fields[FieldProteinStart] = cols.Get("Start")
	row.Fields[FieldProteinEnd] = cols.Get("End")

	mods, err := parseMSPathFinderMods(cols.Get("Modifications"))
	if err != nil {
		return row, err
	}
	row.Mods = mods

	charge, _ := strconv.Atoi(row.Fields[FieldCharge])
	if err := setMassFrom(&row, FieldPrecursorMass, cols.Get("MostAbundantIsotopeMz"), charge); err != nil {
		return row, err
	}
	if err := setMassFrom(&row, FieldTheoreticalMass, cols.Get("Mass"), 0); err != nil {
		return row, err
	}
	return row, nil
}

// parseMSPathFinderMods reads "Oxidation 7,Dehydro 1". Position 0 is the N-terminus.
func parseMSPathFinderMods(s string) ([]ExplicitMod, error) {
	var mods []ExplicitMod
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.LastIndexByte(part, ' ')
		if idx <= 0 {
			return nil, fmt.Errorf("%w: invalid modification '%s'", core.ErrMalformedRecord, part)
		}
		pos, err := strconv.Atoi(part[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid modification position in '%s'", core.ErrMalformedRecord, part)
		}
		mods = append(mods, ExplicitMod{Position: pos, EndPosition: pos, Name: strings.TrimSpace(part[:idx])})
	}
	return mods, nil
}
