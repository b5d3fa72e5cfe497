package engine

import (
	"strings"
)

// MODa output. Masses are neutral; PeptidePosition is "start~end".
var modaSchema = &Schema{
	Type:             MODa,
	Suffixes:         []string{"_moda.txt", "_moda_syn.txt", "_moda.id.txt"},
	HeaderTokens:     [][]string{{"Probability", "PeptidePosition"}, {"ObservedMonoMass", "CalculatedMonoMass", "Probability"}},
	ModStyle:         ModStyleSignedMass,
	InlineStaticMods: true,
	ScoreColumns:     modaScoreColumns,
	Map:              mapMODa,
}

var modaScoreColumns = []string{"SpecFile", "Index", "Score", "Probability", "DeltaMass"}

func mapMODa(cols Columns) (Row, error) {
	row := newRow(cols, modaScoreColumns)

	if err := setScanAndCharge(&row, cols.Get("ScanNum", "Scan", "Index"), cols.Get("Charge")); err != nil {
		return row, err
	}
	row.Fields[FieldPeptide] = cols.Get("Peptide")
	row.Fields[FieldProtein] = cols.Get("Protein")

	if start, end, ok := strings.Cut(cols.Get("PeptidePosition"), "~"); ok {
		row.Fields[FieldProteinStart] = strings.TrimSpace(start)
		row.Fields[FieldProteinEnd] = strings.TrimSpace(end)
	}

	if err := setMassFrom(&row, FieldPrecursorMass, cols.Get("ObservedMonoMass", "ObservedMW"), 0); err != nil {
		return row, err
	}
	if err := setMassFrom(&row, FieldTheoreticalMass, cols.Get("CalculatedMonoMass", "CalculatedMW"), 0); err != nil {
		return row, err
	}
	if d := cols.Get("DeltaMass"); d != "" {
		if _, err := parseMass(d); err != nil {
			return row, err
		}
		row.Fields[FieldDeltaMass] = d
	}
	return row, nil
}
