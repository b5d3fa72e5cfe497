package engine

import (
	"strconv"
)

// Inspect results. Annotation is "K.M+16PEPTIDE.R" (or "phos"-style names);
// PrecursorMZError is in m/z units and scales with the charge.
var inspectSchema = &Schema{
	Type:         Inspect,
	Suffixes:     []string{"_inspect.txt", "_inspect_fht.txt", "_inspect_syn.txt"},
	HeaderTokens: [][]string{{"MQScore", "TotalPRMScore"}, {"Annotation", "MQScore"}},
	ModStyle:     ModStyleSignedMass,
	ScoreColumns: inspectScoreColumns,
	Map:          mapInspect,
}

var inspectScoreColumns = []string{
	"MQScore", "Length", "TotalPRMScore", "MedianPRMScore", "FractionY",
	"FractionB", "Intensity", "NTT", "p-value", "F-Score", "DeltaScore",
	"DeltaScoreOther", "RecordNumber", "DBFilePos", "SpecFilePos",
}

func mapInspect(cols Columns) (Row, error) {
	row := newRow(cols, inspectScoreColumns)

	if err := setScanAndCharge(&row, cols.Get("Scan#", "Scan"), cols.Get("Charge")); err != nil {
		return row, err
	}
	row.Fields[FieldPeptide] = cols.Get("Annotation", "Peptide")
	row.Fields[FieldProtein] = cols.Get("Protein")

	charge, _ := strconv.Atoi(row.Fields[FieldCharge])
	if err := setMassFrom(&row, FieldPrecursorMass, cols.Get("PrecursorMZ", "PrecursorMz"), charge); err != nil {
		return row, err
	}
	if e := cols.Get("PrecursorMZError", "PrecursorError"); e != "" {
		mzErr, err := parseMass(e)
		if err != nil {
			return row, err
		}
		row.Fields[FieldDeltaMass] = formatMass(mzErr * float64(charge))
	}
	return row, nil
}
