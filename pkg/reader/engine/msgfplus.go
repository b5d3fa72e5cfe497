package engine

import (
	"strconv"
	"strings"
)

// MS-GF+ (and MSGFDB) tsv output. Peptide carries signed masses for every
// modification including fixed ones; Precursor is the observed m/z.
var msgfPlusSchema = &Schema{
	Type:     MSGFPlus,
	Suffixes: []string{"_msgfplus.tsv", "_msgfplus.txt", "_msgfdb.tsv", "_msgfdb.txt", ".mzid.tsv"},
	HeaderTokens: [][]string{
		{"MSGFScore", "SpecEValue"},
		{"SpecEValue", "Peptide"},
		{"MSGFDB_SpecProb"},
		{"MSGFScore", "Peptide"},
	},
	ModStyle:         ModStyleSignedMass,
	InlineStaticMods: true,
	ScoreColumns:     msgfPlusScoreColumns,
	Map:              mapMSGFPlus,
}

var msgfPlusScoreColumns = []string{
	"SpecID", "IsotopeError", "PrecursorError(ppm)", "DeNovoScore",
	"MSGFScore", "SpecEValue", "EValue", "QValue", "PepQValue",
	"MSGFDB_SpecProb", "PValue", "FDR", "PepFDR",
}

func mapMSGFPlus(cols Columns) (Row, error) {
	row := newRow(cols, msgfPlusScoreColumns)

	if err := setScanAndCharge(&row, cols.Get("ScanNum", "Scan#", "Scan"), cols.Get("Charge")); err != nil {
		return row, err
	}
	row.Fields[FieldPeptide] = cols.Get("Peptide")
	row.Fields[FieldCollisionMode] = cols.Get("FragMethod")

	var proteins []string
	for _, p := range strings.Split(cols.Get("Protein"), ";") {
		if p = stripProteinDecoration(p); p != "" {
			proteins = append(proteins, p)
		}
	}
	row.Fields[FieldProtein] = strings.Join(proteins, ";")

	charge, _ := strconv.Atoi(row.Fields[FieldCharge])
	if err := setMassFrom(&row, FieldPrecursorMass, cols.Get("Precursor", "PrecursorMZ"), charge); err != nil {
		return row, err
	}
	if e := cols.Get("PrecursorError(Da)"); e != "" {
		if _, err := parseMass(e); err != nil {
			return row, err
		}
		row.Fields[FieldDeltaMass] = e
	}
	return row, nil
}
