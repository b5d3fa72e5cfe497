package engine

import (
	"strings"
)

// TopPIC PrSM tables. The header follows a free-form parameter block, so the
// reader waits for the line that contains "Prsm ID".
var topPICSchema = &Schema{
	Type:             TopPIC,
	Suffixes:         []string{"_toppic_prsms.txt", "_toppic_proteoforms.txt", "_toppic_prsms.tsv"},
	HeaderTokens:     [][]string{{"Prsm ID", "Proteoform"}, {"Prsm ID", "Precursor mass"}},
	HeaderMarker:     "Prsm ID",
	ModStyle:         ModStyleBracket,
	InlineStaticMods: true,
	ScoreColumns:     topPICScoreColumns,
	Map:              mapTopPIC,
}

var topPICScoreColumns = []string{
	"Prsm ID", "Spectrum ID", "Retention time", "#peaks", "Adjusted precursor mass",
	"Proteoform ID", "Feature intensity", "Protein mass", "#unexpected modifications",
	"#variable PTMs", "#matched peaks", "#matched fragment ions", "P-value",
	"E-value", "Q-value (spectral FDR)", "Proteoform FDR",
}

func mapTopPIC(cols Columns) (Row, error) {
	row := newRow(cols, topPICScoreColumns)

	if err := setScanAndCharge(&row, cols.Get("Scan(s)", "Scan"), cols.Get("Charge")); err != nil {
		return row, err
	}
	row.Fields[FieldPeptide] = cols.Get("Proteoform")
	// "sp|P12345|NAME_HUMAN description" keeps the accession only
	if f := strings.Fields(cols.Get("Protein accession", "Protein name")); len(f) > 0 {
		row.Fields[FieldProtein] = f[0]
	}
	row.Fields[FieldProteinStart] = cols.Get("First residue")
	row.Fields[FieldProteinEnd] = cols.Get("Last residue")
	row.Fields[FieldCollisionMode] = cols.Get("Fragmentation")

	if err := setMassFrom(&row, FieldPrecursorMass, cols.Get("Precursor mass"), 0); err != nil {
		return row, err
	}
	return row, nil
}
