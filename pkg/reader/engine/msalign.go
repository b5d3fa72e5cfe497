package engine

// MSAlign top-down results. Peptide is "A.(ABC)[mass]DEF.G" where a bracket
// after a parenthesised range localises the shift to the range.
var msAlignSchema = &Schema{
	Type:             MSAlign,
	Suffixes:         []string{"_msalign.txt", "_msalign_syn.txt"},
	HeaderTokens:     [][]string{{"Prsm_ID", "Adjusted_precursor_mass"}, {"Prsm_ID", "Precursor_mass", "Peptide"}},
	ModStyle:         ModStyleBracket,
	InlineStaticMods: true,
	ScoreColumns:     msAlignScoreColumns,
	Map:              mapMSAlign,
}

var msAlignScoreColumns = []string{
	"Prsm_ID", "Spectrum_ID", "Protein_ID", "Species_ID", "Protein_mass",
	"Unexpected_modifications", "Matched_peaks", "Matched_fragment_ions",
	"P-value", "E-value", "FDR",
}

func mapMSAlign(cols Columns) (Row, error) {
	row := newRow(cols, msAlignScoreColumns)

	if err := setScanAndCharge(&row, cols.Get("Scan(s)", "Scans", "Scan"), cols.Get("Charge")); err != nil {
		return row, err
	}
	row.Fields[FieldPeptide] = cols.Get("Peptide")
	row.Fields[FieldProtein] = cols.Get("Protein_name", "Protein")
	row.Fields[FieldProteinStart] = cols.Get("First_residue")
	row.Fields[FieldProteinEnd] = cols.Get("Last_residue")

	if err := setMassFrom(&row, FieldPrecursorMass, cols.Get("Adjusted_precursor_mass", "Precursor_mass"), 0); err != nil {
		return row, err
	}
	return row, nil
}
