package engine

// MaxQuant msms.txt. Modified sequence is "_(Acetyl (Protein N-term))M(Oxidation (M))PEPTIDE_"
// and names only the variable modifications.
var maxQuantSchema = &Schema{
	Type:         MaxQuant,
	Suffixes:     []string{"msms.txt", "_maxq_syn.txt"},
	HeaderTokens: [][]string{{"Modified sequence", "Scan number"}},
	ModStyle:     ModStyleParenName,
	ScoreColumns: maxQuantScoreColumns,
	Map:          mapMaxQuant,
}

var maxQuantScoreColumns = []string{
	"Raw file", "Score", "Delta score", "PEP", "Localization prob",
	"Missed cleavages", "Mass analyzer", "Type", "Number of matches",
	"Intensity coverage", "Reverse", "id",
}

func mapMaxQuant(cols Columns) (Row, error) {
	row := newRow(cols, maxQuantScoreColumns)

	if err := setScanAndCharge(&row, cols.Get("Scan number", "Scan"), cols.Get("Charge")); err != nil {
		return row, err
	}
	row.Fields[FieldPeptide] = joinPeptide(cols.Get("Amino acid before"), cols.Get("Modified sequence"), cols.Get("Amino acid after"))
	row.Fields[FieldProtein] = cols.Get("Proteins", "Leading proteins")
	row.Fields[FieldCollisionMode] = cols.Get("Fragmentation")

	if err := setMassFrom(&row, FieldTheoreticalMass, cols.Get("Mass"), 0); err != nil {
		return row, err
	}
	if d := cols.Get("Mass error [Da]", "Mass Error [Da]"); d != "" {
		if _, err := parseMass(d); err != nil {
			return row, err
		}
		row.Fields[FieldDeltaMass] = d
	}
	return row, nil
}
