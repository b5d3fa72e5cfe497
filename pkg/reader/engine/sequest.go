package engine

// Sequest synopsis / first-hits files. MH is the theoretical M+H and DelM
// the observed minus theoretical difference in Da. Dynamic mods are written
// as symbols after the residue; static mods are implied.
var sequestSchema = &Schema{
	Type:         Sequest,
	Suffixes:     []string{"_syn.txt", "_fht.txt"},
	HeaderTokens: [][]string{{"XCorr", "DelCn"}, {"XCorr", "Peptide", "MH"}},
	NeedsHeader:  true,
	ModStyle:     ModStyleSymbol,
	ScoreColumns: sequestScoreColumns,
	Map:          mapSequest,
}

var sequestScoreColumns = []string{
	"HitNum", "XCorr", "DelCn", "DelCn2", "Sp", "RankSp", "RankXc",
	"XcRatio", "PassFilt", "MScore", "NumTrypticEnds",
	"Ions_Observed", "Ions_Expected", "DelM_PPM",
}

func mapSequest(cols Columns) (Row, error) {
	row := newRow(cols, sequestScoreColumns)

	if err := setScanAndCharge(&row, cols.Get("ScanNum", "Scan"), cols.Get("ChargeState", "Charge")); err != nil {
		return row, err
	}
	row.Fields[FieldPeptide] = cols.Get("Peptide")
	row.Fields[FieldProtein] = cols.Get("Reference", "Protein")

	if err := setMassFrom(&row, FieldTheoreticalMass, cols.Get("MH"), 1); err != nil {
		return row, err
	}
	if d := cols.Get("DelM"); d != "" {
		if _, err := parseMass(d); err != nil {
			return row, err
		}
		row.Fields[FieldDeltaMass] = d
	}
	return row, nil
}
