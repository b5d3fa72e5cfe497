package engine

import (
	"strings"
)

// MODPlus output. Protein is a ';' list of "Name[start~end]" entries.
var modPlusSchema = &Schema{
	Type:             MODPlus,
	Suffixes:         []string{"_modp.txt", "_modplus.txt", "_modp_syn.txt"},
	HeaderTokens:     [][]string{{"ScanNo", "ObservedMW", "Probability"}, {"ScanNo", "CalculatedMW"}},
	ModStyle:         ModStyleSignedMass,
	InlineStaticMods: true,
	ScoreColumns:     modPlusScoreColumns,
	Map:              mapMODPlus,
}

var modPlusScoreColumns = []string{"SpectrumFile", "Index", "Score", "Probability", "DeltaMass"}

func mapMODPlus(cols Columns) (Row, error) {
	row := newRow(cols, modPlusScoreColumns)

	if err := setScanAndCharge(&row, cols.Get("ScanNo", "ScanNum", "Scan"), cols.Get("Charge")); err != nil {
		return row, err
	}
	row.Fields[FieldPeptide] = cols.Get("Peptide")

	var names, starts, ends []string
	for _, entry := range strings.Split(cols.Get("Protein"), ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, start, end := splitModPlusProtein(entry)
		names = append(names, name)
		starts = append(starts, start)
		ends = append(ends, end)
	}
	row.Fields[FieldProtein] = strings.Join(names, ";")
	row.Fields[FieldProteinStart] = strings.Join(starts, ";")
	row.Fields[FieldProteinEnd] = strings.Join(ends, ";")

	if err := setMassFrom(&row, FieldPrecursorMass, cols.Get("ObservedMW"), 0); err != nil {
		return row, err
	}
	if err := setMassFrom(&row, FieldTheoreticalMass, cols.Get("CalculatedMW"), 0); err != nil {
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

// splitModPlusProtein splits "sp|P1|X[12~25]" into name and residue span.
func splitModPlusProtein(entry string) (name, start, end string) {
	open := strings.LastIndexByte(entry, '[')
	if open < 0 || !strings.HasSuffix(entry, "]") {
		return entry, "", ""
	}
	span := entry[open+1 : len(entry)-1]
	start, end, ok := strings.Cut(span, "~")
	if !ok {
		return entry, "", ""
	}
	return entry[:open], strings.TrimSpace(start), strings.TrimSpace(end)
}
