package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/phrp/pkg/core"
)

func testCatalogAndPSM(t *testing.T) (*core.ModificationCatalog, *core.PSM) {
	t.Helper()

	catalog := core.NewModificationCatalog()
	ox, err := catalog.Add(core.NewModificationDefinition('*', 15.994915, "M", core.KindDynamic, "Plus1Oxy"))
	require.NoError(t, err)
	cam, err := catalog.Add(core.NewModificationDefinition(core.NoSymbol, 57.021464, "C", core.KindStatic, "IodoAcet"))
	require.NoError(t, err)

	psm := &core.PSM{
		ScanNumber:       1234,
		Charge:           2,
		Peptide:          "R.M*ACDEFGHIK.A",
		Prefix:           "R",
		Suffix:           "A",
		CleanSequence:    "MACDEFGHIK",
		MonoisotopicMass: 1222.511028,
		MassErrorPPM:     1.5,
		TrypticTermini:   2,
		SequenceID:       1,
		Modifications: []core.ModifiedResidue{
			{Residue: 'M', Position: 1, EndPosition: 1, Terminus: core.PeptideNTerminus, Modification: ox},
			{Residue: 'C', Position: 3, EndPosition: 3, Modification: cam},
		},
		Proteins:     []core.ProteinMatch{{Name: "sp|P1|PROT1", Start: 10, End: 19}, {Name: "sp|P2|PROT2"}},
		Scores:       map[string]string{"XCorr": "3.1", "DelCn": "0.0"},
		SourceFile:   "Dataset_syn.txt",
		SourceFormat: "Sequest",
		RecordNumber: 3,
	}
	return catalog, psm
}

func queryInt(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	w, err := NewWriter(path)
	require.NoError(t, err)

	catalog, psm := testCatalogAndPSM(t)
	require.NoError(t, w.WritePSM(psm))

	second := *psm
	second.ScanNumber = 1235
	second.Modifications = nil
	second.Proteins = nil
	require.NoError(t, w.WritePSM(&second))
	assert.Equal(t, 2, w.Count())

	require.NoError(t, w.Finalize(catalog, Header{SourceFile: "Dataset_syn.txt", ResultType: "Sequest", Enzyme: "Trypsin"}))
	require.NoError(t, w.Close(), "close after finalize is a no-op")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 2, queryInt(t, db, "SELECT COUNT(*) FROM PSMs"))
	assert.Equal(t, 4, queryInt(t, db, "SELECT COUNT(*) FROM PSMScores"))
	assert.Equal(t, 2, queryInt(t, db, "SELECT COUNT(*) FROM PSMModifications WHERE PSMId = 1"))
	assert.Equal(t, 0, queryInt(t, db, "SELECT COUNT(*) FROM PSMModifications WHERE PSMId = 2"))

	var modSeq, modString string
	var ppm float64
	require.NoError(t, db.QueryRow("SELECT ModifiedSequence, ModString, MassErrorPPM FROM PSMs WHERE PSMId = 1").Scan(&modSeq, &modString, &ppm))
	assert.Equal(t, "M*ACDEFGHIK", modSeq)
	assert.Equal(t, "Plus1Oxy@M1;IodoAcet@C3", modString)
	assert.Equal(t, 1.5, ppm)

	var protein string
	require.NoError(t, db.QueryRow("SELECT Protein FROM PSMs WHERE PSMId = 1").Scan(&protein))
	assert.Equal(t, "sp|P1|PROT1", protein, "first reported protein")
	require.NoError(t, db.QueryRow("SELECT Protein FROM PSMs WHERE PSMId = 2").Scan(&protein))
	assert.Equal(t, "", protein)

	var terminus, symbol string
	require.NoError(t, db.QueryRow("SELECT Terminus, Symbol FROM PSMModifications WHERE MassCorrectionTag = 'Plus1Oxy'").Scan(&terminus, &symbol))
	assert.Equal(t, "<", terminus)
	assert.Equal(t, "*", symbol)

	var firstScore string
	require.NoError(t, db.QueryRow("SELECT Name FROM PSMScores WHERE PSMId = 1 ORDER BY rowid LIMIT 1").Scan(&firstScore))
	assert.Equal(t, "DelCn", firstScore, "scores written in name order")

	var start sql.NullInt64
	require.NoError(t, db.QueryRow("SELECT ResidueStart FROM PSMProteins WHERE Protein = 'sp|P2|PROT2'").Scan(&start))
	assert.False(t, start.Valid, "unknown span stored as NULL")

	assert.Equal(t, 2, queryInt(t, db, "SELECT COUNT(*) FROM ModificationDefinitions"))
	assert.Equal(t, 2, queryInt(t, db, "SELECT PSMCount FROM HeaderTable"))
	assert.Equal(t, schemaVersion, queryInt(t, db, "SELECT version FROM HeaderTable"))
}

func TestWriterCloseRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abandoned.db")
	w, err := NewWriter(path)
	require.NoError(t, err)

	_, psm := testCatalogAndPSM(t)
	require.NoError(t, w.WritePSM(psm))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 0, queryInt(t, db, "SELECT COUNT(*) FROM PSMs"))
}

func TestWriterFinalizeWithoutCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Finalize(nil, Header{}))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 0, queryInt(t, db, "SELECT PSMCount FROM HeaderTable"))
	assert.Equal(t, 0, queryInt(t, db, "SELECT COUNT(*) FROM ModificationDefinitions"))
}
