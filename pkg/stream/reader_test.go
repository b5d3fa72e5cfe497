package stream

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/phrp/pkg/core"
	"github.com/ChrisMcGann/phrp/pkg/detect"
	"github.com/ChrisMcGann/phrp/pkg/reader/engine"
)

const msgfHeader = "#SpecFile\tSpecID\tScanNum\tFragMethod\tPrecursor\tIsotopeError\tPrecursorError(ppm)\tCharge\tPeptide\tProtein\tDeNovoScore\tMSGFScore\tSpecEValue\tEValue\tQValue\tPepQValue"

func msgfRow(scan, charge int, precursor, peptide, specEValue string) string {
	return fmt.Sprintf("run.mzML\tindex=%d\t%d\tHCD\t%s\t0\t0.0\t%d\t%s\tsp|P1|PROT1(pre=K,post=A)\t50\t40\t%s\t1e-5\t0\t0",
		scan, scan, precursor, charge, peptide, specEValue)
}

// testMSGF has a clean PSM, an oxidised PSM picked one 13C peak off, an
// invalid residue, a duplicate of the first record and an acetylated
// protein C-terminal peptide.
var testMSGF = strings.Join([]string{
	msgfHeader,
	msgfRow(1000, 2, "402.207618797", "K.SAMPLER.A", "1e-12"),
	msgfRow(1001, 2, "410.706753712", "K.SAM+15.994915PLER.A", "1e-11"),
	msgfRow(1002, 3, "300.0", "K.PEPBIDE.R", "1e-3"),
	msgfRow(1000, 2, "402.207618797", "K.SAMPLER.A", "1e-9"),
	msgfRow(1003, 2, "423.212901297", "R.+42.010565SAMPLER.-", "1e-10"),
}, "\n") + "\n"

func openString(t *testing.T, opts Options, name, content string) *Reader {
	t.Helper()
	r := New(opts)
	require.NoError(t, r.OpenReader(strings.NewReader(content), name))
	return r
}

func collect(r *Reader) ([]*core.PSM, []core.Diagnostic) {
	var psms []*core.PSM
	var diags []core.Diagnostic
	for r.Next() {
		psms = append(psms, r.PSM())
		diags = append(diags, r.Diagnostics()...)
	}
	diags = append(diags, r.Diagnostics()...)
	return psms, diags
}

func diagnosticsWithCode(diags []core.Diagnostic, code core.DiagnosticCode) []core.Diagnostic {
	var out []core.Diagnostic
	for _, d := range diags {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func TestReaderMSGFPlus(t *testing.T) {
	r := openString(t, Options{}, "Dataset_msgfplus.tsv", testMSGF)
	assert.Equal(t, engine.MSGFPlus, r.ResultType())
	assert.Equal(t, detect.RuleSuffix, r.Detection().Rule)
	assert.Equal(t, StateOpened, r.State())

	psms, diags := collect(r)
	require.NoError(t, r.Err())
	require.Len(t, psms, 4)
	assert.Equal(t, StateExhausted, r.State())
	assert.False(t, r.CanRead())
	assert.Equal(t, Counts{Records: 5, Yielded: 4, Skipped: 1}, r.Counts())

	t.Run("clean PSM", func(t *testing.T) {
		psm := psms[0]
		assert.Equal(t, 1000, psm.ScanNumber)
		assert.Equal(t, 2, psm.Charge)
		assert.Equal(t, "K", psm.Prefix)
		assert.Equal(t, "SAMPLER", psm.CleanSequence)
		assert.Equal(t, "A", psm.Suffix)
		assert.Equal(t, 2, psm.TrypticTermini)
		assert.Equal(t, 0, psm.MissedCleavages)
		assert.Empty(t, psm.Modifications)
		assert.InDelta(t, 802.4006846608911, psm.MonoisotopicMass, 1e-9)
		assert.InDelta(t, 0, psm.MassErrorPPM, 0.01)
		assert.Equal(t, 0, psm.IsotopeShift)
		assert.Equal(t, "HCD", psm.CollisionMode)
		assert.Equal(t, "1e-12", psm.GetScore("SpecEValue", ""))
		assert.Equal(t, []core.ProteinMatch{{Name: "sp|P1|PROT1"}}, psm.Proteins)
		assert.Equal(t, 2, psm.RecordNumber)
		assert.Equal(t, "MSGFPlus", psm.SourceFormat)
	})

	t.Run("isotope corrected oxidation", func(t *testing.T) {
		psm := psms[1]
		require.Len(t, psm.Modifications, 1)
		mod := psm.Modifications[0]
		assert.Equal(t, 3, mod.Position)
		assert.Equal(t, 'M', mod.Residue)
		assert.Equal(t, "Plus1Oxy", mod.Modification.MassCorrectionTag)
		assert.True(t, mod.Modification.AutoDefined)
		assert.InDelta(t, 818.3955996608911, psm.MonoisotopicMass, 1e-9)
		assert.Equal(t, 1, psm.IsotopeShift)
		assert.InDelta(t, 0, psm.MassErrorDa, 1e-5)
		assert.InDelta(t, 0, psm.MassErrorPPM, 0.01)
	})

	t.Run("N-terminal acetyl at a protein C-terminus", func(t *testing.T) {
		psm := psms[3]
		assert.Equal(t, 1003, psm.ScanNumber)
		assert.Equal(t, "-", psm.Suffix)
		assert.Equal(t, 2, psm.TrypticTermini)
		require.Len(t, psm.Modifications, 1)
		mod := psm.Modifications[0]
		assert.Equal(t, 1, mod.Position)
		assert.Equal(t, rune(core.PeptideNTerminus), mod.Terminus)
		assert.Equal(t, "Acetyl", mod.Modification.MassCorrectionTag)
		assert.Equal(t, "Acetyl@S1", psm.ModString())
		assert.InDelta(t, 844.4112496608911, psm.MonoisotopicMass, 1e-9)
	})

	t.Run("sequence IDs", func(t *testing.T) {
		assert.Equal(t, 1, psms[0].SequenceID)
		assert.Equal(t, 2, psms[1].SequenceID)
		assert.Equal(t, 1, psms[2].SequenceID, "duplicate shares the ID")
		assert.Equal(t, 3, psms[3].SequenceID)
	})

	t.Run("diagnostics", func(t *testing.T) {
		invalid := diagnosticsWithCode(diags, core.CodeInvalidResidue)
		require.Len(t, invalid, 1)
		assert.Equal(t, core.SeverityWarning, invalid[0].Severity)
		assert.Equal(t, 4, invalid[0].Line)
		assert.Contains(t, invalid[0].Raw, "PEPBIDE")
		assert.Equal(t, "Dataset_msgfplus.tsv", invalid[0].Path)

		auto := diagnosticsWithCode(diags, core.CodeAutoDefinedModification)
		require.Len(t, auto, 2)
		assert.Equal(t, "Plus1Oxy", auto[0].Modification.MassCorrectionTag)
		assert.Equal(t, "Acetyl", auto[1].Modification.MassCorrectionTag)
		assert.Equal(t, core.SeverityInfo, auto[0].Severity)
	})

	assert.Len(t, r.Catalog().AutoDefined(), 2)
	assert.False(t, r.Next(), "exhausted reader stays exhausted")
}

func TestReaderDeduplication(t *testing.T) {
	dupes := strings.Join([]string{
		msgfHeader,
		msgfRow(500, 2, "402.207618797", "K.SAMPLER.A", "1e-12"),
		msgfRow(500, 2, "402.207618797", "K.SAMPLER.A", "1e-8"),
		msgfRow(500, 3, "268.474171", "K.SAMPLER.A", "1e-8"),
	}, "\n")

	tests := []struct {
		name           string
		dedup          bool
		wantYielded    int
		wantDuplicates int
	}{
		{"disabled", false, 3, 0},
		{"enabled", true, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := openString(t, Options{ResultType: engine.MSGFPlus, Deduplicate: tt.dedup}, "in-memory", dupes)
			psms, _ := collect(r)
			require.NoError(t, r.Err())
			assert.Len(t, psms, tt.wantYielded)
			assert.Equal(t, tt.wantDuplicates, r.Counts().Duplicates)
			assert.Equal(t, "1e-12", psms[0].GetScore("SpecEValue", ""), "first record wins")
		})
	}
}

const sequestHeader = "HitNum\tScanNum\tScanCount\tChargeState\tMH\tXCorr\tDelCn\tSp\tReference\tMultiProtein\tPeptide\tDelCn2\tRankSp\tRankXc\tDelM"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReaderSequestWithModDefs(t *testing.T) {
	modDefs := writeFile(t, "Dataset_ModDefs.txt", "*\t15.994915\tM\tD\tPlus1Oxy\n-\t57.021464\tC\tS\tIodoAcet\n")

	input := strings.Join([]string{
		sequestHeader,
		"1\t10\t1\t2\t1076.482909\t3.5\t0.0\t500\tProt1\t0\tK.ACDEFGHIK.L\t0.2\t1\t1\t0.002",
		"1\t11\t1\t2\t1223.518304\t3.1\t0.0\t450\tProt1\t0\tR.M*ACDEFGHIK.A\t0.2\t1\t1\t0",
		"1\t12\t1\t2\t1078.0\t2.9\t0.0\t400\tProt1\t0\tK.ACDEFGHIK.L\t0.2\t1\t1\t0",
		"1\t13\t1\t2\t1076.482909\t2.0\t0.0\t300\tProt1\t0\tK.ACDEF#GHIK.L\t0.2\t1\t1\t0",
	}, "\n") + "\n"

	r := openString(t, Options{ModificationDefinitionsFile: modDefs}, "Dataset_syn.txt", input)
	assert.Equal(t, engine.Sequest, r.ResultType())

	psms, diags := collect(r)
	require.NoError(t, r.Err())
	require.Len(t, psms, 3)

	first := psms[0]
	assert.Equal(t, "IodoAcet@C2", first.ModString())
	assert.InDelta(t, 1075.475632910379, first.MonoisotopicMass, 1e-9)
	assert.InDelta(t, 0.002, first.MassErrorDa, 1e-6)
	assert.InDelta(t, 0.002/1075.475632910379*1e6, first.MassErrorPPM, 1e-3)
	assert.InDelta(t, 1076.482909-core.ProtonMass+0.002, first.PrecursorNeutralMass, 1e-6)
	assert.Equal(t, "3.5", first.GetScore("XCorr", ""))

	second := psms[1]
	assert.Equal(t, "Plus1Oxy@M1;IodoAcet@C3", second.ModString())
	assert.Equal(t, "M*ACDEFGHIK", second.ModifiedSequence())
	assert.InDelta(t, 1222.5110278923742, second.MonoisotopicMass, 1e-9)

	disagreement := diagnosticsWithCode(diags, core.CodeMassDisagreement)
	require.Len(t, disagreement, 1)
	assert.Equal(t, 4, disagreement[0].Line)
	assert.Equal(t, 12, psms[2].ScanNumber, "mass disagreement does not drop the PSM")

	skipped := diagnosticsWithCode(diags, core.CodeRecordSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, 5, skipped[0].Line)
	assert.Contains(t, skipped[0].Message, core.ErrUnknownSymbol.Error())

	assert.Empty(t, r.Catalog().AutoDefined())
	iodo, ok := r.Catalog().LookupByTag("IodoAcet")
	require.True(t, ok)
	assert.Equal(t, 3, iodo.OccurrenceCount)
}

func TestReaderXTandem(t *testing.T) {
	bioml := `<?xml version="1.0"?>
<bioml label="models">
<group id="7" mh="1075.497558" z="2" type="model">
<protein label="sp|P1|PROT1">
<peptide start="1" end="100">
<domain id="7.1.1" start="1" end="9" mh="1075.497558" delta="0.0" hyperscore="40" expect="1e-6" pre="[" post="AG" seq="MPEPTIDEK">
<aa type="M" at="1" modified="15.994915" />
</domain>
</peptide>
</protein>
<group type="support" label="fragment ion mass spectrum">
<note label="Description">spectrum scan=4242 charge=2</note>
</group>
</group>
</bioml>
`
	r := openString(t, Options{}, "Dataset_xt.xml", bioml)
	assert.Equal(t, engine.XTandem, r.ResultType())

	psms, _ := collect(r)
	require.NoError(t, r.Err())
	require.Len(t, psms, 1)

	psm := psms[0]
	assert.Equal(t, 4242, psm.ScanNumber)
	assert.Equal(t, "-", psm.Prefix)
	assert.Equal(t, 2, psm.TrypticTermini)
	assert.Equal(t, "Plus1Oxy@M1", psm.ModString())
	assert.InDelta(t, 1074.4902811891968, psm.MonoisotopicMass, 1e-9)
	assert.Equal(t, []core.ProteinMatch{{Name: "sp|P1|PROT1", Start: 1, End: 9}}, psm.Proteins)
	assert.Equal(t, "40", psm.GetScore("hyperscore", ""))
}

func TestReaderIsotopicLabel(t *testing.T) {
	catalog := core.NewModificationCatalog()
	require.NoError(t, catalog.LoadModificationDefinitions(strings.NewReader("-\t0.997035\t*\tI\tN15\tN\n"), "labels.txt"))

	input := msgfHeader + "\n" + msgfRow(1, 2, "", "K.SAMPLER.A", "1e-10") + "\n"
	r := openString(t, Options{ResultType: engine.MSGFPlus, Catalog: catalog}, "labelled", input)

	psms, _ := collect(r)
	require.NoError(t, r.Err())
	require.Len(t, psms, 1)

	psm := psms[0]
	require.Len(t, psm.Modifications, 1)
	assert.Equal(t, 10, psm.Modifications[0].AtomCount)
	assert.Equal(t, 7, psm.Modifications[0].EndPosition)
	assert.InDelta(t, 812.3710346608912, psm.MonoisotopicMass, 1e-9)
	assert.InDelta(t, psm.MonoisotopicMass, psm.PrecursorNeutralMass, 1e-12, "no precursor reported")
	assert.Equal(t, 0.0, psm.MassErrorPPM)
	assert.Same(t, catalog, r.Catalog())
}

func TestReaderInvalidResidueLeavesCatalogUntouched(t *testing.T) {
	input := msgfHeader + "\n" + msgfRow(7, 2, "", "K.PEPB+123.456789IDE.R", "1e-3") + "\n"
	r := openString(t, Options{ResultType: engine.MSGFPlus}, "invalid", input)

	psms, diags := collect(r)
	require.NoError(t, r.Err())
	assert.Empty(t, psms)
	assert.Len(t, diagnosticsWithCode(diags, core.CodeInvalidResidue), 1)
	assert.Empty(t, diagnosticsWithCode(diags, core.CodeAutoDefinedModification))
	assert.Empty(t, r.Catalog().AutoDefined())

	_, used := r.Catalog().LookupBySymbol('*')
	assert.False(t, used, "no symbol consumed")
}

func TestReaderLowPrecisionMassAutoDefines(t *testing.T) {
	catalog := core.NewModificationCatalog()
	_, err := catalog.Add(core.NewModificationDefinition('*', 15.994915, "M", core.KindDynamic, "Plus1Oxy"))
	require.NoError(t, err)

	input := msgfHeader + "\n" +
		msgfRow(1, 2, "", "K.SAM+15.995PLER.A", "1e-10") + "\n" +
		msgfRow(2, 2, "", "K.SAM+15.994915PLER.A", "1e-10") + "\n"
	r := openString(t, Options{ResultType: engine.MSGFPlus, Catalog: catalog}, "rounded", input)

	psms, _ := collect(r)
	require.NoError(t, r.Err())
	require.Len(t, psms, 2)

	// three decimals never equal the six decimal definition
	rounded := psms[0].Modifications[0].Modification
	assert.Equal(t, "UnkMod00", rounded.MassCorrectionTag)
	assert.True(t, rounded.AutoDefined)
	assert.Equal(t, '#', rounded.Symbol)

	exact := psms[1].Modifications[0].Modification
	assert.Equal(t, "Plus1Oxy", exact.MassCorrectionTag)
	assert.False(t, exact.AutoDefined)
}

func TestReaderFallbackDetection(t *testing.T) {
	input := "#SpecFile\tScanNum\tCharge\tPeptide\tPrecursor\n" +
		"run.mzML\t5\t2\tK.SAMPLER.A\t402.207618797\n"

	r := openString(t, Options{}, "results.tsv", input)
	assert.Equal(t, engine.MSGFPlus, r.ResultType())
	assert.True(t, r.Detection().Fallback())

	diags := r.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, core.CodeFallbackDetection, diags[0].Code)

	psms, _ := collect(r)
	require.Len(t, psms, 1)
	assert.Equal(t, "SAMPLER", psms[0].CleanSequence)
}

func TestReaderOpenFailures(t *testing.T) {
	badDefs := writeFile(t, "bad_ModDefs.txt", "Symbol\tMass\n*\tnot-a-mass\tM\n")

	tests := []struct {
		name     string
		opts     Options
		file     string
		content  string
		wantErr  error
		wantCode core.DiagnosticCode
	}{
		{
			name:     "malformed modification definitions",
			opts:     Options{ModificationDefinitionsFile: badDefs},
			file:     "Dataset_msgfplus.tsv",
			content:  testMSGF,
			wantErr:  core.ErrCatalogLoad,
			wantCode: core.CodeCatalogLoadError,
		},
		{
			name:     "missing mass correction tags",
			opts:     Options{MassCorrectionTagsFile: filepath.Join(t.TempDir(), "missing.txt")},
			file:     "Dataset_msgfplus.tsv",
			content:  testMSGF,
			wantErr:  core.ErrCatalogLoad,
			wantCode: core.CodeCatalogLoadError,
		},
		{
			name:     "undetermined format",
			file:     "notes.dat",
			content:  "nothing to see here\n",
			wantErr:  core.ErrFormatUndetermined,
			wantCode: core.CodeFormatUndetermined,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.opts)
			assert.Equal(t, StateCreated, r.State())

			err := r.OpenReader(strings.NewReader(tt.content), tt.file)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.Equal(t, StateError, r.State())
			assert.False(t, r.CanRead())
			assert.False(t, r.Next())
			assert.Len(t, r.Errors(), 1)

			diags := r.Diagnostics()
			require.NotEmpty(t, diags)
			assert.Equal(t, tt.wantCode, diags[len(diags)-1].Code)
			assert.Equal(t, core.SeverityError, diags[len(diags)-1].Severity)
		})
	}
}

func TestReaderLifecycle(t *testing.T) {
	r := New(Options{ResultType: engine.MSGFPlus})
	assert.False(t, r.Next(), "not opened yet")

	require.NoError(t, r.OpenReader(strings.NewReader(testMSGF), "x"))
	assert.Error(t, r.OpenReader(strings.NewReader(testMSGF), "x"), "opening twice")

	require.True(t, r.Next())
	assert.Equal(t, StateReading, r.State())
	assert.True(t, r.CanRead())

	require.NoError(t, r.Close())
	assert.Equal(t, StateExhausted, r.State())
	assert.False(t, r.Next())
	assert.NoError(t, r.Close(), "closing twice")
}

func TestOpenFile(t *testing.T) {
	path := writeFile(t, "Dataset_msgfplus.tsv", testMSGF)

	detector, err := detect.NewDetector(4)
	require.NoError(t, err)

	r, err := Open(path, Options{Detector: detector, Deduplicate: true})
	require.NoError(t, err)
	defer r.Close()

	psms, _ := collect(r)
	require.NoError(t, r.Err())
	assert.Len(t, psms, 3)
	assert.Equal(t, path, psms[0].SourceFile)
	assert.Equal(t, StateExhausted, r.State())

	_, err = Open(filepath.Join(t.TempDir(), "missing_msgfplus.tsv"), Options{})
	assert.Error(t, err)
}
