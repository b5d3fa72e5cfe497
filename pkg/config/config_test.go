package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/phrp/pkg/filter"
)

const testOptions = `
result_type: msgf+
mod_defs: /data/Dataset_ModDefs.txt
dedup: true
mass_tolerance: 0.05
filter:
  max_abs_ppm: 10
  max_abs_da: 0.02
  min_tryptic_termini: 1
  charges: [2, 3]
  scores:
    - SpecEValue<=1e-10
`

func TestDecode(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Decode(strings.NewReader(testOptions)))

	assert.Equal(t, "msgf+", opts.ResultType)
	assert.Equal(t, "/data/Dataset_ModDefs.txt", opts.ModificationDefinitionsFile)
	assert.Equal(t, "trypsin", opts.Enzyme, "default kept")
	assert.True(t, opts.Deduplicate)
	assert.Equal(t, 0.05, opts.MassDisagreementTolerance)
	assert.Equal(t, 10.0, opts.Filter.MaxAbsPPM)
	assert.Equal(t, 0.02, opts.Filter.MaxAbsDa)
	assert.Equal(t, 1, opts.Filter.MinTrypticTermini)
	assert.Equal(t, []int{2, 3}, opts.Filter.Charges)
	assert.Equal(t, []filter.ScoreThreshold{{Name: "SpecEValue", Op: "<=", Value: 1e-10}}, opts.Filter.Scores)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown field", "dedupe: true\n"},
		{"wrong type", "dedup: maybe\n"},
		{"bad score rule", "filter:\n  scores: [\"XCorr\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Default()
			assert.Error(t, opts.Decode(strings.NewReader(tt.input)))
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Decode(strings.NewReader("")))
	assert.Equal(t, Default(), opts)
}

func TestLoad(t *testing.T) {
	opts, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), opts)

	path := filepath.Join(t.TempDir(), "phrp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enzyme: lys-c\n"), 0o644))
	opts, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lys-c", opts.Enzyme)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvEnzyme:             " chymotrypsin ",
		EnvDedup:              "true",
		EnvModDefs:            "mods.txt",
		EnvMassCorrectionTags: "tags.txt",
		EnvSearchParams:       "MSGFPlus_Mods.txt",
	}

	opts := Default()
	require.NoError(t, opts.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "chymotrypsin", opts.Enzyme)
	assert.True(t, opts.Deduplicate)
	assert.Equal(t, "mods.txt", opts.ModificationDefinitionsFile)
	assert.Equal(t, "tags.txt", opts.MassCorrectionTagsFile)
	assert.Equal(t, "MSGFPlus_Mods.txt", opts.SearchParamsFile)

	unset := Default()
	require.NoError(t, unset.ApplyEnv(func(string) string { return "" }))
	assert.Equal(t, Default(), unset)

	bad := Default()
	err := bad.ApplyEnv(func(k string) string {
		if k == EnvDedup {
			return "sometimes"
		}
		return ""
	})
	assert.Error(t, err)
}
