// Package config loads job options from a YAML file, a .env file and the
// environment, and reads search tool parameter files.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/phrp/pkg/filter"
)

// Environment variables that override the options file
const (
	EnvEnzyme             = "PHRP_ENZYME"
	EnvDedup              = "PHRP_DEDUP"
	EnvModDefs            = "PHRP_MOD_DEFS"
	EnvMassCorrectionTags = "PHRP_MASS_CORRECTION_TAGS"
	EnvSearchParams       = "PHRP_SEARCH_PARAMS"
)

// Options is everything a conversion job needs besides the result file.
type Options struct {
	ResultType                  string        `yaml:"result_type"`
	ModificationDefinitionsFile string        `yaml:"mod_defs"`
	MassCorrectionTagsFile      string        `yaml:"mass_correction_tags"`
	SearchParamsFile            string        `yaml:"search_params"`
	Enzyme                      string        `yaml:"enzyme"`
	Deduplicate                 bool          `yaml:"dedup"`
	MassDisagreementTolerance   float64       `yaml:"mass_tolerance"`
	Filter                      filter.Config `yaml:"filter"`
}

// Default returns the built-in options
func Default() Options {
	return Options{
		Enzyme:                    "trypsin",
		MassDisagreementTolerance: 0.1,
	}
}

// Load reads an options file over the defaults. An empty path returns the defaults.
func Load(path string) (Options, error) {
	opts := Default()
	if path == "" {
		return opts, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return opts, fmt.Errorf("failed to open options file: %w", err)
	}
	defer f.Close()

	if err := opts.Decode(f); err != nil {
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Decode overlays YAML options onto o.
func (o *Options) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(o); err != nil && err != io.EOF {
		return fmt.Errorf("invalid options: %w", err)
	}
	return o.Filter.Compile()
}

// LoadEnv loads a .env file if present and applies environment overrides.
func (o *Options) LoadEnv() error {
	_ = godotenv.Load()
	return o.ApplyEnv(os.Getenv)
}

// ApplyEnv applies overrides from a lookup function.
func (o *Options) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvEnzyme)); v != "" {
		o.Enzyme = v
	}
	if v := strings.TrimSpace(getenv(EnvDedup)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value '%s': %w", EnvDedup, v, err)
		}
		o.Deduplicate = b
	}
	if v := strings.TrimSpace(getenv(EnvModDefs)); v != "" {
		o.ModificationDefinitionsFile = v
	}
	if v := strings.TrimSpace(getenv(EnvMassCorrectionTags)); v != "" {
		o.MassCorrectionTagsFile = v
	}
	if v := strings.TrimSpace(getenv(EnvSearchParams)); v != "" {
		o.SearchParamsFile = v
	}
	return nil
}
