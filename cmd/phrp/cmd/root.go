// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/phrp/pkg/config"
	"github.com/ChrisMcGann/phrp/pkg/core"
	"github.com/ChrisMcGann/phrp/pkg/filter"
	"github.com/ChrisMcGann/phrp/pkg/reader/engine"
	"github.com/ChrisMcGann/phrp/pkg/stream"
)

var (
	// Flags shared by convert and summarize
	configFile         string
	inputFile          string
	resultType         string
	modDefsFile        string
	massCorrectionTags string
	searchParamsFile   string
	enzymeName         string
	dedup              bool
	massTolerance      float64
	verbose            bool

	// Flags for convert command
	outputFile      string
	catalogOut      string
	maxPPM          float64
	maxDa           float64
	minTermini      int
	charges         string
	dropAutoDefined bool
	scoreRules      []string
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

var rootCmd = &cobra.Command{
	Use:   "phrp",
	Short: "phrp - peptide hit results processor",
	Long: `phrp reads peptide identifications from SEQUEST, X!Tandem, Inspect, MS-GF+,
MSAlign, MODa, MODPlus, MSPathFinder, TopPIC and MaxQuant result files and
writes one normalised PSM table.

Every modification is resolved to a mass, a mass correction tag and a symbol;
masses and precursor errors (ppm, isotope corrected) are recomputed.`,
	Version: "1.0.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
		slog.SetDefault(logger)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(summarizeCmd)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every diagnostic")

	for _, c := range []*cobra.Command{convertCmd, summarizeCmd} {
		c.Flags().StringVarP(&configFile, "config", "c", "", "YAML options file")
		c.Flags().StringVarP(&resultType, "type", "t", "", "Result type (auto-detect if not specified)")
		c.Flags().StringVar(&modDefsFile, "mod-defs", "", "Modification definitions file (tab-delimited)")
		c.Flags().StringVar(&massCorrectionTags, "mass-correction-tags", "", "Mass correction tags file (tab-delimited)")
		c.Flags().StringVar(&searchParamsFile, "search-params", "", "Search tool parameter file (MS-GF+ style key=value)")
		c.Flags().StringVar(&enzymeName, "enzyme", "", "Enzyme name or MS-GF+ EnzymeID (default trypsin)")
		c.Flags().BoolVar(&dedup, "dedup", false, "Skip PSMs with a scan, sequence and charge already seen")
		c.Flags().Float64Var(&massTolerance, "mass-tolerance", 0, "Mass disagreement warning threshold in Da (default 0.1)")
		c.Flags().Float64Var(&maxPPM, "max-ppm", 0, "Keep only PSMs within this |ppm| (0 = no limit)")
		c.Flags().Float64Var(&maxDa, "max-da", 0, "Keep only PSMs within this |Da| after isotope correction (0 = no limit)")
		c.Flags().IntVar(&minTermini, "min-termini", 0, "Minimum tryptic termini (0, 1 or 2)")
		c.Flags().StringVar(&charges, "charges", "", "Comma-separated charges to keep (e.g., '2,3')")
		c.Flags().BoolVar(&dropAutoDefined, "drop-auto-defined", false, "Drop PSMs with auto-defined modifications")
		c.Flags().StringArrayVar(&scoreRules, "score", nil, "Score rule like 'SpecEValue<=1e-10' (repeatable)")
	}

	convertCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input result file (required)")
	convertCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	convertCmd.Flags().StringVar(&catalogOut, "catalog-out", "", "Write the final modification definitions to this file")

	convertCmd.MarkFlagRequired("in")
	convertCmd.MarkFlagRequired("out")
}

// loadOptions applies defaults < options file < environment < flags.
func loadOptions(cmd *cobra.Command) (config.Options, error) {
	opts, err := config.Load(configFile)
	if err != nil {
		return opts, err
	}
	if err := opts.LoadEnv(); err != nil {
		return opts, err
	}

	flags := cmd.Flags()
	if flags.Changed("type") {
		opts.ResultType = resultType
	}
	if flags.Changed("mod-defs") {
		opts.ModificationDefinitionsFile = modDefsFile
	}
	if flags.Changed("mass-correction-tags") {
		opts.MassCorrectionTagsFile = massCorrectionTags
	}
	if flags.Changed("search-params") {
		opts.SearchParamsFile = searchParamsFile
	}
	if flags.Changed("enzyme") {
		opts.Enzyme = enzymeName
	}
	if flags.Changed("dedup") {
		opts.Deduplicate = dedup
	}
	if flags.Changed("mass-tolerance") {
		opts.MassDisagreementTolerance = massTolerance
	}
	if flags.Changed("max-ppm") {
		opts.Filter.MaxAbsPPM = maxPPM
	}
	if flags.Changed("max-da") {
		opts.Filter.MaxAbsDa = maxDa
	}
	if flags.Changed("min-termini") {
		opts.Filter.MinTrypticTermini = minTermini
	}
	if flags.Changed("charges") {
		zs, err := filter.ParseCharges(charges)
		if err != nil {
			return opts, err
		}
		opts.Filter.Charges = zs
	}
	if flags.Changed("drop-auto-defined") {
		opts.Filter.DropAutoDefined = dropAutoDefined
	}
	if flags.Changed("score") {
		opts.Filter.ScoreRules = scoreRules
	}
	if err := opts.Filter.Compile(); err != nil {
		return opts, err
	}

	return opts, nil
}

// openStream builds the catalog and reader for one result file. A search
// parameter file also supplies the default mass error filter.
func openStream(opts *config.Options, path string) (*stream.Reader, error) {
	catalog := core.NewModificationCatalog()

	enzyme, err := core.LookupEnzyme(opts.Enzyme)
	if err != nil {
		return nil, err
	}

	if opts.SearchParamsFile != "" {
		f, err := os.Open(opts.SearchParamsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open search parameter file: %w", err)
		}
		params, err := config.ParseSearchParams(f, opts.SearchParamsFile)
		f.Close()
		if err != nil {
			return nil, err
		}
		if err := params.Seed(catalog); err != nil {
			return nil, fmt.Errorf("%s: %w", opts.SearchParamsFile, err)
		}
		// an explicit enzyme option wins over the parameter file
		if opts.Enzyme == "" || opts.Enzyme == config.Default().Enzyme {
			enzyme = params.Enzyme
		}
		if params.ApplyTolerance(&opts.Filter) {
			logger.Info("precursor tolerance from search parameters", "tolerance", params.PrecursorTolerance, "unit", params.ToleranceUnit)
		}
		logger.Debug("loaded search parameters", "path", opts.SearchParamsFile, "mods", len(params.Mods), "enzyme", params.Enzyme.Name)
	}

	t := engine.Unknown
	if opts.ResultType != "" {
		var ok bool
		t, ok = engine.ParseResultType(opts.ResultType)
		if !ok {
			return nil, fmt.Errorf("unknown result type '%s'", opts.ResultType)
		}
	}

	reader, err := stream.Open(path, stream.Options{
		ResultType:                  t,
		ModificationDefinitionsFile: opts.ModificationDefinitionsFile,
		MassCorrectionTagsFile:      opts.MassCorrectionTagsFile,
		Catalog:                     catalog,
		Enzyme:                      enzyme,
		Deduplicate:                 opts.Deduplicate,
		MassDisagreementTolerance:   opts.MassDisagreementTolerance,
	})
	logDiagnostics(reader.Diagnostics())
	if err != nil {
		return nil, err
	}
	return reader, nil
}

// logDiagnostics writes diagnostics to the logger. Auto-defined modifications
// are logged as structured notices.
func logDiagnostics(diags []core.Diagnostic) {
	for _, d := range diags {
		switch {
		case d.Code == core.CodeAutoDefinedModification && d.Modification != nil:
			logger.Info("auto-defined modification",
				"tag", d.Modification.MassCorrectionTag,
				"mass", d.Modification.MassText,
				"symbol", string(d.Modification.Symbol),
				"line", d.Line)
		case d.Severity == core.SeverityError:
			logger.Error(d.Message, "code", d.Code, "path", d.Path, "line", d.Line)
		case d.Severity == core.SeverityWarning:
			logger.Warn(d.Message, "code", d.Code, "line", d.Line)
		default:
			logger.Debug(d.Message, "code", d.Code, "line", d.Line)
		}
	}
}
