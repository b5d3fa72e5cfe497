package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/phrp/pkg/core"
	"github.com/ChrisMcGann/phrp/pkg/filter"
	"github.com/ChrisMcGann/phrp/pkg/writer/sqlite"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a search engine result file to a SQLite PSM database",
	Long: `Read a search engine result file, resolve every modification and write the
normalised PSMs to a SQLite database.

Examples:
  # Auto-detect the engine from the file name
  phrp convert --in Dataset_msgfplus.tsv --out Dataset.db

  # Sequest synopsis with a modification definitions file
  phrp convert --in Dataset_syn.txt --out Dataset.db --mod-defs Dataset_ModDefs.txt

  # Keep confident, fully tryptic PSMs only
  phrp convert --in Dataset_msgfplus.tsv --out Dataset.db --min-termini 2 --max-ppm 10 --score 'QValue<=0.01'`,
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	// Validate input file exists
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}

	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}

	reader, err := openStream(&opts, inputFile)
	if err != nil {
		return err
	}
	defer reader.Close()

	fmt.Printf("Converting %s to %s...\n", inputFile, outputFile)
	fmt.Printf("Result type: %s\n", reader.ResultType())
	if reader.Detection().Fallback() {
		fmt.Printf("Result type guessed from the .tsv extension; use --type to override\n")
	}
	if opts.Filter.Enabled() {
		fmt.Printf("Filters: max ppm %.1f, max Da %.3f, min termini %d, charges %v, scores %v\n",
			opts.Filter.MaxAbsPPM, opts.Filter.MaxAbsDa, opts.Filter.MinTrypticTermini, opts.Filter.Charges, opts.Filter.Scores)
	}

	writer, err := sqlite.NewWriter(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	count := 0
	filtered := 0
	rejected := make(map[filter.Reason]int)

	for reader.Next() {
		psm := reader.PSM()
		logDiagnostics(reader.Diagnostics())

		if ok, reason := opts.Filter.Apply(psm); !ok {
			filtered++
			rejected[reason]++
			continue
		}

		if err := writer.WritePSM(psm); err != nil {
			return fmt.Errorf("failed to write PSM %s: %w", psm.Name(), err)
		}

		count++
		if count%10000 == 0 {
			fmt.Printf("Processed %d PSMs...\n", count)
		}
	}
	logDiagnostics(reader.Diagnostics())

	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}

	catalog := reader.Catalog()
	if err := writer.Finalize(catalog, sqlite.Header{
		SourceFile: inputFile,
		ResultType: reader.ResultType().String(),
		Enzyme:     opts.Enzyme,
	}); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	if catalogOut != "" {
		if err := writeCatalog(catalogOut, catalog); err != nil {
			return err
		}
	}

	counts := reader.Counts()
	fmt.Printf("\nConversion complete!\n")
	fmt.Printf("Processed: %d PSMs\n", count)
	if counts.Skipped > 0 {
		fmt.Printf("Skipped: %d records (see warnings)\n", counts.Skipped)
	}
	if counts.Duplicates > 0 {
		fmt.Printf("Duplicates: %d\n", counts.Duplicates)
	}
	if filtered > 0 {
		fmt.Printf("Filtered: %d PSMs %v\n", filtered, rejected)
	}
	if auto := catalog.AutoDefined(); len(auto) > 0 {
		fmt.Printf("Auto-defined modifications: %d\n", len(auto))
	}
	fmt.Printf("Output: %s\n", outputFile)

	return nil
}

func writeCatalog(path string, catalog *core.ModificationCatalog) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create catalog file: %w", err)
	}
	if _, err := catalog.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return f.Close()
}
