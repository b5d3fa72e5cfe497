package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/phrp/pkg/stats"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a search engine result file",
	Long: `Print summary statistics about a result file: PSM count, precursor mass error
distribution, charge states, tryptic termini, missed cleavages, isotope shifts
and the modifications that were found.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}

	reader, err := openStream(&opts, args[0])
	if err != nil {
		return err
	}
	defer reader.Close()

	var acc stats.Accumulator
	for reader.Next() {
		psm := reader.PSM()
		logDiagnostics(reader.Diagnostics())
		if ok, _ := opts.Filter.Apply(psm); !ok {
			continue
		}
		acc.Add(psm)
	}
	logDiagnostics(reader.Diagnostics())
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}

	fmt.Printf("File: %s\n", args[0])
	fmt.Printf("Result type: %s\n", reader.ResultType())
	if err := acc.Summary().Write(os.Stdout); err != nil {
		return err
	}

	fmt.Printf("\nModifications:\n")
	if _, err := reader.Catalog().WriteTo(os.Stdout); err != nil {
		return err
	}
	return nil
}
