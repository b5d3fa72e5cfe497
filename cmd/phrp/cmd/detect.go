package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/phrp/pkg/detect"
)

var detectCmd = &cobra.Command{
	Use:   "detect [file...]",
	Short: "Print the search engine that produced each result file",
	Long: `Classify result files by name and, when the name is not conclusive, by header.
Files that match no engine are reported as Unknown.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	detector, err := detect.NewDetector(len(args))
	if err != nil {
		return err
	}

	unknown := 0
	for _, path := range args {
		res, err := detector.DetectFile(path)
		if err != nil {
			unknown++
			logger.Warn("format undetermined", "path", path, "error", err)
			fmt.Printf("%s\t%s\n", path, res.Type)
			continue
		}
		fmt.Printf("%s\t%s\t%s\n", path, res.Type, res.Rule)
	}

	if unknown == len(args) {
		return fmt.Errorf("no file could be classified")
	}
	return nil
}
