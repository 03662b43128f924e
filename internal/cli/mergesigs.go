package cli

import (
	"fmt"
	"os"

	"github.com/shalisap/thesis-tor/dirparse"
	"github.com/spf13/cobra"
)

var mergeOutFile string

// mergeSigsCmd represents the merge-sigs command
var mergeSigsCmd = &cobra.Command{
	Use:   "merge-sigs [consensus file] [signature files...]",
	Short: "Merge detached signature sets into a consensus.",
	Long: `Parses a consensus and one or more detached signature set files, attaches
the signatures to the consensus, and writes out the combined document.
Signature sets bound to a different consensus digest are rejected.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mergeSigs(args[0], args[1:])
	},
}

func init() {
	rootCmd.AddCommand(mergeSigsCmd)

	mergeSigsCmd.Flags().StringVarP(&mergeOutFile, "out", "o", "", "write the combined consensus here instead of stdout")
}

func mergeSigs(consensusFile string, sigFiles []string) error {
	b, err := os.ReadFile(consensusFile)
	if err != nil {
		return err
	}
	con, err := dirparse.ParseConsensus(string(b))
	if err != nil {
		return fmt.Errorf("%s: %w", consensusFile, err)
	}

	total := 0
	for _, file := range sigFiles {
		sb, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		ds, err := dirparse.ParseDetachedSignatures(string(sb))
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		added, err := con.AddDetachedSignatures(ds)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		total += added
	}
	fmt.Fprintf(os.Stderr, "added %d signatures\n", total)

	text, err := dirparse.FormatConsensus(con)
	if err != nil {
		return err
	}
	return writeOutput(mergeOutFile, text)
}
