package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shalisap/thesis-tor/certstore"
	"github.com/shalisap/thesis-tor/dirparse"
	"github.com/shalisap/thesis-tor/dirvote"
	"github.com/spf13/cobra"
)

var certsDir string

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [consensus file]",
	Short: "Verify the signatures on a consensus.",
	Long: `Checks every signature on a consensus against the authority certificates
found in the certificate directory and reports how many are valid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return verifyConsensus(args[0])
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&certsDir, "certs", "", "directory of authority certificate files")
	cobra.CheckErr(verifyCmd.MarkFlagRequired("certs"))
}

func verifyConsensus(file string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	con, err := dirparse.ParseConsensus(string(b))
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	certs := certstore.New()
	entries, err := filepath.Glob(filepath.Join(certsDir, "*"))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		cb, err := os.ReadFile(entry)
		if err != nil {
			return err
		}
		cert, err := dirparse.ParseCert(string(cb))
		if err != nil {
			return fmt.Errorf("%s: %w", entry, err)
		}
		if err := certs.Add(cert); err != nil {
			return fmt.Errorf("%s: %w", entry, err)
		}
	}

	good, err := dirvote.CheckConsensusSignatures(con, certs)
	fmt.Printf("%d of %d signatures valid\n", good, len(con.Voters))
	return err
}
