package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/shalisap/thesis-tor"
	"github.com/shalisap/thesis-tor/crypto"
	"github.com/shalisap/thesis-tor/dirparse"
	"github.com/shalisap/thesis-tor/dirvote"
	"github.com/shalisap/thesis-tor/logging"
	"github.com/spf13/cobra"
)

var (
	identityArg      string
	signingKeyFile   string
	legacyIDArg      string
	legacyKeyFile    string
	measuredBWFile   string
	consensusOutFile string
)

// consensusCmd represents the consensus command
var consensusCmd = &cobra.Command{
	Use:   "consensus [vote files...]",
	Short: "Assemble a signed consensus from vote documents.",
	Long: `Parses the given vote files, computes a consensus, and signs it with the
given signing key. The identity fingerprint must match one of the voters so
that the signature can be attached to the right voter entry.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return assembleConsensus(args)
	},
}

func init() {
	rootCmd.AddCommand(consensusCmd)

	consensusCmd.Flags().StringVar(&identityArg, "identity", "", "authority identity fingerprint (40 hex digits)")
	consensusCmd.Flags().StringVar(&signingKeyFile, "signing-key", "", "path to the signing key file")
	consensusCmd.Flags().StringVar(&legacyIDArg, "legacy-id", "", "legacy identity fingerprint (40 hex digits)")
	consensusCmd.Flags().StringVar(&legacyKeyFile, "legacy-signing-key", "", "path to the legacy signing key file")
	consensusCmd.Flags().StringVar(&measuredBWFile, "measured-bw", "", "path to a bandwidth authority measurement file")
	consensusCmd.Flags().StringVarP(&consensusOutFile, "out", "o", "", "write the consensus here instead of stdout")
	cobra.CheckErr(consensusCmd.MarkFlagRequired("identity"))
	cobra.CheckErr(consensusCmd.MarkFlagRequired("signing-key"))
}

func assembleConsensus(voteFiles []string) error {
	identity, err := tor.DigestFromHex(identityArg)
	if err != nil {
		return err
	}
	signingKey, err := crypto.ReadPrivateKeyFile(signingKeyFile)
	if err != nil {
		return err
	}

	votes := make([]*tor.NetworkStatus, 0, len(voteFiles))
	for _, file := range voteFiles {
		b, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		vote, err := dirparse.ParseVote(string(b))
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		votes = append(votes, vote)
	}

	asm := &dirvote.Assembler{}
	if measuredBWFile != "" {
		if asm.Measured, err = readMeasuredBW(measuredBWFile); err != nil {
			return err
		}
	}

	var (
		legacyID  *tor.Digest
		legacyKey = signingKey
	)
	if legacyIDArg != "" {
		d, err := tor.DigestFromHex(legacyIDArg)
		if err != nil {
			return err
		}
		legacyID = &d
		if legacyKeyFile != "" {
			if legacyKey, err = crypto.ReadPrivateKeyFile(legacyKeyFile); err != nil {
				return err
			}
		}
	}

	text, err := asm.Assemble(votes, identity, signingKey, legacyID, legacyKey)
	if err != nil {
		return err
	}
	return writeOutput(consensusOutFile, text)
}

// readMeasuredBW loads a bandwidth authority measurement file. Malformed
// lines are skipped with a warning, as are comment lines and the leading
// timestamp line.
func readMeasuredBW(file string) (map[tor.Digest]uint64, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	logger := logging.New("cli")
	var lines []*dirvote.MeasuredBWLine
	for _, raw := range strings.SplitAfter(string(b), "\n") {
		if raw == "" || strings.HasPrefix(raw, "#") || !strings.Contains(raw, "=") {
			continue
		}
		line, err := dirvote.ParseMeasuredBWLine(raw)
		if err != nil {
			logger.Warnf("%s: %v", file, err)
			continue
		}
		lines = append(lines, line)
	}
	return dirvote.MeasuredBWMap(lines), nil
}

func writeOutput(file, text string) error {
	if file == "" {
		_, err := fmt.Print(text)
		return err
	}
	return os.WriteFile(file, []byte(text), 0o644)
}
