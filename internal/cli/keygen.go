package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shalisap/thesis-tor/crypto"
	"github.com/shalisap/thesis-tor/dirparse"
	"github.com/spf13/cobra"
)

var certLifetime time.Duration

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen [destination]",
	Short: "Generate authority keys and a certificate.",
	Long: `Generates a fresh authority identity key and signing key, writes both to the
destination directory in PEM form, and writes a certificate binding the
signing key to the identity key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := "."
		if len(args) > 0 {
			dest = args[0]
		}
		return keygen(dest)
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().DurationVar(&certLifetime, "lifetime", 365*24*time.Hour, "certificate lifetime")
}

func keygen(dest string) error {
	auth, err := crypto.GenerateAuthority(time.Now(), certLifetime)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if err := crypto.WritePrivateKeyFile(auth.IdentityKey, filepath.Join(dest, "identity_key.pem")); err != nil {
		return err
	}
	if err := crypto.WritePrivateKeyFile(auth.SigningKey, filepath.Join(dest, "signing_key.pem")); err != nil {
		return err
	}
	cert := dirparse.FormatCert(auth.Cert)
	if err := os.WriteFile(filepath.Join(dest, "certificate"), []byte(cert), 0o644); err != nil {
		return err
	}
	fmt.Println("fingerprint:", auth.Cert.IdentityDigest)
	return nil
}
