// Package cli implements the dirauth command-line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/shalisap/thesis-tor/logging"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "dirauth",
		Short: "A command-line utility for v3 directory authority voting.",
		Long: `dirauth works with the documents of the v3 directory voting protocol.
It can generate authority keys and certificates, assemble a signed consensus
from a set of vote documents, merge detached signature sets into a consensus,
and verify the signatures on a consensus against a set of certificates.

Use 'dirauth help <command>' to view the parameters of each command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dirauth.yaml)")

	rootCmd.PersistentFlags().String("log-level", "info", "sets the log level (debug, info, warn, error)")
	cobra.CheckErr(viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".dirauth" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".dirauth")
	}

	viper.SetEnvPrefix("dirauth")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	logging.SetLogLevel(viper.GetString("log-level"))
}
