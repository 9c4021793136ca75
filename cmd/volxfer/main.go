// Package main is the entrypoint for the volxfer CLI.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eugenetaranov/volxfer/internal/config"
	"github.com/eugenetaranov/volxfer/internal/logging"
	"github.com/eugenetaranov/volxfer/internal/output"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	debug      bool
	dryRun     bool
	noColor    bool
	configPath string
)

// Loaded in PersistentPreRunE.
var (
	cfg    *config.Config
	logger zerolog.Logger
	out    *output.Output
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "volxfer",
	Short: "volxfer - Transfer container volumes between Docker hosts",
	Long: `volxfer copies the contents of a local Docker volume into a volume on
another Docker host. The data is archived by a disposable container, streamed
over SSH and extracted by a disposable container on the destination host.

SSH must be enabled and configured between the source and destination hosts.`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output with executed commands")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show the command that would run without running it")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Config file")

	// Add subcommands
	rootCmd.AddCommand(volumesCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	logger = logging.New(os.Stderr, debug)

	out = output.New(cmd.OutOrStdout())
	out.SetColor(!noColor)

	return nil
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration after applying the config file and
VOLXFER_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), s)
		return nil
	},
}
