// Package cli implements the altar command line.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir string
	LogLevel  string
	Format    string // "json" | "text"

	// Config is loaded before any subcommand runs.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the altar CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "altar",
		Short: "Vaal altar for card collections",
		Long: `Corrupt cards at the vaal altar and keep collections in sync.

The server decides outcomes and stores collections in PostgreSQL; clients
talk to it over NATS and apply changes optimistically.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigDir)
			if err != nil {
				return err
			}
			opts.Config = cfg

			level := cfg.Log.Level
			if opts.LogLevel != "" {
				level = opts.LogLevel
			}
			lvl, err := zerolog.ParseLevel(level)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", level, err)
			}
			zerolog.SetGlobalLevel(lvl)
			return nil
		},
	}

	// errors are returned to main, which logs them
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&opts.ConfigDir, "config", "c", ".", "directory holding config.yaml")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewVaalCommand(opts))
	cmd.AddCommand(NewForceCommand(opts))
	cmd.AddCommand(NewTableCommand(opts))
	cmd.AddCommand(NewGrantCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
