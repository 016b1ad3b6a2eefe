// Package cli implements the dao-ledger command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jaakkos/dao-ledger/internal/policy"
)

// Version is set by -ldflags at build time.
var Version = "dev"

// ConfigEnv names the environment variable holding the config path.
const ConfigEnv = "DAO_LEDGER_CONFIG"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dao-ledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dao-ledger",
		Short: "DAO voting ledger",
		Long: `A voting ledger for a DAO: voters and proposals are registered, each voter
votes at most once per proposal, and the leading proposal can be read at any time.

The ledger is served over MCP (stdio and streamable HTTP) with an optional
HTTP dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $"+ConfigEnv+")")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewProxyCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig loads the file named by --config, else by DAO_LEDGER_CONFIG,
// else the defaults.
func (o *RootOptions) loadConfig() (*policy.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		return policy.DefaultConfig(), nil
	}
	cfg, err := policy.LoadConfig(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	return cfg, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
