package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/jaakkos/dao-ledger/internal/policy"
	"github.com/jaakkos/dao-ledger/internal/report"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	StateFile string
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the tally and voters of the persisted ledger",
		Long: `Print a summary of the persisted ledger followed by the tally and voter tables.

With --format json the summary is printed instead of the tables.

Examples:
  dao-ledger status
  dao-ledger status --state-file ./ledger.sqlite
  dao-ledger status --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.StateFile, "state-file", "", "SQLite state file (overrides config)")
	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	pol := policy.New(cfg)
	if opts.StateFile != "" {
		pol.SetStateFile(opts.StateFile)
	}

	l, err := openLedger(pol, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "open ledger", err)
	}
	defer l.Close(nil)

	rep := report.NewLedgerReport(l.svc)
	return opts.formatter(cmd).Success(rep.Summary, func(w io.Writer) {
		rep.Print(w)
	})
}
