package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/jaakkos/dao-ledger/internal/policy"
)

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Dump the persisted ledger as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			snap := l.svc.Snapshot()
			return opts.formatter(cmd).Success(snap, func(w io.Writer) {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				_ = enc.Encode(snap)
			})
		},
	}
	cmd.Flags().StringVar(&opts.StateFile, "state-file", "", "SQLite state file (overrides config)")
	return cmd
}
