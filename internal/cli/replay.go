package cli

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/jaakkos/dao-ledger/internal/scenario"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
}

// ReplayResult holds the outcome of replaying every scenario file.
type ReplayResult struct {
	Scenarios []*scenario.Result `json:"scenarios"`
	Passed    int                `json:"passed"`
	Failed    int                `json:"failed"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>...",
		Short: "Replay YAML scenarios against a fresh in-memory ledger",
		Long: `Replay one or more YAML scenarios against a fresh in-memory ledger and check
every expected vote outcome, conclusion and final tally.

Exit codes:
  0 - All scenarios passed
  1 - At least one expectation did not hold
  2 - Command error (unreadable or invalid scenario)

Examples:
  dao-ledger replay testdata/scenarios/budget_policy.yaml
  dao-ledger replay --format json scenarios/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args)
		},
	}
	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, paths []string) error {
	ctx := context.Background()
	var logger *log.Logger
	if opts.Verbose {
		logger = log.New(cmd.ErrOrStderr(), "[dao-ledger] ", 0)
	}

	result := ReplayResult{Scenarios: make([]*scenario.Result, 0, len(paths))}
	for _, path := range paths {
		sc, err := scenario.Load(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "load scenario", err)
		}
		res, err := scenario.Run(ctx, sc, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("replay %s", sc.Name), err)
		}
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	err := opts.formatter(cmd).Success(result, func(w io.Writer) {
		printReplayText(w, result, opts.Verbose)
	})
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, len(result.Scenarios)))
	}
	return nil
}

func printReplayText(w io.Writer, result ReplayResult, verbose bool) {
	for _, res := range result.Scenarios {
		status := "PASS"
		if !res.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s %s (%d steps)\n", status, res.Scenario, len(res.Trace))
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		if verbose {
			for _, t := range res.Trace {
				fmt.Fprintf(w, "  %d. %s %s\n", t.Seq, t.Op, t.Outcome)
			}
		}
	}
	fmt.Fprintf(w, "%d passed, %d failed\n", result.Passed, result.Failed)
}
