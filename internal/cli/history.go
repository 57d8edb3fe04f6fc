package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fixturekit/internal/runner"
	"github.com/roach88/fixturekit/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit  int
	TestID string
	RunID  string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored runs",
		Long: `Print the most recent runs stored by "fixturekit run --db", the
results of one run (--run-id), or the outcomes of one test across runs
(--test).

Example:
  fixturekit history --db ./runs.db
  fixturekit history --db ./runs.db --test 'rerun::test_guest_should_see_join_now'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd, opts)
		},
	}

	cmd.Flags().String("db", "", "path to the SQLite run history (required)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "maximum number of rows (0 for all)")
	cmd.Flags().StringVar(&opts.TestID, "test", "", "show the history of one test ID")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "show the results of one run")

	return cmd
}

func showHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DBPath == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	switch {
	case opts.RunID != "":
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("run %s", opts.RunID), err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		results, err := st.ReadResults(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read results", err)
		}
		if opts.Format == "json" {
			return f.Success(struct {
				Run     runDoc      `json:"run"`
				Results []resultDoc `json:"results"`
			}{newRunDoc(run), newResultDocs(results)})
		}
		return f.Success(renderRuns([]store.RunSummary{run}) + "\n" + renderResults(results, false))

	case opts.TestID != "":
		results, err := st.TestHistory(ctx, opts.TestID, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read test history", err)
		}
		if opts.Format == "json" {
			return f.Success(newResultDocs(results))
		}
		if len(results) == 0 {
			return f.Success(fmt.Sprintf("no stored results for %s", opts.TestID))
		}
		return f.Success(renderResults(results, true))

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			docs := make([]runDoc, len(runs))
			for i, r := range runs {
				docs[i] = newRunDoc(r)
			}
			return f.Success(docs)
		}
		if len(runs) == 0 {
			return f.Success("no stored runs")
		}
		return f.Success(renderRuns(runs))
	}
}

type runDoc struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
	Digest     string         `json:"digest"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
}

func newRunDoc(r store.RunSummary) runDoc {
	counts := make(map[string]int, len(runner.Outcomes))
	for _, o := range runner.Outcomes {
		counts[string(o)] = r.Counts[o]
	}
	return runDoc{
		ID:         r.ID,
		Status:     r.Status(),
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration().Milliseconds(),
		Digest:     r.Digest,
		Total:      r.Total,
		Counts:     counts,
	}
}

type resultDoc struct {
	RunID      string   `json:"run_id"`
	TestID     string   `json:"test_id"`
	Outcome    string   `json:"outcome"`
	Attempts   int      `json:"attempts"`
	DurationMS int64    `json:"duration_ms"`
	Reason     string   `json:"reason,omitempty"`
	Error      string   `json:"error,omitempty"`
	Markers    []string `json:"markers,omitempty"`
}

func newResultDocs(results []store.ResultRecord) []resultDoc {
	docs := make([]resultDoc, len(results))
	for i, r := range results {
		docs[i] = resultDoc{
			RunID:      r.RunID,
			TestID:     r.TestID,
			Outcome:    string(r.Outcome),
			Attempts:   r.Attempts,
			DurationMS: r.Duration.Milliseconds(),
			Reason:     r.Reason,
			Error:      r.Error,
			Markers:    r.Markers,
		}
	}
	return docs
}

func renderRuns(runs []store.RunSummary) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tTESTS\tPASSED\tFAILED\tERRORS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Status(),
			r.Total,
			r.Counts[runner.OutcomePassed],
			r.Counts[runner.OutcomeFailed],
			r.Counts[runner.OutcomeError],
			r.Duration().Round(time.Millisecond),
		)
	}
	tw.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// renderResults prints one row per result; byRun leads each row with the
// run ID instead of the test ID.
func renderResults(results []store.ResultRecord, byRun bool) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	first := "TEST"
	if byRun {
		first = "RUN"
	}
	fmt.Fprintf(tw, "%s\tOUTCOME\tATTEMPTS\tDURATION\n", first)
	for _, r := range results {
		key := r.TestID
		if byRun {
			key = r.RunID
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", key, r.Outcome, r.Attempts, r.Duration.Round(time.Millisecond))
	}
	tw.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}
