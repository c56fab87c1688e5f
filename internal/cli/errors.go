package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/canonxml/internal/row"
	"github.com/roach88/canonxml/internal/store"
)

// ErrorsOptions holds flags for the errors command.
type ErrorsOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to every run
}

// RunErrors is the error report of one run.
type RunErrors struct {
	Run    store.Run        `json:"run"`
	Counts map[string]int64 `json:"counts"`
	Rows   []ErrorEntry     `json:"rows"`
}

// ErrorEntry is one diverted record in the report.
type ErrorEntry struct {
	Seq       int64  `json:"seq"`
	ErrorCode string `json:"error_code"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Field     string `json:"field"`
	Record    string `json:"record"` // JSON array of the original values
}

// NewErrorsCommand creates the errors command.
func NewErrorsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ErrorsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List diverted records from the run log",
		Long: `List the records each run diverted to the error channel, in input order,
with the failure kind and message.

Examples:
  canonxml errors --db runs.db
  canonxml errors --db runs.db --run 0190f7a2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runErrors(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "only show this run")

	return cmd
}

func runErrors(opts *ErrorsOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	// Open database
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, "unknown run", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ReadRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
	}

	report := make([]RunErrors, 0, len(runs))
	for _, run := range runs {
		entry, err := buildRunErrors(ctx, st, run)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read error rows", err)
		}
		report = append(report, entry)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(report)
	}
	outputErrorsText(cmd.OutOrStdout(), report, opts.Verbose)
	return nil
}

func buildRunErrors(ctx context.Context, st *store.Store, run store.Run) (RunErrors, error) {
	rows, err := st.ReadErrorRows(ctx, run.ID)
	if err != nil {
		return RunErrors{}, err
	}
	counts, err := st.CountErrorRows(ctx, run.ID)
	if err != nil {
		return RunErrors{}, err
	}

	entries := make([]ErrorEntry, 0, len(rows))
	for _, r := range rows {
		values, err := row.MarshalValues(r.Record)
		if err != nil {
			return RunErrors{}, fmt.Errorf("error row %d: %w", r.Seq, err)
		}
		entries = append(entries, ErrorEntry{
			Seq:       r.Seq,
			ErrorCode: r.ErrorCode,
			Kind:      r.Kind,
			Message:   r.Message,
			Field:     r.Field,
			Record:    string(values),
		})
	}
	return RunErrors{Run: run, Counts: counts, Rows: entries}, nil
}

func outputErrorsText(w io.Writer, report []RunErrors, verbose bool) {
	if len(report) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	for i, re := range report {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Run %s [%s] %s: read %d, written %d, diverted %d\n",
			re.Run.ID, re.Run.Status, re.Run.StepName, re.Run.Read, re.Run.Written, re.Run.Diverted)
		if re.Run.Error != "" {
			fmt.Fprintf(w, "  aborted: %s\n", re.Run.Error)
		}
		if len(re.Rows) == 0 {
			fmt.Fprintln(w, "  no diverted records")
			continue
		}
		for _, e := range re.Rows {
			fmt.Fprintf(w, "  #%d %s %s(%s): %s\n", e.Seq, e.ErrorCode, e.Kind, e.Field, e.Message)
			if verbose {
				fmt.Fprintf(w, "      record: %s\n", e.Record)
			}
		}
	}
}
