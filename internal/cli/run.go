package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/canonxml/internal/config"
	"github.com/roach88/canonxml/internal/metrics"
	"github.com/roach88/canonxml/internal/rowio"
	"github.com/roach88/canonxml/internal/stage"
	"github.com/roach88/canonxml/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Input       string
	Output      string
	Errors      string
	Database    string
	Config      string
	InputField  string
	OutputField string
	StepName    string
	Copies      int
	Encoding    string
	MetricsFile string

	// RunIDGenerator allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator store.RunIDGenerator
}

// RunResult is the summary printed when a run finishes.
type RunResult struct {
	RunID    string `json:"run_id,omitempty"`
	Step     string `json:"step"`
	Copies   int    `json:"copies"`
	Read     int64  `json:"read"`
	Written  int64  `json:"written"`
	Diverted int64  `json:"diverted"`
}

func (r RunResult) String() string {
	s := fmt.Sprintf("%s: read %d, written %d, diverted %d", r.Step, r.Read, r.Written, r.Diverted)
	if r.RunID != "" {
		s += fmt.Sprintf(" (run %s)", r.RunID)
	}
	return s
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommandWithOptions(&RunOptions{RootOptions: rootOpts})
}

func newRunCommandWithOptions(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Canonicalize an XML field across a row stream",
		Long: `Read a row stream, canonicalize the XML document held in one text field
of every record, and write each record with an appended field holding the
canonical form.

Records whose document cannot be parsed or canonicalized are diverted to the
error channel with their original values. Configuration errors, non-text
input values and sink failures abort the run.

Examples:
  canonxml run --input rows.jsonl --input-field payload > out.jsonl
  canonxml run --input rows.jsonl --config step.yaml --output out.jsonl --errors errs.jsonl
  canonxml run --input rows.jsonl --config step.cue --db runs.db --copies 4`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "input row file (required)")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output row file (default stdout)")
	cmd.Flags().StringVar(&opts.Errors, "errors", "", "error row file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "step config file (.yaml, .yml or .cue)")
	cmd.Flags().StringVar(&opts.InputField, "input-field", "", "field holding the XML document")
	cmd.Flags().StringVar(&opts.OutputField, "output-field", "", "appended field name (default \"canonical_xml\")")
	cmd.Flags().StringVar(&opts.StepName, "step-name", "", "step name (default \"xml_canonicalize\")")
	cmd.Flags().IntVar(&opts.Copies, "copies", 0, "number of concurrent step copies (default 1)")
	cmd.Flags().StringVar(&opts.Encoding, "encoding", "", "input character encoding (default utf-8)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	return cmd
}

// resolveStep loads the config file (if any), applies flag overrides and
// validates the result.
func resolveStep(opts *RunOptions, cmd *cobra.Command) (config.Step, error) {
	step := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return config.Step{}, err
		}
		step = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("input-field") {
		step.InputField = opts.InputField
	}
	if flags.Changed("output-field") {
		step.OutputField = opts.OutputField
	}
	if flags.Changed("step-name") {
		step.Name = opts.StepName
	}
	if flags.Changed("copies") {
		step.Copies = opts.Copies
	}

	step.ApplyDefaults()
	if err := step.Validate(); err != nil {
		return config.Step{}, err
	}
	return step, nil
}

func runStep(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	step, err := resolveStep(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid step configuration", err)
	}

	src, err := rowio.Open(opts.Input, opts.Encoding)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open input", err)
	}
	defer src.Close()
	logger.Info("input opened", "path", opts.Input, "fields", len(src.Schema()))

	// Output rows go to stdout unless --output is set; the summary then
	// goes to stderr so it never interleaves with rows.
	var rowsOut io.Writer = cmd.OutOrStdout()
	summaryOut := cmd.ErrOrStderr()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output", err)
		}
		defer f.Close()
		rowsOut = f
		summaryOut = cmd.OutOrStdout()
	}
	out := rowio.NewWriter(rowsOut)

	var errSinks stage.ErrorSinks
	var errOut *rowio.ErrorWriter
	if opts.Errors != "" {
		f, err := os.Create(opts.Errors)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create error output", err)
		}
		defer f.Close()
		errOut = rowio.NewErrorWriter(f)
		errSinks = append(errSinks, errOut)
	}

	// Open run log (create if not exists)
	var (
		st    *store.Store
		runID string
	)
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		gen := opts.RunIDGenerator
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		runID = gen.Generate()
		if err := st.BeginRun(parentCtx, store.Run{
			ID:          runID,
			StepName:    step.Name,
			InputField:  step.InputField,
			OutputField: step.OutputField,
			InputSchema: src.Schema(),
			Copies:      step.Copies,
		}); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		errSinks = append(errSinks, st.ErrorSink(runID))
		logger = logger.With("run_id", runID)
	}

	if len(errSinks) == 0 {
		// Without an error file or run log, diverted rows go to stderr.
		errOut = rowio.NewErrorWriter(cmd.ErrOrStderr())
		errSinks = append(errSinks, errOut)
	}

	collector := metrics.NewCollector(step.Name)
	cfg := step.StageConfig()
	newProcessor := func(idx int) *stage.Processor {
		return stage.New(cfg,
			stage.WithObserver(collector),
			stage.WithLogger(logger.With("step", step.Name, "copy", idx)),
		)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("run starting",
		"step", step.Name,
		"input_field", step.InputField,
		"output_field", step.OutputField,
		"copies", step.Copies,
	)
	sum, runErr := stage.RunCopies(ctx, step.Copies, newProcessor, collector.Source(src), out, errSinks)

	if runErr == nil {
		runErr = out.Flush()
	}
	if errOut != nil {
		if err := errOut.Flush(); err != nil && runErr == nil {
			runErr = err
		}
	}

	if st != nil {
		status := store.RunSucceeded
		if runErr != nil {
			status = store.RunFailed
		}
		// The run context may already be cancelled; the final status must
		// still land.
		if err := st.FinishRun(context.WithoutCancel(ctx), runID, status, sum, runErr); err != nil {
			logger.Error("failed to finish run", "error", err)
		}
	}

	if opts.MetricsFile != "" {
		if err := collector.WriteTextfile(opts.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("run aborted",
			"error", runErr,
			"read", sum.Read,
			"written", sum.Written,
			"diverted", sum.Diverted,
		)
		switch {
		case errors.Is(runErr, context.Canceled):
			return WrapExitError(ExitFailure, "run cancelled", runErr)
		case stage.IsConfigurationError(runErr):
			return WrapExitError(ExitFailure, "step configuration does not fit the input", runErr)
		default:
			return WrapExitError(ExitFailure, "run aborted", runErr)
		}
	}

	logger.Info("run complete",
		"read", sum.Read,
		"written", sum.Written,
		"diverted", sum.Diverted,
	)

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  summaryOut,
		Verbose: opts.Verbose,
	}
	return formatter.Success(RunResult{
		RunID:    runID,
		Step:     step.Name,
		Copies:   step.Copies,
		Read:     sum.Read,
		Written:  sum.Written,
		Diverted: sum.Diverted,
	})
}

