package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/canonxml/internal/row"
	"github.com/roach88/canonxml/internal/stage"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is one execution of the step.
type Run struct {
	ID          string     `json:"id"`
	StepName    string     `json:"step_name"`
	InputField  string     `json:"input_field"`
	OutputField string     `json:"output_field"`
	InputSchema row.Schema `json:"input_schema"`
	Copies      int        `json:"copies"`
	Status      RunStatus  `json:"status"`
	Read        int64      `json:"rows_read"`
	Written     int64      `json:"rows_written"`
	Diverted    int64      `json:"rows_diverted"`
	Error       string     `json:"error,omitempty"`
}

// BeginRun records a new run with status "running".
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	schemaJSON, err := json.Marshal(run.InputSchema)
	if err != nil {
		return fmt.Errorf("begin run: marshal input schema: %w", err)
	}
	copies := run.Copies
	if copies < 1 {
		copies = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, step_name, input_field, output_field, input_schema, copies, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.StepName,
		run.InputField,
		run.OutputField,
		string(schemaJSON),
		copies,
		string(RunRunning),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records the final status, counters and fatal error (if any).
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, sum stage.Summary, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, rows_read = ?, rows_written = ?, rows_diverted = ?, error = ?
		WHERE id = ?
	`,
		string(status),
		sum.Read,
		sum.Written,
		sum.Diverted,
		msg,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// ReadRun returns a single run.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	r := s.db.QueryRowContext(ctx, `
		SELECT id, step_name, input_field, output_field, input_schema, copies,
		       status, rows_read, rows_written, rows_diverted, error
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(r)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// ReadRuns returns all runs in insertion order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, step_name, input_field, output_field, input_schema, copies,
		       status, rows_read, rows_written, rows_diverted, error
		FROM runs
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run        Run
		schemaJSON string
		status     string
	)
	err := sc.Scan(
		&run.ID,
		&run.StepName,
		&run.InputField,
		&run.OutputField,
		&schemaJSON,
		&run.Copies,
		&status,
		&run.Read,
		&run.Written,
		&run.Diverted,
		&run.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(schemaJSON), &run.InputSchema); err != nil {
		return Run{}, fmt.Errorf("run %s: unmarshal input schema: %w", run.ID, err)
	}
	run.Status = RunStatus(status)
	return run, nil
}
