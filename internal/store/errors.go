package store

import (
	"context"
	"fmt"

	"github.com/roach88/canonxml/internal/row"
	"github.com/roach88/canonxml/internal/stage"
)

// ErrorRow is a stored diverted record.
type ErrorRow struct {
	RunID     string     `json:"run_id"`
	Seq       int64      `json:"seq"`
	ErrorCode string     `json:"error_code"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	Field     string     `json:"field"`
	Record    row.Record `json:"-"`
}

// WriteErrorRow inserts a diverted record for a run.
// Uses ON CONFLICT(run_id, seq) DO NOTHING for idempotency.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteErrorRow(ctx context.Context, runID string, rec stage.ErrorRecord) error {
	values, err := row.MarshalValues(rec.Record)
	if err != nil {
		return fmt.Errorf("write error row: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO error_rows
		(run_id, seq, error_code, kind, message, field, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		rec.Seq,
		rec.Code,
		rec.Kind,
		rec.Message,
		rec.Field,
		string(values),
	)
	if err != nil {
		return fmt.Errorf("write error row: %w", err)
	}
	return nil
}

// ReadErrorRows returns the diverted records of a run ordered by seq.
// Records are decoded against the run's input schema.
// Returns an empty slice (not nil) if the run diverted nothing.
func (s *Store) ReadErrorRows(ctx context.Context, runID string) ([]ErrorRow, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, error_code, kind, message, field, record
		FROM error_rows
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query error rows: %w", err)
	}
	defer rows.Close()

	out := []ErrorRow{}
	for rows.Next() {
		var (
			er     ErrorRow
			record string
		)
		if err := rows.Scan(&er.RunID, &er.Seq, &er.ErrorCode, &er.Kind, &er.Message, &er.Field, &record); err != nil {
			return nil, fmt.Errorf("scan error row: %w", err)
		}
		er.Record, err = row.UnmarshalValues([]byte(record), run.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("error row %d: %w", er.Seq, err)
		}
		out = append(out, er)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate error rows: %w", err)
	}
	return out, nil
}

// CountErrorRows returns the number of diverted records per kind for a run.
func (s *Store) CountErrorRows(ctx context.Context, runID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM error_rows
		WHERE run_id = ?
		GROUP BY kind
		ORDER BY kind ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("count error rows: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan error count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// ErrorSink adapts the store to stage.ErrorSink for one run.
type ErrorSink struct {
	store *Store
	runID string
}

// ErrorSink returns a stage.ErrorSink writing to runID.
func (s *Store) ErrorSink(runID string) *ErrorSink {
	return &ErrorSink{store: s, runID: runID}
}

// WriteError implements stage.ErrorSink.
func (e *ErrorSink) WriteError(ctx context.Context, rec stage.ErrorRecord) error {
	return e.store.WriteErrorRow(ctx, e.runID, rec)
}
