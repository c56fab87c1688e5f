package stage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/roach88/canonxml/internal/row"
)

// sliceSource replays fixed records. failAt (1-based) injects a read error.
type sliceSource struct {
	schema  row.Schema
	records []row.Record
	pos     int
	failAt  int
}

func newSliceSource(s row.Schema, recs ...row.Record) *sliceSource {
	return &sliceSource{schema: s, records: recs}
}

func (s *sliceSource) Schema() row.Schema { return s.schema }

func (s *sliceSource) Next(ctx context.Context) (row.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.failAt > 0 && s.pos+1 == s.failAt {
		return nil, errors.New("source broken")
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

type memorySink struct {
	schemas []row.Schema
	records []row.Record
	err     error
}

func (m *memorySink) Write(_ context.Context, s row.Schema, rec row.Record) error {
	if m.err != nil {
		return m.err
	}
	m.schemas = append(m.schemas, s)
	m.records = append(m.records, rec)
	return nil
}

type memoryErrorSink struct {
	records []ErrorRecord
	err     error
}

func (m *memoryErrorSink) WriteError(_ context.Context, rec ErrorRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

type countingObserver struct {
	emitted  int
	diverted map[string]int
}

func (o *countingObserver) RecordEmitted(time.Duration) { o.emitted++ }

func (o *countingObserver) RecordDiverted(kind string, _ time.Duration) {
	if o.diverted == nil {
		o.diverted = make(map[string]int)
	}
	o.diverted[kind]++
}

// payloadSchema is the schema most tests use: id + XML payload.
func payloadSchema() row.Schema {
	return row.Schema{
		{Name: "id", Type: row.TypeInteger},
		{Name: "payload", Type: row.TypeText},
	}
}

func payloadRecord(id int64, xml string) row.Record {
	return row.Record{row.Integer(id), row.Text(xml)}
}

func newTestProcessor(t *testing.T, opts ...Option) *Processor {
	t.Helper()
	return New(Config{InputField: "payload"}, opts...)
}
