package rowio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/canonxml/internal/row"
	"github.com/roach88/canonxml/internal/stage"
)

// Writer is a stage.Sink producing a row file. The schema header is written
// with the first record; a stream with no records produces no output.
type Writer struct {
	w      *bufio.Writer
	enc    *json.Encoder
	schema row.Schema
}

// NewWriter creates a Writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &Writer{w: bw, enc: enc}
}

// Write implements stage.Sink.
func (w *Writer) Write(_ context.Context, s row.Schema, rec row.Record) error {
	if w.schema == nil {
		if err := w.enc.Encode(Header{Fields: s}); err != nil {
			return fmt.Errorf("write schema header: %w", err)
		}
		w.schema = s
	}
	if len(rec) != len(w.schema) {
		return fmt.Errorf("record has %d values, header declares %d", len(rec), len(w.schema))
	}

	data, err := row.MarshalValues(rec)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// ErrorRow is the on-disk form of a stage.ErrorRecord.
type ErrorRow struct {
	Seq       int64           `json:"seq"`
	ErrorCode string          `json:"error_code"`
	Kind      string          `json:"kind"`
	Message   string          `json:"message"`
	Field     string          `json:"field"`
	Record    json.RawMessage `json:"record"`
}

// ErrorWriter is a stage.ErrorSink producing one ErrorRow per line.
type ErrorWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewErrorWriter creates an ErrorWriter. Call Flush when done.
func NewErrorWriter(w io.Writer) *ErrorWriter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &ErrorWriter{w: bw, enc: enc}
}

// WriteError implements stage.ErrorSink.
func (w *ErrorWriter) WriteError(_ context.Context, rec stage.ErrorRecord) error {
	values, err := row.MarshalValues(rec.Record)
	if err != nil {
		return err
	}
	return w.enc.Encode(ErrorRow{
		Seq:       rec.Seq,
		ErrorCode: rec.Code,
		Kind:      rec.Kind,
		Message:   rec.Message,
		Field:     rec.Field,
		Record:    values,
	})
}

// Flush writes buffered data to the underlying writer.
func (w *ErrorWriter) Flush() error {
	return w.w.Flush()
}
