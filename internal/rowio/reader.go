package rowio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/roach88/canonxml/internal/row"
)

// Header is the first value of a row file.
type Header struct {
	Fields row.Schema `json:"fields"`
}

// Reader is a stage.Source over a row file.
type Reader struct {
	dec    *json.Decoder
	schema row.Schema
	closer io.Closer
	n      int
}

// NewReader reads the schema header from r and returns a Reader positioned
// at the first record.
func NewReader(r io.Reader) (*Reader, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var h Header
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("row file is empty: missing schema header")
		}
		return nil, fmt.Errorf("read schema header: %w", err)
	}
	if len(h.Fields) == 0 {
		return nil, fmt.Errorf("schema header declares no fields")
	}
	if err := h.Fields.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema header: %w", err)
	}
	return &Reader{dec: dec, schema: h.Fields}, nil
}

// Open opens a row file. encoding is a WHATWG/IANA label ("latin1",
// "windows-1252", "shift_jis", ...); empty or "utf-8" reads the bytes as is.
// The returned Reader owns the file; call Close.
func Open(path, encoding string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open row file: %w", err)
	}
	src, err := Decode(f, encoding)
	if err != nil {
		f.Close()
		return nil, err
	}
	rd, err := NewReader(src)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rd.closer = f
	return rd, nil
}

// Decode wraps r so that it yields UTF-8 from the named encoding.
func Decode(r io.Reader, encoding string) (io.Reader, error) {
	label := strings.TrimSpace(strings.ToLower(encoding))
	if label == "" || label == "utf-8" || label == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown input encoding %q: %w", encoding, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// Schema returns the header schema.
func (r *Reader) Schema() row.Schema {
	return r.schema
}

// Next returns the next record, or io.EOF at end of file.
func (r *Reader) Next(ctx context.Context) (row.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []any
	if err := r.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("record %d: %w", r.n+1, err)
	}
	r.n++

	rec, err := row.FromJSON(raw, r.schema)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", r.n, err)
	}
	return rec, nil
}

// Close releases the underlying file, if the Reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
