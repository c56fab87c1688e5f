package testutil

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/canonxml/internal/row"
	"github.com/roach88/canonxml/internal/rowio"
)

// WriteRowFile writes schema and records as a row file under dir and
// returns its path.
func WriteRowFile(t *testing.T, dir, name string, schema row.Schema, records ...row.Record) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := rowio.NewWriter(f)
	if len(records) == 0 {
		// The writer only emits a header with the first record.
		enc := json.NewEncoder(f)
		if err := enc.Encode(rowio.Header{Fields: schema}); err != nil {
			t.Fatalf("write header: %v", err)
		}
		return path
	}
	for _, rec := range records {
		if err := w.Write(context.Background(), schema, rec); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush %s: %v", path, err)
	}
	return path
}

// ReadRowFile reads a row file back into its schema and records.
// An empty file (a stream that emitted nothing) yields a nil schema.
func ReadRowFile(t *testing.T, path string) (row.Schema, []row.Record) {
	t.Helper()

	if info, err := os.Stat(path); err == nil && info.Size() == 0 {
		return nil, nil
	}
	rd, err := rowio.Open(path, "")
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer rd.Close()

	var records []row.Record
	for {
		rec, err := rd.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		records = append(records, rec)
	}
	return rd.Schema(), records
}

// ReadErrorFile reads an error row file.
func ReadErrorFile(t *testing.T, path string) []rowio.ErrorRow {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var rows []rowio.ErrorRow
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var er rowio.ErrorRow
		if err := json.Unmarshal(sc.Bytes(), &er); err != nil {
			t.Fatalf("decode error row in %s: %v", path, err)
		}
		rows = append(rows, er)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return rows
}
