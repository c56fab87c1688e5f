package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/canonxml/internal/row"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testSchema is a two-field input schema: an integer id and an XML payload.
func testSchema() row.Schema {
	return row.Schema{
		{Name: "id", Type: row.TypeInteger},
		{Name: "payload", Type: row.TypeText},
	}
}

// createTestRun inserts a running run with default step settings.
func createTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run := Run{
		ID:          id,
		StepName:    "xml_canonicalize",
		InputField:  "payload",
		OutputField: "canonical_xml",
		InputSchema: testSchema(),
		Copies:      1,
	}
	if err := s.BeginRun(context.Background(), run); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	return run
}
