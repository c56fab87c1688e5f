package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canonxml/internal/row"
	"github.com/roach88/canonxml/internal/store"
	"github.com/roach88/canonxml/internal/testutil"
)

func inputSchema() row.Schema {
	return row.Schema{
		{Name: "id", Type: row.TypeInteger},
		{Name: "payload", Type: row.TypeText},
	}
}

func newTestRunCommand(format string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := NewRunCommand(&RootOptions{Format: format})
	cmd.SetContext(context.Background())

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd, stdout, stderr
}

func TestRun_MissingInputFlag(t *testing.T) {
	cmd, _, _ := newTestRunCommand("text")
	cmd.SetArgs([]string{"--input-field", "payload"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "input")
}

func TestRun_MissingInputField(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowFile(t, dir, "in.jsonl", inputSchema(), row.Record{row.Integer(1), row.Text("<a/>")})

	cmd, _, _ := newTestRunCommand("text")
	cmd.SetArgs([]string{"--input", in})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid step configuration")
}

func TestRun_NonExistentInput(t *testing.T) {
	cmd, _, _ := newTestRunCommand("text")
	cmd.SetArgs([]string{"--input", filepath.Join(t.TempDir(), "missing.jsonl"), "--input-field", "payload"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open input")
}

func TestRun_TransformsAndDiverts(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowFile(t, dir, "in.jsonl", inputSchema(),
		row.Record{row.Integer(1), row.Text("<doc>test &#38;</doc>")},
		row.Record{row.Integer(2), row.Text("<doc>")},
		row.Record{row.Integer(3), row.Text(`<doc b="2" a="1"><x/></doc>`)},
		row.Record{row.Integer(4), row.Text("<a/><b/>")},
	)
	outPath := filepath.Join(dir, "out.jsonl")
	errPath := filepath.Join(dir, "errs.jsonl")

	cmd, stdout, _ := newTestRunCommand("json")
	cmd.SetArgs([]string{
		"--input", in,
		"--input-field", "payload",
		"--output", outPath,
		"--errors", errPath,
	})
	require.NoError(t, cmd.Execute())

	schema, records := testutil.ReadRowFile(t, outPath)
	require.Len(t, schema, 3)
	assert.Equal(t, "canonical_xml", schema[2].Name)
	assert.Equal(t, row.TypeText, schema[2].Type)
	assert.Equal(t, "xml_canonicalize", schema[2].Origin)

	require.Len(t, records, 2)
	assert.Equal(t, row.Record{row.Integer(1), row.Text("<doc>test &#38;</doc>"), row.Text("<doc>test &amp;</doc>")}, records[0])
	assert.Equal(t, row.Text(`<doc a="1" b="2"><x></x></doc>`), records[1][2])

	errRows := testutil.ReadErrorFile(t, errPath)
	require.Len(t, errRows, 2)
	assert.Equal(t, int64(2), errRows[0].Seq)
	assert.Equal(t, "parse", errRows[0].Kind)
	assert.Equal(t, "C14N001", errRows[0].ErrorCode)
	assert.Equal(t, "payload", errRows[0].Field)
	assert.JSONEq(t, `[2,"<doc>"]`, string(errRows[0].Record))
	assert.Equal(t, int64(4), errRows[1].Seq)
	assert.Equal(t, "parse", errRows[1].Kind)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, RunResult{Step: "xml_canonicalize", Copies: 1, Read: 4, Written: 2, Diverted: 2}, resp.Data)
}

func TestRun_StdoutWhenNoOutputFlag(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowFile(t, dir, "in.jsonl", inputSchema(),
		row.Record{row.Integer(1), row.Text("<a></a>")},
	)

	cmd, stdout, stderr := newTestRunCommand("text")
	cmd.SetArgs([]string{"--input", in, "--input-field", "payload"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2, "header plus one row")
	assert.Equal(t, `[1,"<a></a>","<a></a>"]`, lines[1])
	assert.Contains(t, stderr.String(), "xml_canonicalize: read 1, written 1, diverted 0")
}

func TestRun_TypeMismatchAborts(t *testing.T) {
	dir := t.TempDir()
	schema := row.Schema{{Name: "payload", Type: row.TypeText}}
	// A row file whose declared text field carries a number.
	in := filepath.Join(dir, "in.jsonl")
	header, err := json.Marshal(map[string]row.Schema{"fields": schema})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, append(header, []byte("\n[42]\n")...), 0644))

	cmd, _, _ := newTestRunCommand("text")
	cmd.SetArgs([]string{"--input", in, "--input-field", "payload", "--output", filepath.Join(dir, "out.jsonl")})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "TYPE_MISMATCH")
	assert.Contains(t, err.Error(), "step configuration does not fit the input")
}

func TestRun_NullInputAborts(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowFile(t, dir, "in.jsonl", inputSchema(),
		row.Record{row.Integer(1), row.Text("<a/>")},
		row.Record{row.Integer(2), nil},
	)
	errPath := filepath.Join(dir, "errs.jsonl")

	cmd, _, _ := newTestRunCommand("text")
	cmd.SetArgs([]string{
		"--input", in,
		"--input-field", "payload",
		"--output", filepath.Join(dir, "out.jsonl"),
		"--errors", errPath,
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "TYPE_MISMATCH")
	assert.Contains(t, err.Error(), "got null")
	assert.Empty(t, testutil.ReadErrorFile(t, errPath), "null input is never an error record")
}

func TestRun_UnknownFieldAborts(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowFile(t, dir, "in.jsonl", inputSchema(), row.Record{row.Integer(1), row.Text("<a/>")})

	cmd, _, _ := newTestRunCommand("text")
	cmd.SetArgs([]string{"--input", in, "--input-field", "body", "--output", filepath.Join(dir, "out.jsonl")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "CONFIGURATION")
	assert.Contains(t, err.Error(), "step configuration does not fit the input")
}

func TestRun_ConfigFileAndOverride(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowFile(t, dir, "in.jsonl", inputSchema(), row.Record{row.Integer(1), row.Text("<a/>")})
	cfg := filepath.Join(dir, "step.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("name: orders\ninput_field: payload\noutput_field: c14n\n"), 0644))
	outPath := filepath.Join(dir, "out.jsonl")

	cmd, _, _ := newTestRunCommand("text")
	cmd.SetArgs([]string{"--input", in, "--config", cfg, "--output-field", "xml_c14n", "--output", outPath})
	require.NoError(t, cmd.Execute())

	schema, _ := testutil.ReadRowFile(t, outPath)
	require.Len(t, schema, 3)
	assert.Equal(t, "xml_c14n", schema[2].Name)
	assert.Equal(t, "orders", schema[2].Origin)
}

func TestRun_RecordsRunLog(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowFile(t, dir, "in.jsonl", inputSchema(),
		row.Record{row.Integer(1), row.Text("<a/>")},
		row.Record{row.Integer(2), row.Text("<a>")},
	)
	dbPath := filepath.Join(dir, "runs.db")

	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		RunIDGenerator: testutil.NewFixedRunIDGenerator("run-1"),
	}
	cmd := newRunCommandWithOptions(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--input", in,
		"--input-field", "payload",
		"--output", filepath.Join(dir, "out.jsonl"),
		"--db", dbPath,
	})
	require.NoError(t, cmd.Execute())

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.RunSucceeded, run.Status)
	assert.Equal(t, int64(2), run.Read)
	assert.Equal(t, int64(1), run.Written)
	assert.Equal(t, int64(1), run.Diverted)
	assert.Equal(t, inputSchema(), run.InputSchema)

	rows, err := st.ReadErrorRows(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].Seq)
	assert.Equal(t, row.Record{row.Integer(2), row.Text("<a>")}, rows[0].Record)
}

func TestRun_FailedRunIsLogged(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowFile(t, dir, "in.jsonl", inputSchema(), row.Record{row.Integer(1), row.Text("<a/>")})
	dbPath := filepath.Join(dir, "runs.db")

	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		RunIDGenerator: testutil.NewFixedRunIDGenerator("run-bad"),
	}
	cmd := newRunCommandWithOptions(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--input", in, "--input-field", "missing", "--output", filepath.Join(dir, "out.jsonl"), "--db", dbPath})
	require.Error(t, cmd.Execute())

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), "run-bad")
	require.NoError(t, err)
	assert.Equal(t, store.RunFailed, run.Status)
	assert.Contains(t, run.Error, "CONFIGURATION")
}

func TestRun_CopiesPreserveOrder(t *testing.T) {
	dir := t.TempDir()
	var records []row.Record
	for i := int64(1); i <= 50; i++ {
		payload := row.Text(`<r n="` + strings.Repeat("x", int(i%7)) + `"/>`)
		if i%5 == 0 {
			payload = row.Text("<r>")
		}
		records = append(records, row.Record{row.Integer(i), payload})
	}
	in := testutil.WriteRowFile(t, dir, "in.jsonl", inputSchema(), records...)

	run := func(copies string) ([]row.Record, []byte) {
		outPath := filepath.Join(dir, "out-"+copies+".jsonl")
		errPath := filepath.Join(dir, "errs-"+copies+".jsonl")
		cmd, _, _ := newTestRunCommand("text")
		cmd.SetArgs([]string{"--input", in, "--input-field", "payload", "--copies", copies, "--output", outPath, "--errors", errPath})
		require.NoError(t, cmd.Execute())
		_, recs := testutil.ReadRowFile(t, outPath)
		errs, err := os.ReadFile(errPath)
		require.NoError(t, err)
		return recs, errs
	}

	single, singleErrs := run("1")
	multi, multiErrs := run("4")
	assert.Len(t, single, 40)
	assert.Equal(t, single, multi)
	assert.Equal(t, string(singleErrs), string(multiErrs))
}

func TestRun_MetricsFile(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowFile(t, dir, "in.jsonl", inputSchema(),
		row.Record{row.Integer(1), row.Text("<a/>")},
		row.Record{row.Integer(2), row.Text("<a>")},
	)
	metricsPath := filepath.Join(dir, "canonxml.prom")

	cmd, _, _ := newTestRunCommand("text")
	cmd.SetArgs([]string{
		"--input", in,
		"--input-field", "payload",
		"--output", filepath.Join(dir, "out.jsonl"),
		"--errors", filepath.Join(dir, "errs.jsonl"),
		"--metrics-file", metricsPath,
	})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `canonxml_rows_read_total{step="xml_canonicalize"} 2`)
	assert.Contains(t, string(data), `canonxml_rows_written_total{step="xml_canonicalize"} 1`)
	assert.Contains(t, string(data), `canonxml_rows_diverted_total{kind="parse",step="xml_canonicalize"} 1`)
}

func TestRun_Latin1Input(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jsonl")
	data := []byte("{\"fields\":[{\"name\":\"payload\",\"type\":\"text\"}]}\n[\"<d>caf\xe9</d>\"]\n")
	require.NoError(t, os.WriteFile(in, data, 0644))
	outPath := filepath.Join(dir, "out.jsonl")

	cmd, _, _ := newTestRunCommand("text")
	cmd.SetArgs([]string{"--input", in, "--input-field", "payload", "--encoding", "latin1", "--output", outPath})
	require.NoError(t, cmd.Execute())

	_, records := testutil.ReadRowFile(t, outPath)
	require.Len(t, records, 1)
	assert.Equal(t, row.Text("<d>café</d>"), records[0][1])
}
