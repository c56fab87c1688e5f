package metrics

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canonxml/internal/row"
	"github.com/roach88/canonxml/internal/stage"
)

type fixedSource struct {
	recs []row.Record
	pos  int
}

func (s *fixedSource) Schema() row.Schema {
	return row.Schema{{Name: "payload", Type: row.TypeText}}
}

func (s *fixedSource) Next(context.Context) (row.Record, error) {
	if s.pos >= len(s.recs) {
		return nil, io.EOF
	}
	rec := s.recs[s.pos]
	s.pos++
	return rec, nil
}

func TestCollector_Observer(t *testing.T) {
	c := NewCollector("xml_canonicalize")

	c.RecordEmitted(2 * time.Millisecond)
	c.RecordEmitted(time.Millisecond)
	c.RecordDiverted("parse", time.Millisecond)
	c.RecordDiverted("canonicalize", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.rowsWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rowsDiverted.WithLabelValues("parse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rowsDiverted.WithLabelValues("canonicalize")))

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "canonxml_canonicalize_seconds" {
			assert.Equal(t, uint64(4), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}

func TestCollector_Source(t *testing.T) {
	c := NewCollector("xml_canonicalize")
	src := c.Source(&fixedSource{recs: []row.Record{{row.Text("<a/>")}, {nil}}})

	assert.Equal(t, row.Schema{{Name: "payload", Type: row.TypeText}}, src.Schema())
	for {
		_, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(c.rowsRead))
}

func TestCollector_StepLabel(t *testing.T) {
	c := NewCollector("orders_c14n")
	c.RecordEmitted(time.Millisecond)

	expected := `
# HELP canonxml_rows_written_total Records emitted with a canonical XML field.
# TYPE canonxml_rows_written_total counter
canonxml_rows_written_total{step="orders_c14n"} 1
`
	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "canonxml_rows_written_total")
	assert.NoError(t, err)
}

func TestCollector_WithProcessor(t *testing.T) {
	c := NewCollector("xml_canonicalize")
	p := stage.New(stage.Config{InputField: "payload"}, stage.WithObserver(c))
	in := row.Schema{{Name: "payload", Type: row.TypeText}}

	_, err := p.Process(1, in, row.Record{row.Text("<doc>a</doc>")})
	require.NoError(t, err)
	_, err = p.Process(2, in, row.Record{row.Text("<doc>")})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.rowsWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rowsDiverted.WithLabelValues("parse")))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector("xml_canonicalize")
	c.RecordDiverted("parse", time.Millisecond)

	path := filepath.Join(t.TempDir(), "canonxml.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `canonxml_rows_diverted_total{kind="parse",step="xml_canonicalize"} 1`)
	assert.Contains(t, string(data), "canonxml_canonicalize_seconds_bucket")
}

func TestWriteTextfile_EmptyPath(t *testing.T) {
	assert.Error(t, NewCollector("x").WriteTextfile(""))
}
