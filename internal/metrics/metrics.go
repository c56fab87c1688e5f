// Package metrics exposes Prometheus counters for canonxml runs.
//
// A Collector owns its own registry so that several runs in one process
// (tests, copies) never collide on the global default registry. The CLI
// dumps the registry in text exposition format with WriteTextfile for the
// node_exporter textfile collector.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/canonxml/internal/row"
	"github.com/roach88/canonxml/internal/stage"
)

const (
	namespace = "canonxml"
	kindLabel = "kind"
	stepLabel = "step"
)

var _ stage.Observer = (*Collector)(nil)

// Collector implements stage.Observer on top of Prometheus metrics.
//
// Thread-safety: safe for concurrent use; the underlying Prometheus
// metrics are atomic.
type Collector struct {
	registry *prometheus.Registry

	rowsRead     prometheus.Counter
	rowsWritten  prometheus.Counter
	rowsDiverted *prometheus.CounterVec
	canonDur     prometheus.Histogram
}

// NewCollector creates a Collector labelled with the step name.
func NewCollector(stepName string) *Collector {
	labels := prometheus.Labels{stepLabel: stepName}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		rowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_read_total",
			Help:        "Records read from the input stream.",
			ConstLabels: labels,
		}),
		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_written_total",
			Help:        "Records emitted with a canonical XML field.",
			ConstLabels: labels,
		}),
		rowsDiverted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_diverted_total",
			Help:        "Records diverted to the error channel, by failure kind.",
			ConstLabels: labels,
		}, []string{kindLabel}),
		canonDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "canonicalize_seconds",
			Help:        "Time spent parsing and canonicalizing one document.",
			ConstLabels: labels,
			Buckets:     []float64{0.0001, 0.001, 0.01, 0.1, 1.0}, // 100 µs to 1 s
		}),
	}

	c.registry.MustRegister(c.rowsRead, c.rowsWritten, c.rowsDiverted, c.canonDur)
	return c
}

// Registry returns the Collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordEmitted implements stage.Observer.
func (c *Collector) RecordEmitted(elapsed time.Duration) {
	c.rowsWritten.Inc()
	c.canonDur.Observe(elapsed.Seconds())
}

// RecordDiverted implements stage.Observer.
func (c *Collector) RecordDiverted(kind string, elapsed time.Duration) {
	c.rowsDiverted.WithLabelValues(kind).Inc()
	c.canonDur.Observe(elapsed.Seconds())
}

// Source wraps src so that every record it yields counts as read.
func (c *Collector) Source(src stage.Source) stage.Source {
	return &countingSource{Source: src, read: c.rowsRead}
}

type countingSource struct {
	stage.Source
	read prometheus.Counter
}

func (s *countingSource) Next(ctx context.Context) (row.Record, error) {
	rec, err := s.Source.Next(ctx)
	if err == nil {
		s.read.Inc()
	}
	return rec, err
}

// WriteTextfile writes the registry to path in the text exposition format.
// The file is written atomically.
func (c *Collector) WriteTextfile(path string) error {
	if path == "" {
		return errors.New("metrics: empty textfile path")
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
