package stage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/canonxml/internal/row"
)

// Source supplies records. Next returns io.EOF once the stream is exhausted.
type Source interface {
	Schema() row.Schema
	Next(ctx context.Context) (row.Record, error)
}

// Sink accepts transformed records.
type Sink interface {
	Write(ctx context.Context, schema row.Schema, rec row.Record) error
}

// ErrorSink accepts diverted records.
type ErrorSink interface {
	WriteError(ctx context.Context, rec ErrorRecord) error
}

// Summary counts what a run did.
type Summary struct {
	Read        int64 `json:"read"`
	Written     int64 `json:"written"`
	Diverted    int64 `json:"diverted"`
	Initialized bool  `json:"initialized"`
}

// ErrorSinks fans one ErrorRecord out to several sinks, in order.
type ErrorSinks []ErrorSink

// WriteError implements ErrorSink. The first failing sink stops the fan-out.
func (s ErrorSinks) WriteError(ctx context.Context, rec ErrorRecord) error {
	for _, sink := range s {
		if err := sink.WriteError(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Run drives p over src until end of stream, a fatal error, or ctx is done.
//
// ERROR HANDLING: per-record failures are routed to errs and the stream
// continues. StepErrors, source errors and sink errors stop the run and are
// returned; the Summary reflects the records handled before the stop.
func Run(ctx context.Context, p *Processor, src Source, out Sink, errs ErrorSink) (Summary, error) {
	var sum Summary
	clock := NewClock()
	in := src.Schema()

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read record %d: %w", clock.Current()+1, err)
		}
		seq := clock.Next()
		sum.Read++

		res, err := p.Process(seq, in, rec)
		sum.Initialized = p.State() == Initialized
		if err != nil {
			p.logger.Error("step aborted", "seq", seq, "error", err)
			return sum, err
		}
		if err := route(ctx, res, out, errs, &sum); err != nil {
			return sum, err
		}
	}

	p.logger.Info("step finished",
		"read", sum.Read,
		"written", sum.Written,
		"diverted", sum.Diverted,
	)
	return sum, nil
}

// route delivers one result to the matching sink.
func route(ctx context.Context, res Result, out Sink, errs ErrorSink, sum *Summary) error {
	switch r := res.(type) {
	case Emit:
		if err := out.Write(ctx, r.Schema, r.Record); err != nil {
			return fmt.Errorf("write record %d: %w", r.Seq, err)
		}
		sum.Written++
	case Divert:
		if err := errs.WriteError(ctx, r.Error); err != nil {
			return fmt.Errorf("write error record %d: %w", r.Error.Seq, err)
		}
		sum.Diverted++
	default:
		return fmt.Errorf("unknown result type %T", res)
	}
	return nil
}
