package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/canonxml/internal/row"
)

type job struct {
	seq int64
	rec row.Record
}

// RunCopies runs n independent Processors over src.
//
// Records are dealt round-robin by sequence number. Each copy owns its
// Processor (and so its own ProcessingContext and c14n engine). Results are
// re-sequenced before delivery, so out and errs see records in input order
// and are only ever called from the calling goroutine.
//
// newProcessor is called once per copy. n <= 1 is equivalent to Run.
// A failing copy logs through its own Processor's logger; the run summary is
// logged through the logger of copy 0.
func RunCopies(
	ctx context.Context,
	n int,
	newProcessor func(idx int) *Processor,
	src Source,
	out Sink,
	errs ErrorSink,
) (Summary, error) {
	if n <= 1 {
		return Run(ctx, newProcessor(0), src, out, errs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	in := src.Schema()
	clock := NewClock()

	var read atomic.Int64
	var initialized atomic.Bool

	jobs := make([]chan job, n)
	for i := range jobs {
		jobs[i] = make(chan job, 1)
	}
	results := make(chan Result, n)

	// Distributor: the only reader of src.
	g.Go(func() error {
		defer func() {
			for _, ch := range jobs {
				close(ch)
			}
		}()
		for {
			rec, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read record %d: %w", clock.Current()+1, err)
			}
			seq := clock.Next()
			read.Add(1)
			select {
			case jobs[(seq-1)%int64(n)] <- job{seq: seq, rec: rec}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	var lead *Processor
	for i := 0; i < n; i++ {
		p := newProcessor(i)
		if i == 0 {
			lead = p
		}
		ch := jobs[i]
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for j := range ch {
				res, err := p.Process(j.seq, in, j.rec)
				if p.State() == Initialized {
					initialized.Store(true)
				}
				if err != nil {
					p.logger.Error("step aborted", "seq", j.seq, "error", err)
					return err
				}
				select {
				case results <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	var sum Summary
	collectErr := collect(ctx, results, out, errs, &sum)
	if collectErr != nil {
		cancel()
	}
	groupErr := g.Wait()

	sum.Read = read.Load()
	sum.Initialized = initialized.Load()

	// A fatal step error outranks the cancellation it caused downstream.
	if groupErr != nil && !errors.Is(groupErr, context.Canceled) {
		return sum, groupErr
	}
	if collectErr != nil {
		return sum, collectErr
	}
	if groupErr != nil {
		return sum, groupErr
	}

	lead.logger.Info("step finished",
		"copies", n,
		"read", sum.Read,
		"written", sum.Written,
		"diverted", sum.Diverted,
	)
	return sum, nil
}

// collect restores sequence order and routes results to the sinks.
// Results that arrive early wait in pending until their predecessors land.
func collect(ctx context.Context, results <-chan Result, out Sink, errs ErrorSink, sum *Summary) error {
	pending := make(map[int64]Result)
	next := int64(1)

	for res := range results {
		pending[resultSeq(res)] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := route(ctx, r, out, errs, sum); err != nil {
				return err
			}
			next++
		}
	}
	return nil
}

func resultSeq(res Result) int64 {
	switch r := res.(type) {
	case Emit:
		return r.Seq
	case Divert:
		return r.Error.Seq
	default:
		return 0
	}
}
