package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dlr-sara/gridclamp/golib/errors"
)

// EngineOptions configures a run
type EngineOptions struct {
	// Logger receives one line per record and per failure; nil disables them.
	Logger io.Writer
	// AbortOnError stops the run at the first failed sample and returns it from Run.
	// Otherwise failures are counted in the run stats and the run continues.
	AbortOnError bool
	// ErrorFn, if set, is called for every failed sample.
	ErrorFn func(FeedError)
}

// DefaultEngineOptions aborts on the first failure
var DefaultEngineOptions = EngineOptions{
	AbortOnError: true,
}

// Engine runs a pipeline sequentially: every record of every source, in order, is pushed
// through the dependency graph before the next one is requested.
type Engine struct {
	pipe  Pipeline
	opts  EngineOptions
	stats runStats
	ran   bool
}

// NewEngine validates the pipeline and returns an engine for a single run.
func NewEngine(pipe Pipeline, opts EngineOptions) (*Engine, error) {
	if err := pipe.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid pipeline %s", pipe.Name)
	}
	return &Engine{
		pipe:  pipe,
		opts:  opts,
		stats: newRunStats(),
	}, nil
}

// Run is RunContext with a background context
func (e *Engine) Run() (map[Aggregator]Sample, error) {
	return e.RunContext(context.Background())
}

// RunContext drains every source and returns the final Sample of each Aggregator. The context is checked
// between records. On failure the Aggregators implementing Aborter are aborted and nothing is finalized.
func (e *Engine) RunContext(ctx context.Context) (map[Aggregator]Sample, error) {
	if e.ran {
		return nil, errors.Errorf("pipeline %s: engine can only run once", e.pipe.Name)
	}
	e.ran = true

	start := time.Now()
	e.logf("pipeline %s: starting with params %v", e.pipe.Name, e.pipe.Params)

	w, err := newWorker(e)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline %s: error cloning feeds", e.pipe.Name)
	}

	if err := e.drain(ctx, w); err != nil {
		return nil, e.abort(w, err)
	}

	res := make(map[Aggregator]Sample)
	aggs := e.pipe.Aggregators()
	for _, agg := range aggs {
		s, err := agg.AggregateLocal([]Aggregator{w.ClonedAggregator(agg)})
		if err != nil {
			return nil, e.abort(w, errors.Wrapf(err, "aggregating %s", agg.Name()))
		}
		res[agg] = s
	}

	var finalizeErr error
	for _, agg := range aggs {
		if err := agg.Finalize(); err != nil {
			finalizeErr = errors.Combine(finalizeErr, errors.Wrapf(err, "finalizing %s", agg.Name()))
		}
	}
	if finalizeErr != nil {
		return nil, finalizeErr
	}

	e.logf("pipeline %s: done in %s, %d records, %d failed samples",
		e.pipe.Name, time.Since(start), e.stats.Records, e.stats.NumErrors())
	return res, nil
}

func (e *Engine) drain(ctx context.Context, w worker) error {
	for _, s := range w.clone.Sources {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			rec := s.SourceOut()
			if rec.Key == "" && rec.Value == nil {
				break
			}
			e.stats.Records++

			if se, ok := rec.Value.(sampleError); ok {
				fe := e.stats.AddFeedError(s, s.Name(), rec.Key, se)
				if e.opts.ErrorFn != nil {
					e.opts.ErrorFn(fe)
				}
				e.logf("%v", fe)
				if e.opts.AbortOnError {
					return fe
				}
				continue
			}

			if err := w.Run(s, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// abort releases the resources of cloned aggregators after a failed run
func (e *Engine) abort(w worker, cause error) error {
	err := cause
	aggs := w.clone.Aggregators()
	sort.Slice(aggs, func(i, j int) bool {
		return aggs[i].Name() < aggs[j].Name()
	})
	for _, agg := range aggs {
		a, ok := agg.(Aborter)
		if !ok {
			continue
		}
		if abortErr := a.Abort(); abortErr != nil {
			err = errors.Combine(err, errors.Wrapf(abortErr, "aborting %s", agg.Name()))
		}
	}
	return err
}

// Stats returns a snapshot of the run statistics
func (e *Engine) Stats() RunStats {
	return e.stats.snapshot()
}

func (e *Engine) logf(fstr string, args ...interface{}) {
	if e.opts.Logger != nil {
		fmt.Fprintf(e.opts.Logger, fstr+"\n", args...)
	}
}
