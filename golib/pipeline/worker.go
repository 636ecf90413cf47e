package pipeline

import (
	"fmt"
	"io"
	"log"
)

// worker maintains clones of the dependent feeds in a pipeline and pushes records through them.
type worker struct {
	clone PipeClone
	stats *runStats
	opts  EngineOptions

	logger io.Writer
}

func newWorker(e *Engine) (worker, error) {
	clone, err := e.pipe.CloneForWorker()
	if err != nil {
		return worker{}, err
	}

	return worker{
		clone:  clone,
		stats:  &e.stats,
		opts:   e.opts,
		logger: e.opts.Logger,
	}, nil
}

// Run the pipeline for the given record originating from the given source. With AbortOnError set,
// the first failed sample stops the record and is returned.
func (w worker) Run(s Source, rec Record) error {
	w.logf("running %s", rec.Key)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic for source: %s, key: %v", s.Name(), rec.Key)
			panic(r)
		}
	}()

	for _, dep := range w.clone.Dependents[s] {
		if err := w.runDependent(s, rec, dep, rec.Value); err != nil {
			return err
		}
	}
	return nil
}

// ClonedAggregator for the given original one
func (w worker) ClonedAggregator(agg Aggregator) Aggregator {
	return w.clone.OrigToClone[agg].(Aggregator)
}

func (w worker) runDependent(s Source, rec Record, d Dependent, in Sample) error {
	w.stats.IncrFeedIn(w.clone.CloneToOrig[d])

	d.In(in)

	t, ok := d.(Transform)
	if !ok {
		return nil
	}

	for {
		sample := t.TransformOut()
		if ks, ok := sample.(Keyed); ok {
			if se, ok := ks.Sample.(sampleError); ok {
				if err := w.fail(d, s, rec, ks.Key, se); err != nil {
					return err
				}
				continue
			}
		}

		switch se := sample.(type) {
		case nil:
			return nil
		case sampleError:
			if err := w.fail(d, s, rec, rec.Key, se); err != nil {
				return err
			}
		default:
			w.stats.IncrFeedOut(w.clone.CloneToOrig[d])

			for _, dep := range w.clone.Dependents[d] {
				if err := w.runDependent(s, rec, dep, sample); err != nil {
					return err
				}
			}
		}
	}
}

func (w worker) fail(d Dependent, s Source, rec Record, key string, se sampleError) error {
	if key == "" {
		key = rec.Key
	}
	fe := w.stats.AddFeedError(w.clone.CloneToOrig[d], s.Name(), key, se)
	if w.opts.ErrorFn != nil {
		w.opts.ErrorFn(fe)
	}
	w.logf("%v", fe)
	if w.opts.AbortOnError {
		return fe
	}
	return nil
}

func (w worker) logf(fstr string, args ...interface{}) {
	if w.logger != nil {
		fmt.Fprintf(w.logger, fstr+"\n", args...)
	}
}
