package pipeline

// A pipeline is a dependency graph of Feeds. A Feed may be one of the following:
// * Source - creates records for processing. Each record contains a key as well as an associated Sample.
// * Dependent - takes in Samples returned by Sources or other Feeds. Special cases of Dependents are:
//   * Transform - takes in Samples as input and emits Sample(s) for output to other Feeds
//   * Aggregator - takes in Samples and produces one final Sample once every record has been processed.

// Each Dependent has exactly one parent in the pipeline (see ParentMap), whose output is used as its input.
// Sources have no parents.

// Feeds are run by a single worker, in record order. The engine still works on clones of the Dependents
// so the Feeds passed to NewEngine keep no per-run state.

// A Feed describes any entity that emits and/or processes incoming data.
type Feed interface {
	// Name of the feed, unique within a pipeline.
	Name() string
}

// Source describes a Feed that emits records.
type Source interface {
	Feed
	// SourceOut will be repeatedly called until an empty Record struct is returned.
	// A Record whose Value is an error sample (see NewError) reports a failure for that key.
	SourceOut() Record
}

// Record contains a sample emitted by a Source along with some extra metadata.
type Record struct {
	// Key uniquely identifies the record within the source.
	Key string
	// The sample for the given key
	Value Sample
}

// Dependent is used to describe Feeds that take in samples produced by other feeds.
// Only cloned Dependents (see Clone()) are expected to input any data.
type Dependent interface {
	Feed
	// Clone should create a new Dependent that has the same behavior.
	Clone() Dependent
	In(Sample)
}

// Transform describes a Dependent that transforms samples. For every sample received from the parent, In is called
// once, followed by calls to TransformOut until TransformOut returns nil.
type Transform interface {
	Dependent
	TransformOut() Sample
}

// Aggregator describes a Dependent that aggregates results once the engine has processed every record.
type Aggregator interface {
	Dependent
	// AggregateLocal is called on the original (un-cloned) Aggregator after the run, with its clones as arguments.
	// It returns the final Sample for the aggregator.
	AggregateLocal(clones []Aggregator) (Sample, error)
	// Finalize is called once every aggregator has produced its result; it can perform out-of-band
	// operations such as committing output files.
	Finalize() error
}

// Aborter is implemented by Dependents holding resources that must be released when a run
// fails before aggregation.
type Aborter interface {
	Abort() error
}
