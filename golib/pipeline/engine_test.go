package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGetEngine(t *testing.T, parents ParentMap, sources ...Source) *Engine {
	return mustGetEngineWithOpts(t, DefaultEngineOptions, parents, sources...)
}

func mustGetEngineWithOpts(t *testing.T, opts EngineOptions, parents ParentMap, sources ...Source) *Engine {
	pipe := Pipeline{Name: "test", Parents: parents, Sources: sources}
	e, err := NewEngine(pipe, opts)
	require.NoError(t, err)
	return e
}

type intSample int

func (i intSample) SampleTag() {}

type intList struct {
	l   []int
	pos int
}

// intList implements Source
func (i *intList) SourceOut() Record {
	if i.pos >= len(i.l) {
		return Record{}
	}

	s := i.l[i.pos]
	i.pos++
	var v Sample = intSample(s)
	if s < 0 {
		v = NewError("negative")
	}
	return Record{
		Key:   strconv.Itoa(i.pos),
		Value: v,
	}
}

// intList implements Source
func (i *intList) Name() string {
	return "intList"
}

type intSum struct {
	s       int
	name    string
	aborted *bool
	final   *bool
}

func newIntSum(name string) *intSum {
	return &intSum{
		name:    name,
		aborted: new(bool),
		final:   new(bool),
	}
}

// intSum implements Aggregator
func (i *intSum) Name() string {
	return i.name
}

// intSum implements Aggregator
func (i *intSum) Clone() Dependent {
	return &intSum{name: i.name, aborted: i.aborted, final: i.final}
}

// intSum implements Aggregator
func (i *intSum) In(s Sample) {
	i.s += int(s.(intSample))
}

// intSum implements Aggregator
func (i *intSum) AggregateLocal(clones []Aggregator) (Sample, error) {
	var sum int
	for _, c := range clones {
		sum += c.(*intSum).s
	}
	return intSample(sum), nil
}

// Finalize implements Aggregator
func (i *intSum) Finalize() error {
	*i.final = true
	return nil
}

// Abort implements Aborter
func (i *intSum) Abort() error {
	*i.aborted = true
	return nil
}

type repeater struct {
	n int

	s        Sample
	repeated int
}

// repeater implements Transform
func (r *repeater) Name() string {
	return "repeater"
}

// repeater implements Transform
func (r *repeater) In(s Sample) {
	r.s = s
	r.repeated = 0
}

// repeater implements Transform
func (r *repeater) TransformOut() Sample {
	if r.repeated == r.n {
		return nil
	}

	r.repeated++
	return r.s
}

// repeater implements Transform
func (r *repeater) Clone() Dependent {
	return &repeater{n: r.n}
}

// rejectOdd fails odd samples
type rejectOdd struct {
	s Sample
}

func (r *rejectOdd) Name() string     { return "rejectOdd" }
func (r *rejectOdd) Clone() Dependent { return &rejectOdd{} }

func (r *rejectOdd) In(s Sample) {
	if int(s.(intSample))%2 == 1 {
		r.s = WrapError("odd", errors.New("odd value"))
		return
	}
	r.s = s
}

func (r *rejectOdd) TransformOut() Sample {
	s := r.s
	r.s = nil
	return s
}

func intResult(s Sample) int {
	return int(s.(intSample))
}

func TestPipelineTwoStage(t *testing.T) {
	source := &intList{
		l: []int{1, 2, 3},
	}

	agg := newIntSum("agg")

	e := mustGetEngine(t, map[Dependent]Feed{
		agg: source,
	}, source)

	res, err := e.Run()
	require.NoError(t, err)

	assert.Equal(t, 6, intResult(res[agg]))
	assert.True(t, *agg.final)
	assert.Equal(t, 3, e.Stats().Records)
}

func TestPipelineThreeStage(t *testing.T) {
	source := &intList{
		l: []int{1, 2, 3},
	}
	r := &repeater{
		n: 2,
	}
	agg := newIntSum("agg")

	e := mustGetEngine(t, map[Dependent]Feed{
		r:   source,
		agg: r,
	}, source)

	res, err := e.Run()
	require.NoError(t, err)

	assert.Equal(t, 12, intResult(res[agg]))
	assert.Equal(t, 3, e.Stats().FeedIn["repeater"])
	assert.Equal(t, 6, e.Stats().FeedOut["repeater"])
}

func TestPipelineSplit(t *testing.T) {
	source := &intList{
		l: []int{1, 2, 3},
	}
	r := &repeater{
		n: 2,
	}
	agg1 := newIntSum("agg1")
	agg2 := newIntSum("agg2")

	pm := make(ParentMap)
	pm[r] = source
	pm.FanOut(r, agg1, agg2)
	e := mustGetEngine(t, pm, source)

	res, err := e.Run()
	require.NoError(t, err)

	assert.Equal(t, 12, intResult(res[agg1]))
	assert.Equal(t, 12, intResult(res[agg2]))
}

func TestAbortOnError(t *testing.T) {
	source := &intList{
		l: []int{2, 3, 4},
	}
	agg := newIntSum("agg")
	pm := make(ParentMap)
	pm.Chain(source, &rejectOdd{}, agg)

	var logs bytes.Buffer
	e := mustGetEngineWithOpts(t, EngineOptions{AbortOnError: true, Logger: &logs}, pm, source)

	_, err := e.Run()
	require.Error(t, err)

	var fe FeedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "rejectOdd", fe.Feed)
	assert.Equal(t, "2", fe.Key)
	assert.Equal(t, "odd", fe.Reason)

	assert.True(t, *agg.aborted)
	assert.False(t, *agg.final)
	// the record after the failure is never requested
	assert.Equal(t, 2, e.Stats().Records)
	assert.Contains(t, logs.String(), "rejectOdd failed on 2")
}

func TestSkipErrors(t *testing.T) {
	source := &intList{
		l: []int{2, 3, -1, 4},
	}
	agg := newIntSum("agg")
	pm := make(ParentMap)
	pm.Chain(source, &rejectOdd{}, agg)

	var failed []string
	opts := EngineOptions{ErrorFn: func(fe FeedError) { failed = append(failed, fe.Key) }}
	e := mustGetEngineWithOpts(t, opts, pm, source)

	res, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, 6, intResult(res[agg]))

	stats := e.Stats()
	assert.Equal(t, 2, stats.NumErrors())
	assert.Equal(t, 1, stats.ErrorsByReason["rejectOdd"]["odd"])
	assert.Equal(t, 1, stats.ErrorsByReason["intList"]["negative"])
	assert.Equal(t, []string{"2", "3"}, failed)
	assert.Contains(t, stats.String(), "[odd]=1")
}

func TestEmptySource(t *testing.T) {
	source := &intList{}
	agg := newIntSum("agg")
	e := mustGetEngine(t, ParentMap{agg: source}, source)

	res, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, intResult(res[agg]))

	_, err = e.Run()
	assert.Error(t, err)
}

func TestCanceled(t *testing.T) {
	source := &intList{l: []int{1}}
	agg := newIntSum("agg")
	e := mustGetEngine(t, ParentMap{agg: source}, source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RunContext(ctx)
	assert.Equal(t, context.Canceled, err)
	assert.True(t, *agg.aborted)
}

func TestValidate(t *testing.T) {
	source := &intList{}
	agg := newIntSum("agg")

	_, err := NewEngine(Pipeline{Name: "", Parents: ParentMap{agg: source}, Sources: []Source{source}}, DefaultEngineOptions)
	assert.Error(t, err)

	// the parent source is not part of the pipeline
	_, err = NewEngine(Pipeline{Name: "x", Parents: ParentMap{agg: source}}, DefaultEngineOptions)
	assert.Error(t, err)

	_, err = NewEngine(Pipeline{Name: "x", Parents: ParentMap{agg: source, newIntSum("agg"): source}, Sources: []Source{source}}, DefaultEngineOptions)
	assert.Error(t, err)
}

func TestWrapError(t *testing.T) {
	inner := WrapError("load", errors.New("bad magic")).(error)
	outer := WrapError("parse", inner).(error)
	assert.Equal(t, "parse: load: bad magic", outer.Error())
	assert.Equal(t, "parse: load", ErrorReason(outer))
	assert.Equal(t, "", ErrorReason(errors.New("plain")))
}
