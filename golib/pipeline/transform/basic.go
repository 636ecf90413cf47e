package transform

import (
	"github.com/dlr-sara/gridclamp/golib/pipeline"
)

// OneInOneOutFn maps a single input sample to a single output sample.
// Returning nil drops the sample; returning an error sample records a failure.
type OneInOneOutFn func(pipeline.Sample) pipeline.Sample

// WrapOneInOneOutFnKeyed wraps a OneInOneOutFn in a pipeline.Keyed
func WrapOneInOneOutFnKeyed(f OneInOneOutFn) OneInOneOutFn {
	return func(s pipeline.Sample) pipeline.Sample {
		k := s.(pipeline.Keyed)
		res := f(k.Sample)
		if res == nil {
			return nil
		}

		return pipeline.Keyed{
			Key:    k.Key,
			Sample: res,
		}
	}
}

// OneInOneOut is a pipeline.Transform that outputs at most
// one sample for each input.
type OneInOneOut struct {
	name string
	f    OneInOneOutFn

	s pipeline.Sample
}

// NewOneInOneOut returns a pipeline.Transform with `name` that
// applies f once to each input and outputs the output.
func NewOneInOneOut(name string, f OneInOneOutFn) *OneInOneOut {
	return &OneInOneOut{
		name: name,
		f:    f,
	}
}

// NewOneInOneOutKeyed is a convenience function that returns a OneInOneOut pipeline.Transform
// with inputs and outputs that are wrapped in a pipeline.Keyed
func NewOneInOneOutKeyed(name string, f OneInOneOutFn) *OneInOneOut {
	return NewOneInOneOut(name, WrapOneInOneOutFnKeyed(f))
}

// Name implements pipeline.Transform
func (t *OneInOneOut) Name() string {
	return t.name
}

// In implements pipeline.Transform
func (t *OneInOneOut) In(s pipeline.Sample) {
	t.s = t.f(s)
}

// TransformOut implements pipeline.Transform
func (t *OneInOneOut) TransformOut() pipeline.Sample {
	s := t.s
	t.s = nil
	return s
}

// Clone implements pipeline.Transform
func (t *OneInOneOut) Clone() pipeline.Dependent {
	return NewOneInOneOut(t.name, t.f)
}

// IncludeFn returns true for samples that should be emitted
// from a Filter transform.
type IncludeFn func(pipeline.Sample) bool

// Filter wraps a function that inputs a sample and returns true if the sample should be included or not.
type Filter struct {
	name      string
	includeFn IncludeFn

	sample pipeline.Sample
}

// NewFilter is a transform that outputs a sample if includeFn returns true.
func NewFilter(name string, includeFn IncludeFn) *Filter {
	return &Filter{
		name:      name,
		includeFn: includeFn,
	}
}

// In implements pipeline.Transform.
func (f *Filter) In(s pipeline.Sample) {
	if f.includeFn(s) {
		f.sample = s
	} else {
		f.sample = nil
	}
}

// TransformOut implements pipeline.Transform.
func (f *Filter) TransformOut() pipeline.Sample {
	sample := f.sample
	f.sample = nil
	return sample
}

// Name implements pipeline.Transform
func (f *Filter) Name() string { return f.name }

// Clone implements pipeline.Transform.
func (f *Filter) Clone() pipeline.Dependent {
	return NewFilter(f.name, f.includeFn)
}
