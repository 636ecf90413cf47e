package dependent

import (
	"github.com/dlr-sara/gridclamp/golib/pipeline"
)

type funcDependent struct {
	name string
	in   func(pipeline.Sample)
}

func (f *funcDependent) Name() string {
	return f.name
}

// Clone shares the function, so any state it closes over is shared by the clones
func (f *funcDependent) Clone() pipeline.Dependent {
	return NewFromFunc(f.name, f.in)
}

func (f *funcDependent) In(s pipeline.Sample) {
	f.in(s)
}

// NewFromFunc returns a pipeline.Dependent that is used to wrap a function which operates on a closed over state
// and may have any desired side effects.
func NewFromFunc(name string, in func(pipeline.Sample)) pipeline.Dependent {
	return &funcDependent{
		name: name,
		in:   in,
	}
}

// NewKeyed wraps a function of the record key and the typed sample of a keyed transform's output.
// Samples of any other shape are ignored.
func NewKeyed[T pipeline.Sample](name string, in func(key string, s T)) pipeline.Dependent {
	return NewFromFunc(name, func(s pipeline.Sample) {
		k, ok := s.(pipeline.Keyed)
		if !ok {
			return
		}
		if v, ok := k.Sample.(T); ok {
			in(k.Key, v)
		}
	})
}
