package embedding

import (
	"github.com/dlr-sara/gridclamp/golib/diskcache"
	"github.com/dlr-sara/gridclamp/golib/errors"
)

// Options selects and decorates a backend. Exactly one of StaticPath, GraphPath and Addr is used,
// in that order of preference.
type Options struct {
	// StaticPath is a json/yaml/gob table of text to vector
	StaticPath string
	// GraphPath is a frozen graph run in process
	GraphPath string
	// Addr of a TF Serving instance serving ModelName
	Addr      string
	ModelName string

	// CacheDir, if set, keeps vectors on disk between runs
	CacheDir string
	// Dim is the expected vector size, 0 to accept any
	Dim int
}

// DefaultOptions expect a local TF Serving instance
var DefaultOptions = Options{
	Addr:      "http://localhost:8501",
	ModelName: "language_encoder",
	Dim:       Dimension,
}

const memoSize = 64

// New returns the backend described by opts, memoized and checked for dimension
func New(opts Options) (Embedder, error) {
	var e Embedder
	namespace := opts.ModelName

	switch {
	case opts.StaticPath != "":
		static, err := LoadStatic(opts.StaticPath)
		if err != nil {
			return nil, err
		}
		e = static
		namespace = opts.StaticPath
	case opts.GraphPath != "":
		mo := DefaultModelOpts
		mo.Path = opts.GraphPath
		m, err := NewModel(mo)
		if err != nil {
			return nil, err
		}
		e = m
		namespace = opts.GraphPath
	case opts.Addr != "":
		if opts.ModelName == "" {
			return nil, errors.Errorf("a model name is required to query %s", opts.Addr)
		}
		e = NewTFServing(opts.Addr, opts.ModelName)
	default:
		return nil, errors.Errorf("no embedding backend configured")
	}

	e = Checked(e, opts.Dim)

	if opts.CacheDir != "" {
		cache, err := diskcache.Open(opts.CacheDir, diskcache.Options{})
		if err != nil {
			return nil, errors.Wrapf(err, "error opening embedding cache")
		}
		e = NewCached(e, cache, namespace)
	}

	m, err := NewMemo(e, memoSize)
	if err != nil {
		return nil, err
	}
	return m, nil
}
