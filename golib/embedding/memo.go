package embedding

import (
	"context"
	"sync"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/lazy"
	lru "github.com/hashicorp/golang-lru"
)

// Memo remembers the vectors of recently embedded texts. Returned slices are shared
// between callers and must not be modified.
type Memo struct {
	inner Embedder

	m     sync.Mutex
	cache *lru.Cache
}

// NewMemo wraps inner, remembering up to size texts
func NewMemo(inner Embedder, size int) (*Memo, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating memo cache")
	}
	return &Memo{
		inner: inner,
		cache: cache,
	}, nil
}

// Embed implements Embedder. Concurrent misses for the same text are computed once.
func (m *Memo) Embed(ctx context.Context, text string) ([]float32, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if v, ok := m.cache.Get(text); ok {
		return v.([]float32), nil
	}

	v, err := m.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.Add(text, v)
	return v, nil
}

// Len is the number of remembered texts
func (m *Memo) Len() int {
	return m.cache.Len()
}

// Constant is the embedding of a single text, computed on first use
type Constant struct {
	Text string

	loader *lazy.Loader
	vec    []float32
}

// NewConstant embeds text with e the first time Vector is called. ctx bounds that call.
func NewConstant(ctx context.Context, e Embedder, text string) *Constant {
	c := &Constant{Text: text}
	c.loader = lazy.NewLoader(func() error {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return errors.Wrapf(err, "error embedding %q", text)
		}
		c.vec = v
		return nil
	}, func() {
		c.vec = nil
	})
	return c
}

// Vector returns the embedding. A failed lookup is not retried.
func (c *Constant) Vector() ([]float32, error) {
	if err := c.loader.LoadAndLock(); err != nil {
		return nil, err
	}
	defer c.loader.Unlock()
	return c.vec, nil
}
