package embedding

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/dlr-sara/gridclamp/golib/diskcache"
	"github.com/dlr-sara/gridclamp/golib/errors"
)

// Cached stores vectors in a disk cache so reruns do not need the model.
// Entries are keyed by namespace and text; use the model name as namespace.
type Cached struct {
	inner     Embedder
	cache     *diskcache.Cache
	namespace string
}

// NewCached wraps inner with the disk cache
func NewCached(inner Embedder, cache *diskcache.Cache, namespace string) *Cached {
	return &Cached{
		inner:     inner,
		cache:     cache,
		namespace: namespace,
	}
}

func (c *Cached) key(text string) []byte {
	return []byte(c.namespace + "\x00" + text)
}

// Embed implements Embedder
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	buf, err := c.cache.Get(key)
	switch {
	case err == nil:
		return decodeVector(buf)
	case err != diskcache.ErrNoSuchKey:
		return nil, errors.Wrapf(err, "error reading embedding cache")
	}

	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	buf, err = encodeVector(v)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(key, buf); err != nil {
		return nil, errors.Wrapf(err, "error writing embedding cache")
	}
	return v, nil
}

func encodeVector(v []float32) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, errors.Errorf("corrupt cached embedding of %d bytes", len(buf))
	}
	v := make([]float32, len(buf)/4)
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return v, nil
}
