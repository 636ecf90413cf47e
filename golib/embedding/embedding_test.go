package embedding

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dlr-sara/gridclamp/golib/diskcache"
	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counting struct {
	calls int
	vec   []float32
	err   error
}

func (c *counting) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.vec, nil
}

func TestMemo(t *testing.T) {
	inner := &counting{vec: []float32{1, 2, 3}}
	m, err := NewMemo(inner, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, err := m.Embed(context.Background(), "grasp the clamp")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3}, v)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, m.Len())

	_, err = m.Embed(context.Background(), "place the clamp")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestMemoDoesNotRememberErrors(t *testing.T) {
	inner := &counting{err: errors.New("unreachable")}
	m, err := NewMemo(inner, 4)
	require.NoError(t, err)

	_, err = m.Embed(context.Background(), "x")
	assert.Error(t, err)
	_, err = m.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, m.Len())
}

func TestConstant(t *testing.T) {
	inner := &counting{vec: []float32{0.5}}
	c := NewConstant(context.Background(), inner, "grasp the clamp")

	v1, err := c.Vector()
	require.NoError(t, err)
	v2, err := c.Vector()
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	// every caller gets the same backing array
	assert.Same(t, &v1[0], &v2[0])

	failing := NewConstant(context.Background(), &counting{err: errors.New("down")}, "x")
	_, err = failing.Vector()
	assert.Error(t, err)
	_, err = failing.Vector()
	assert.Error(t, err)
}

func TestChecked(t *testing.T) {
	e := Checked(&counting{vec: make([]float32, 3)}, 4)
	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)

	e = Checked(&counting{vec: make([]float32, 4)}, 4)
	v, err := e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 4)
}

func TestTFServing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/models/encoder:predict", r.URL.Path)

		var req predictRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.Instances) != 1 || req.Instances[0] != "grasp the clamp" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(predictResponse{Error: "unknown instruction"})
			return
		}
		json.NewEncoder(w).Encode(predictResponse{Predictions: [][]float32{{0.25, -1}}})
	}))
	defer srv.Close()

	tfs := NewTFServing(srv.URL+"/", "encoder")
	v, err := tfs.Embed(context.Background(), "grasp the clamp")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -1}, v)

	_, err = tfs.Embed(context.Background(), "something else")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown instruction")

	assert.Equal(t, MetricsSnapshot{Requests: 2, Success: 1, Errors: 1}, tfs.Metrics())
}

func TestTFServingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewTFServing(addr, "encoder").Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestCached(t *testing.T) {
	dir, err := ioutil.TempDir("", "embedding")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cache, err := diskcache.Open(dir, diskcache.Options{})
	require.NoError(t, err)

	inner := &counting{vec: []float32{1.5, -2, 0}}
	v, err := NewCached(inner, cache, "model").Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, inner.vec, v)

	// a later run is served from disk even when the model is down
	down := &counting{err: errors.New("down")}
	v, err = NewCached(down, cache, "model").Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2, 0}, v)
	assert.Equal(t, 0, down.calls)

	// other namespaces miss
	_, err = NewCached(down, cache, "other").Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestNewStatic(t *testing.T) {
	dir, err := ioutil.TempDir("", "embedding")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "table.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(`{"grasp the clamp": [1, 2]}`), 0644))

	e, err := New(Options{StaticPath: path, Dim: 2})
	require.NoError(t, err)
	v, err := e.Embed(context.Background(), "grasp the clamp")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)

	_, err = e.Embed(context.Background(), "unknown")
	assert.Error(t, err)

	e, err = New(Options{StaticPath: path, Dim: 512})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "grasp the clamp")
	assert.Error(t, err)

	_, err = New(Options{})
	assert.Error(t, err)
}
