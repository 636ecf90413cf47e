//go:build !tensorflow
// +build !tensorflow

package embedding

import (
	"context"

	"github.com/dlr-sara/gridclamp/golib/errors"
)

// ModelOpts names the string input and the vector output of a frozen embedding graph
type ModelOpts struct {
	Path   string
	Input  string
	Output string
}

// DefaultModelOpts for graphs exported with a single string placeholder
var DefaultModelOpts = ModelOpts{
	Input:  "inputs",
	Output: "outputs",
}

// ErrNoTensorflow is returned by NewModel in binaries built without the tensorflow tag
var ErrNoTensorflow = errors.New("built without tensorflow support, rebuild with -tags tensorflow")

// Model is unavailable without the tensorflow build tag
type Model struct{}

// NewModel always fails without the tensorflow build tag
func NewModel(opts ModelOpts) (*Model, error) {
	return nil, ErrNoTensorflow
}

// Embed implements Embedder
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrNoTensorflow
}

// Unload is a no-op
func (m *Model) Unload() {}
