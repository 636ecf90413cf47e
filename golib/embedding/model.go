//go:build tensorflow
// +build tensorflow

package embedding

import (
	"context"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/tensorflow"
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

// Model embeds text with a frozen graph run in process
type Model struct {
	opts  ModelOpts
	model *tensorflow.Model
}

// NewModel prepares the graph at opts.Path; it is loaded on the first Embed
func NewModel(opts ModelOpts) (*Model, error) {
	m, err := tensorflow.NewModel(opts.Path)
	if err != nil {
		return nil, err
	}
	return &Model{opts: opts, model: m}, nil
}

// Embed implements Embedder
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := m.model.Run(map[string]interface{}{
		m.opts.Input: []string{text},
	}, []string{m.opts.Output})
	if err != nil {
		return nil, err
	}

	batch, ok := res[m.opts.Output].([][]float32)
	if !ok || len(batch) != 1 {
		return nil, errors.Errorf("unexpected %T output from %s", res[m.opts.Output], m.opts.Output)
	}
	return batch[0], nil
}

// Unload releases the graph
func (m *Model) Unload() {
	m.model.Unload()
}
