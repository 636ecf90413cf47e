// Package embedding computes fixed-size vectors for text from an external model.
//
// Backends (TFServing, Model, Static) are usually wrapped by the Cached and Memo
// decorators; the builder only ever embeds one instruction, so a run makes at most
// one request to the model.
package embedding

import (
	"context"

	"github.com/dlr-sara/gridclamp/golib/errors"
)

// Dimension of the language embeddings stored in the dataset
const Dimension = 512

// Embedder maps text to a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a function to the Embedder interface
type Func func(ctx context.Context, text string) ([]float32, error)

// Embed implements Embedder
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// checkDim returns an error if v does not have dim entries; dim <= 0 accepts any length
func checkDim(v []float32, dim int) error {
	if dim > 0 && len(v) != dim {
		return errors.Errorf("expected a %d dimensional embedding, got %d", dim, len(v))
	}
	return nil
}

// Checked rejects vectors of the wrong dimension
func Checked(e Embedder, dim int) Embedder {
	return Func(func(ctx context.Context, text string) ([]float32, error) {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := checkDim(v, dim); err != nil {
			return nil, errors.Wrapf(err, "embedding %q", text)
		}
		return v, nil
	})
}
