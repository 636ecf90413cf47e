package embedding

import (
	"context"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/serialization"
)

// Static looks vectors up in a fixed table
type Static map[string][]float32

// Embed implements Embedder
func (s Static) Embed(ctx context.Context, text string) ([]float32, error) {
	v, ok := s[text]
	if !ok {
		return nil, errors.Errorf("no embedding for %q", text)
	}
	return v, nil
}

// LoadStatic reads a table of text to vector from a json, yaml or gob file (local or s3)
func LoadStatic(path string) (Static, error) {
	table := make(Static)
	if err := serialization.Decode(path, &table); err != nil {
		return nil, errors.Wrapf(err, "error loading embeddings from %s", path)
	}
	return table, nil
}
