package tensorflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitOutput(t *testing.T) {
	for _, c := range []struct {
		in    string
		name  string
		index int
	}{
		{"output", "output", 0},
		{"encoder/output:1", "encoder/output", 1},
		{"encoder/output:x", "encoder/output:x", 0},
		{"a:b:2", "a:b", 2},
	} {
		name, index := splitOutput(c.in)
		assert.Equal(t, c.name, name, c.in)
		assert.Equal(t, c.index, index, c.in)
	}
}
