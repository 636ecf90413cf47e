package source

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/dlr-sara/gridclamp/golib/pipeline"
	"github.com/dlr-sara/gridclamp/golib/pipeline/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(s pipeline.Source) []pipeline.Record {
	var recs []pipeline.Record
	for {
		rec := s.SourceOut()
		if rec.Key == "" && rec.Value == nil {
			return recs
		}
		recs = append(recs, rec)
	}
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"episode_2.npy", "episode_1.npy", "readme.md"} {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	var logs bytes.Buffer
	g := NewGlob("train", filepath.Join(dir, "episode_*.npy"), &logs)
	recs := drain(g)
	require.Len(t, recs, 2)

	first := filepath.Join(dir, "episode_1.npy")
	assert.Equal(t, first, recs[0].Key)
	assert.Equal(t, pipeline.Keyed{Key: first, Sample: sample.FilePath(first)}, recs[0].Value)
	assert.Contains(t, logs.String(), "2 files match")
}

func TestGlobNoMatch(t *testing.T) {
	g := NewGlob("train", filepath.Join(t.TempDir(), "missing", "episode_*.npy"), nil)
	assert.Empty(t, drain(g))
}
