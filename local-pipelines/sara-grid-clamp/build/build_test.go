package main

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/dlr-sara/gridclamp/golib/rlds"
	"github.com/dlr-sara/gridclamp/local-pipelines/sara-grid-clamp/internal/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSplits(t *testing.T) {
	splits, err := parseSplits([]string{"train=raw/train/*.npy", "val=s3://bucket/val/*.npy"})
	require.NoError(t, err)
	assert.Equal(t, []data.Split{
		{Name: "train", Glob: "raw/train/*.npy"},
		{Name: "val", Glob: "s3://bucket/val/*.npy"},
	}, splits)

	for _, bad := range []string{"train", "=x", "train="} {
		_, err := parseSplits([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestBuildArgsConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "build")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("max_episodes_per_shard: 10\nembedding:\n  graph_path: encoder.pb\n"), 0644))

	a := buildArgs{
		Config:        path,
		DataDir:       dir,
		Split:         []string{"val=raw/*.npy"},
		EmbedStatic:   "table.json",
		SkipMalformed: true,
		MaxEpisodes:   3,
	}
	cfg, err := a.config()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, []data.Split{{Name: "val", Glob: "raw/*.npy"}}, cfg.Splits)
	assert.Equal(t, 10, cfg.MaxEpisodesPerShard)
	assert.Equal(t, 3, cfg.MaxEpisodes)
	assert.True(t, cfg.SkipMalformed)
	assert.Equal(t, data.Instruction, cfg.Instruction)
	// the flag wins over the backend in the file
	assert.Equal(t, "table.json", cfg.Embedding.StaticPath)
	assert.Empty(t, cfg.Embedding.GraphPath)

	a = buildArgs{DataDir: dir, Split: []string{"bad-name=raw/*.npy"}}
	assert.Error(t, a.Validate())
}

func TestWriteInfo(t *testing.T) {
	dir, err := ioutil.TempDir("", "build")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	info := rlds.DatasetInfo{
		Name:    data.DatasetName,
		Version: data.Version,
		Splits: map[string]rlds.SplitInfo{
			"train": {Name: "train", Episodes: 4, Steps: 120, Bytes: 2048},
		},
	}
	features := rlds.NewFeatures(data.DefaultConfig().FeatureConfig())
	require.NoError(t, rlds.Write(dir, info, features))

	r, err := rlds.Open(dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeInfo(&buf, r, true))
	out := buf.String()
	assert.Contains(t, out, "dlr_sara_grid_clamp_dataset 1.0.0")
	assert.Regexp(t, `train\s+4\s+120\s+0\s+2\.0 kB\s+false`, out)
	assert.Contains(t, out, "language_embedding")
}
