package rlds

import (
	"bytes"
	"fmt"
	"image"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/dlr-sara/gridclamp/golib/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFeatures = NewFeatures(FeatureConfig{
	ImageHeight:  2,
	ImageWidth:   3,
	StateDim:     12,
	ActionDim:    7,
	EmbeddingDim: 4,
})

func testEpisode(t *testing.T, path string, n int) *Episode {
	img, err := BGRToImage(make([]uint8, 2*3*3), 2, 3)
	require.NoError(t, err)
	png, err := EncodePNG(img)
	require.NoError(t, err)

	emb := []float32{0.1, 0.2, 0.3, 0.4}
	ep := &Episode{Metadata: EpisodeMetadata{FilePath: path}}
	for i := 0; i < n; i++ {
		ep.Steps = append(ep.Steps, Step{
			Observation: Observation{Image: png, State: make([]float32, 12)},
			Action:      make([]float32, 7),
			Discount:    1,
			IsFirst:     i == 0,
			IsLast:      i == n-1,
			IsTerminal:  i == n-1,
			Reward:      map[bool]float32{true: 1}[i == n-1],

			LanguageInstruction: "grasp the clamp",
			LanguageEmbedding:   emb,
		})
	}
	return ep
}

func quietLogger() *log.Logger {
	return log.New(ioutil.Discard, "", 0)
}

func TestBGRToImage(t *testing.T) {
	// one row, two pixels: pure blue and pure red in BGR order
	pix := []uint8{255, 0, 0, 0, 0, 255}
	img, err := BGRToImage(pix, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, []uint8{0, 0, 255, 255, 255, 0, 0, 255}, img.Pix)

	_, err = BGRToImage(pix, 2, 2)
	assert.Error(t, err)
}

func TestPNGRoundTrip(t *testing.T) {
	pix := []uint8{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	img, err := BGRToImage(pix, 2, 2)
	require.NoError(t, err)

	data, err := EncodePNG(img)
	require.NoError(t, err)

	h, w, err := ImageSize(data)
	require.NoError(t, err)
	assert.Equal(t, 2, h)
	assert.Equal(t, 2, w)

	decoded, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), decoded.Bounds())

	r, g, b, _ := decoded.At(0, 0).RGBA()
	assert.Equal(t, []uint32{3, 2, 1}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestValidate(t *testing.T) {
	ep := testEpisode(t, "episode_0.npy", 3)
	require.NoError(t, testFeatures.Validate(ep))

	bad := testEpisode(t, "episode_0.npy", 3)
	bad.Steps[1].Action = make([]float32, 6)
	assert.Error(t, testFeatures.Validate(bad))

	bad = testEpisode(t, "episode_0.npy", 3)
	bad.Steps[1].IsFirst = true
	assert.Error(t, testFeatures.Validate(bad))

	bad = testEpisode(t, "episode_0.npy", 2)
	bad.Steps[0].Observation.Image = []byte("not a png")
	assert.Error(t, testFeatures.Validate(bad))

	bad = testEpisode(t, "", 1)
	assert.Error(t, testFeatures.Validate(bad))

	assert.NoError(t, testFeatures.Validate(&Episode{Metadata: EpisodeMetadata{FilePath: "empty.npy"}}))
}

func writeSplit(t *testing.T, opts ShardWriterOpts, dir, split string, episodes map[string]int, keys []string) SplitInfo {
	w := NewShardWriter(opts, dir, "test_dataset", split)
	clone := w.Clone().(*ShardWriter)
	for _, key := range keys {
		clone.In(pipeline.Keyed{Key: key, Sample: testEpisode(t, key, episodes[key])})
	}

	res, err := w.AggregateLocal([]pipeline.Aggregator{clone})
	require.NoError(t, err)
	require.NoError(t, w.Finalize())
	return res.(SplitInfo)
}

func TestShardWriterAndReader(t *testing.T) {
	dir, err := ioutil.TempDir("", "rlds")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	episodes := make(map[string]int)
	var keys []string
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("data/train/episode_%d.npy", i)
		keys = append(keys, key)
		episodes[key] = i + 1
	}

	opts := ShardWriterOpts{MaxEpisodes: 2, Logger: quietLogger()}
	si := writeSplit(t, opts, dir, "train", episodes, keys)

	assert.Equal(t, "train", si.Name)
	assert.Equal(t, 5, si.Episodes)
	assert.Equal(t, 15, si.Steps)
	require.Len(t, si.Shards, 3)
	assert.Equal(t, "test_dataset-train.diskmap-00000", si.Shards[0].File)
	assert.Equal(t, []int{2, 2, 1}, []int{si.Shards[0].Episodes, si.Shards[1].Episodes, si.Shards[2].Episodes})

	for _, s := range si.Shards {
		_, err := os.Stat(filepath.Join(dir, s.File))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, s.File+".tmp"))
		assert.True(t, os.IsNotExist(err))
	}

	info := DatasetInfo{
		Name:         "test_dataset",
		Version:      "1.0.0",
		ReleaseNotes: map[string]string{"1.0.0": "Initial release."},
		Splits:       map[string]SplitInfo{"train": si},
	}
	require.NoError(t, Write(dir, info, testFeatures))

	r, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"train"}, r.Splits())
	assert.Equal(t, testFeatures, r.Features())

	done, err := r.Complete("train")
	require.NoError(t, err)
	assert.True(t, done)

	readKeys, err := r.Keys("train")
	require.NoError(t, err)
	assert.Equal(t, keys, readKeys)

	var steps int
	err = r.Episodes("train", func(key string, ep *Episode) error {
		assert.Equal(t, key, ep.Metadata.FilePath)
		assert.Equal(t, episodes[key], ep.Len())
		assert.NoError(t, testFeatures.Validate(ep))
		steps += ep.Len()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 15, steps)

	ep, err := r.Episode("train", keys[3])
	require.NoError(t, err)
	assert.Equal(t, 4, ep.Len())
	assert.True(t, ep.Steps[3].IsLast)
	assert.Equal(t, float32(1), ep.Steps[3].Reward)

	_, err = r.Episode("train", "data/train/episode_9.npy")
	assert.Error(t, err)

	_, err = r.Keys("val")
	assert.Error(t, err)
}

func TestShardWriterRollsOverBySize(t *testing.T) {
	dir, err := ioutil.TempDir("", "rlds")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	episodes := map[string]int{"a": 2, "b": 2, "c": 2}
	si := writeSplit(t, ShardWriterOpts{MaxBytes: 1, Logger: quietLogger()}, dir, "train", episodes, []string{"a", "b", "c"})
	assert.Len(t, si.Shards, 3)
	assert.Equal(t, 3, si.Episodes)
}

func TestShardWriterEmptySplit(t *testing.T) {
	dir, err := ioutil.TempDir("", "rlds")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	si := writeSplit(t, ShardWriterOpts{Logger: quietLogger()}, dir, "val", nil, nil)
	assert.Equal(t, 0, si.Episodes)
	assert.Empty(t, si.Shards)

	_, err = os.Stat(filepath.Join(dir, DoneFilename("val")))
	assert.NoError(t, err)
}

func TestShardWriterAbort(t *testing.T) {
	dir, err := ioutil.TempDir("", "rlds")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	var logs bytes.Buffer
	w := NewShardWriter(ShardWriterOpts{MaxEpisodes: 1, Logger: log.New(&logs, "", 0)}, dir, "test_dataset", "train")
	clone := w.Clone().(*ShardWriter)
	clone.In(pipeline.Keyed{Key: "a", Sample: testEpisode(t, "a", 1)})
	clone.In(pipeline.Keyed{Key: "b", Sample: testEpisode(t, "b", 1)})
	require.NoError(t, clone.Abort())

	files, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	// the first shard was complete, the second is discarded and nothing is marked done
	assert.Equal(t, []string{"test_dataset-train.diskmap-00000"}, names)
	assert.Contains(t, logs.String(), "wrote test_dataset-train.diskmap-00000 with 1 episodes")
}

func TestShardWriterRejectsBadInput(t *testing.T) {
	dir, err := ioutil.TempDir("", "rlds")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	w := NewShardWriter(ShardWriterOpts{Logger: quietLogger()}, dir, "test_dataset", "train")
	clone := w.Clone().(*ShardWriter)
	clone.In(pipeline.Keyed{Key: "b", Sample: testEpisode(t, "b", 1)})
	// keys must be increasing
	clone.In(pipeline.Keyed{Key: "a", Sample: testEpisode(t, "a", 1)})

	_, err = w.AggregateLocal([]pipeline.Aggregator{clone})
	assert.Error(t, err)
	require.NoError(t, clone.Abort())
}
