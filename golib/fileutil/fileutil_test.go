package fileutil

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReader(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "foo")
	err := ioutil.WriteFile(path, nil, 0777)
	require.NoError(t, err)

	f, err := NewReader(path)
	require.NoError(t, err)
	defer f.Close()
	assert.IsType(t, &os.File{}, f)

	g, err := NewReader(filepath.Join(dir, "bar"))
	assert.Error(t, err)
	assert.Nil(t, g)
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "info.json")
	require.NoError(t, WriteFile(path, []byte(`{"name":"sara"}`)))

	ok, err := Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"sara"}`, string(data))

	ok, err = Exists(path + ".missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"train/episode_10.npy", "train/episode_2.npy", "train/notes.txt", "val/episode_1.npy"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, ioutil.WriteFile(path, []byte("x"), 0644))
	}

	matches, err := Glob(filepath.Join(dir, "train", "episode_*.npy"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "train", "episode_10.npy"),
		filepath.Join(dir, "train", "episode_2.npy"),
	}, matches)

	matches, err = Glob(filepath.Join(dir, "**", "episode_*.npy"))
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	matches, err = Glob(filepath.Join(dir, "test", "episode_*.npy"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestJoinDir(t *testing.T) {
	assert.Equal(t, "s3://bucket/a/b.npy", Join("s3://bucket/a", "b.npy"))
	assert.Equal(t, "s3://bucket/a", Dir("s3://bucket/a/b.npy"))
	assert.Equal(t, filepath.Join("data", "train"), Join("data", "train"))
	assert.Equal(t, "b.npy", Base("s3://bucket/a/b.npy"))
}
