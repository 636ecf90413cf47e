// Package diskcache is a size bounded key/value cache stored as one file per key.

package diskcache

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"

	spooky "github.com/dgryski/go-spooky"
)

var (
	// ErrNoSuchKey is returned by Cache.Get when a key does not exist in the cache
	ErrNoSuchKey = errors.New("key does not exist in cache")
)

// Options represents options for a cache
type Options struct {
	// MaxSize is the maximum total size of the cache in bytes, 0 for unbounded
	MaxSize int64
	// BytesUntilFlush is how many bytes may be written before the size budget is enforced again
	BytesUntilFlush int64
}

// Cache represents a disk-based cache that evicts the oldest files first
type Cache struct {
	Path string
	opts Options

	mu              sync.Mutex
	bytesSinceFlush int64
}

// Open creates a cache with contents stored as files in the given directory.
// It creates the directory if it does not already exist.
func Open(path string, opts Options) (*Cache, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	return &Cache{
		Path: path,
		opts: opts,
	}, nil
}

// OpenTemp creates a temporary directory and returns a cache backed by this
// directory. The user must remove the directory when done.
func OpenTemp(opts Options) (*Cache, error) {
	path, err := ioutil.TempDir("", "diskcache")
	if err != nil {
		return nil, err
	}
	return Open(path, opts)
}

// Get looks up the value for the given key and returns it, or ErrNoSuchKey.
func (c *Cache) Get(key []byte) ([]byte, error) {
	buf, err := ioutil.ReadFile(c.pathFor(key))
	if os.IsNotExist(err) {
		return nil, ErrNoSuchKey
	}
	return buf, err
}

// Exists reports whether the key exists.
func (c *Cache) Exists(key []byte) bool {
	_, err := os.Stat(c.pathFor(key))
	return err == nil
}

// Put adds a key/value pair to the cache. The value becomes visible atomically.
func (c *Cache) Put(key []byte, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bytesSinceFlush += int64(len(val))
	if c.opts.MaxSize > 0 && c.bytesSinceFlush > c.opts.BytesUntilFlush {
		if err := c.flushCapacity(int64(len(val))); err != nil {
			return fmt.Errorf("error cleaning up cache: %v", err)
		}
		c.bytesSinceFlush = 0
	}

	tmp, err := ioutil.TempFile(c.Path, ".put-")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(val); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.pathFor(key))
}

// flushCapacity deletes old entries until there are at least n bytes left
// in the cache budget.
func (c *Cache) flushCapacity(n int64) error {
	files, err := ioutil.ReadDir(c.Path)
	if err != nil {
		return err
	}

	var sum int64
	for _, f := range files {
		sum += f.Size()
	}

	if sum+n <= c.opts.MaxSize {
		return nil
	}

	sort.Sort(byModTime(files))

	for _, f := range files {
		if err := os.Remove(filepath.Join(c.Path, f.Name())); err != nil {
			return err
		}
		sum -= f.Size()
		if sum+n <= c.opts.MaxSize {
			break
		}
	}
	return nil
}

func (c *Cache) pathFor(key []byte) string {
	return filepath.Join(c.Path, hash(key))
}

type byModTime []os.FileInfo

func (xs byModTime) Len() int           { return len(xs) }
func (xs byModTime) Swap(i, j int)      { xs[i], xs[j] = xs[j], xs[i] }
func (xs byModTime) Less(i, j int) bool { return xs[i].ModTime().Before(xs[j].ModTime()) }

func hash(key []byte) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], spooky.Hash64(key))
	return hex.EncodeToString(b[:])
}
