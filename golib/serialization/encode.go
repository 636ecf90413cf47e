package serialization

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/fileutil"
	yaml "gopkg.in/yaml.v2"
)

// Encode writes the object to the path, using the format specified by the file
// extension, which can be .json, .gob, .yml, or .yaml. The path may
// additionally have a .gz suffix, in which case the stream will be compressed.
// Local and s3 paths are supported.
func Encode(path string, obj interface{}) (err error) {
	enc, err := NewEncoder(path)
	if err != nil {
		return err
	}
	defer errors.Defer(&err, enc.Close)
	return enc.Encode(obj)
}

// Encoder is an interface that matches gob.Encoder, json.Encoder, and yaml.Encoder
type Encoder interface {
	// Encode adds an item to the stream
	Encode(interface{}) error
}

// EncodeCloser is an encoder that can also close its underlying stream
type EncodeCloser struct {
	encoder Encoder
	closers []io.Closer
}

// Encode writes an object to the underlying stream
func (e *EncodeCloser) Encode(x interface{}) error {
	return e.encoder.Encode(x)
}

// Close closes the underlying stream
func (e *EncodeCloser) Close() error {
	var closeErr error
	// innermost writers were appended last and must be closed first
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			closeErr = err
		}
	}
	return closeErr
}

// NewEncoder opens the specified path and returns an encoder that writes in the format
// specified by the file extension, which can be .json, .gob, .yml, or .yaml. The
// path may additionally have a .gz suffix, in which case the stream will be compressed.
func NewEncoder(path string) (*EncodeCloser, error) {
	inpath := path
	f, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return nil, err
	}

	var w io.Writer = f
	closers := []io.Closer{f}

	if strings.HasSuffix(path, ".gz") {
		path = strings.TrimSuffix(path, ".gz")
		gz := gzip.NewWriter(w)
		w = gz
		closers = append(closers, gz)
	}

	var e Encoder
	switch {
	case strings.HasSuffix(path, ".json"):
		je := json.NewEncoder(w)
		je.SetIndent("", "  ")
		e = je
	case strings.HasSuffix(path, ".gob"):
		e = gob.NewEncoder(w)
	case strings.HasSuffix(path, ".yml"), strings.HasSuffix(path, ".yaml"):
		ye := yaml.NewEncoder(w)
		e = ye
		closers = append(closers, ye)
	default:
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
		return nil, fmt.Errorf("could not find encoder for %s", inpath)
	}

	return &EncodeCloser{
		encoder: e,
		closers: closers,
	}, nil
}
