//go:build tensorflow
// +build tensorflow

// Package tensorflow runs frozen TensorFlow graphs in process. It needs libtensorflow
// and is only built with the tensorflow build tag.
package tensorflow

import (
	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/fileutil"
	"github.com/dlr-sara/gridclamp/golib/lazy"
	tf "github.com/kiteco/tensorflow/tensorflow/go"
)

// RunCallback is a function that can be called whenever Run is called, with the inputs and results of the model
type RunCallback func(feeds map[string]interface{}, fetches []string, result map[string]interface{}, err error)

// Model wraps a Tensorflow model
type Model struct {
	*lazy.Loader
	session *tf.Session
	graph   *tf.Graph

	// RunCallback, if set, is called whenever Run is called
	RunCallback RunCallback
}

// NewModel prepares a Tensorflow model (serialized as a GraphDef proto, frozen to replace variables
// with constants) from the given local/S3 path. The graph is loaded on first use.
func NewModel(path string) (*Model, error) {
	m := &Model{}

	load := func() error {
		data, err := fileutil.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "error reading graph definition")
		}

		graph := tf.NewGraph()
		if err := graph.Import(data, ""); err != nil {
			return errors.Wrapf(err, "error importing graph")
		}

		sess, err := tf.NewSession(graph, nil)
		if err != nil {
			graph.Delete()
			return errors.Wrapf(err, "error creating session")
		}

		m.graph = graph
		m.session = sess
		return nil
	}

	unload := func() {
		if m.session != nil {
			m.session.Close()
		}
		if m.graph != nil {
			m.graph.Delete()
		}
		m.session = nil
		m.graph = nil
	}

	m.Loader = lazy.NewLoader(load, unload)

	return m, nil
}

// Unload the model
func (m *Model) Unload() {
	m.Loader.Unload()
}

// OpExists returns whether the graph has an operation with the given name
func (m *Model) OpExists(name string) (bool, error) {
	err := m.Loader.LoadAndLock()
	if err != nil {
		return false, err
	}
	defer m.Loader.Unlock()
	return m.graph.Operation(name) != nil, nil
}

// Run takes in a map of feed tensors, keyed by the operation names, as well as a slice of operations to fetch.
// As output, it returns a map of output operation names to the resulting output tensors.
func (m *Model) Run(feeds map[string]interface{}, fetches []string) (map[string]interface{}, error) {
	res, err := m.run(feeds, fetches)
	if m.RunCallback != nil {
		m.RunCallback(feeds, fetches, res, err)
	}
	return res, err
}

func (m *Model) run(feeds map[string]interface{}, fetches []string) (map[string]interface{}, error) {
	err := m.Loader.LoadAndLock()
	if err != nil {
		return nil, err
	}
	defer m.Loader.Unlock()

	tfFeeds := make(map[tf.Output]*tf.Tensor)
	for op, val := range feeds {
		out, err := m.tfOut(op)
		if err != nil {
			return nil, err
		}
		tensor, err := tf.NewTensor(val)
		if err != nil {
			return nil, errors.Wrapf(err, "error creating tensor for %s", op)
		}
		tfFeeds[out] = tensor
	}

	// Cleanup tensors
	defer func() {
		for _, t := range tfFeeds {
			t.Delete()
		}
	}()

	var tfFetches []tf.Output
	for _, op := range fetches {
		out, err := m.tfOut(op)
		if err != nil {
			return nil, err
		}
		tfFetches = append(tfFetches, out)
	}

	res, err := m.session.Run(tfFeeds, tfFetches, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error running model")
	}
	defer func() {
		for _, t := range res {
			t.Delete()
		}
	}()

	out := make(map[string]interface{})
	for i, op := range fetches {
		out[op] = res[i].Value()
	}
	return out, nil
}

// tfOut resolves "name" or "name:index" to a graph output
func (m *Model) tfOut(opName string) (tf.Output, error) {
	name, index := splitOutput(opName)
	op := m.graph.Operation(name)
	if op == nil {
		return tf.Output{}, errors.Errorf("could not find op with name: %s", name)
	}

	return tf.Output{
		Op:    op,
		Index: index,
	}, nil
}
