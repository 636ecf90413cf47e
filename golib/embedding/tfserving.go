package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dlr-sara/gridclamp/golib/errors"
)

const defaultTimeout = 30 * time.Second

// TFServing queries the REST predict endpoint of a TensorFlow Serving instance
// whose model takes a batch of strings and returns one vector per string.
type TFServing struct {
	Addr   string
	Model  string
	Client *http.Client

	metrics Metrics
}

// NewTFServing for the model served at addr, e.g. "http://localhost:8501"
func NewTFServing(addr, model string) *TFServing {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &TFServing{
		Addr:   strings.TrimSuffix(addr, "/"),
		Model:  model,
		Client: &http.Client{Timeout: defaultTimeout},
	}
}

type predictRequest struct {
	Instances []string `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error"`
}

// URL of the predict endpoint
func (t *TFServing) URL() string {
	return fmt.Sprintf("%s/v1/models/%s:predict", t.Addr, t.Model)
}

// Embed implements Embedder
func (t *TFServing) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := t.predict(ctx, text)
	t.metrics.hit(err)
	return v, err
}

func (t *TFServing) predict(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(predictRequest{Instances: []string{text}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, t.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "error requesting %s", t.URL())
	}
	defer resp.Body.Close()

	buf, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading response from %s", t.URL())
	}

	var pr predictResponse
	if err := json.Unmarshal(buf, &pr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("%s returned status %d", t.URL(), resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "error decoding response from %s", t.URL())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s returned status %d: %s", t.URL(), resp.StatusCode, pr.Error)
	}
	if len(pr.Predictions) != 1 {
		return nil, errors.Errorf("expected 1 prediction from %s, got %d", t.URL(), len(pr.Predictions))
	}
	return pr.Predictions[0], nil
}

// Metrics returns a snapshot of the request counters
func (t *TFServing) Metrics() MetricsSnapshot {
	return t.metrics.read()
}

// Metrics counts requests to a model server
type Metrics struct {
	requests uint64
	success  uint64
	errs     uint64
}

func (m *Metrics) hit(err error) {
	atomic.AddUint64(&m.requests, 1)
	if err != nil {
		atomic.AddUint64(&m.errs, 1)
	} else {
		atomic.AddUint64(&m.success, 1)
	}
}

func (m *Metrics) read() MetricsSnapshot {
	return MetricsSnapshot{
		Requests: atomic.LoadUint64(&m.requests),
		Success:  atomic.LoadUint64(&m.success),
		Errors:   atomic.LoadUint64(&m.errs),
	}
}

// MetricsSnapshot is a by-value snapshot of Metrics
type MetricsSnapshot struct {
	Requests uint64
	Success  uint64
	Errors   uint64
}
