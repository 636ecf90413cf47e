package main

import (
	"image"
	"path/filepath"
	"strings"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/fileutil"
	"github.com/dlr-sara/gridclamp/golib/rlds"
	"github.com/dlr-sara/gridclamp/local-pipelines/sara-grid-clamp/internal/data"
)

// frame is what the viewer shows for one step
type frame struct {
	Image      image.Image
	State      []float32
	IsTerminal bool
}

// x is the state entry the viewer prints next to each step
func (f frame) x() float32 {
	if len(f.State) < 2 {
		return 0
	}
	return f.State[1]
}

// episodes is an ordered collection of episodes that are loaded one at a time
type episodes interface {
	Len() int
	Name(i int) string
	Load(i int) ([]frame, error)
}

type rawEpisodes []string

// newRawEpisodes lists the raw files under path, or path itself if it names a file
func newRawEpisodes(path string) (rawEpisodes, error) {
	if strings.HasSuffix(path, ".npy") {
		return rawEpisodes{path}, nil
	}
	entries, err := fileutil.ListDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e, ".npy") {
			files = append(files, e)
		}
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no .npy files in %s", path)
	}
	return rawEpisodes(files), nil
}

func (r rawEpisodes) Len() int {
	return len(r)
}

func (r rawEpisodes) Name(i int) string {
	return filepath.Base(r[i])
}

func (r rawEpisodes) Load(i int) ([]frame, error) {
	steps, err := data.ReadRaw(r[i])
	if err != nil {
		return nil, err
	}
	frames := make([]frame, 0, len(steps))
	for _, s := range steps {
		frames = append(frames, frame{
			Image:      s.Image,
			State:      s.State,
			IsTerminal: s.IsTerminal,
		})
	}
	return frames, nil
}

type datasetEpisodes struct {
	reader *rlds.Reader
	split  string
	keys   []string
}

func newDatasetEpisodes(dir, split string) (*datasetEpisodes, error) {
	r, err := rlds.Open(dir)
	if err != nil {
		return nil, err
	}
	keys, err := r.Keys(split)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.Errorf("split %s of %s has no episodes", split, dir)
	}
	return &datasetEpisodes{
		reader: r,
		split:  split,
		keys:   keys,
	}, nil
}

func (d *datasetEpisodes) Len() int {
	return len(d.keys)
}

func (d *datasetEpisodes) Name(i int) string {
	return d.keys[i]
}

func (d *datasetEpisodes) Load(i int) ([]frame, error) {
	ep, err := d.reader.Episode(d.split, d.keys[i])
	if err != nil {
		return nil, err
	}
	frames := make([]frame, 0, ep.Len())
	for j, s := range ep.Steps {
		img, err := rlds.DecodeImage(s.Observation.Image)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: step %d", d.keys[i], j)
		}
		frames = append(frames, frame{
			Image:      img,
			State:      s.Observation.State,
			IsTerminal: s.IsTerminal,
		})
	}
	return frames, nil
}
