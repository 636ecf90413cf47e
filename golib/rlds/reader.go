package rlds

import (
	"github.com/dlr-sara/gridclamp/golib/awsutil"
	"github.com/dlr-sara/gridclamp/golib/diskmap"
	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/fileutil"
)

// Reader reads the episodes of a dataset directory written by ShardWriter.
// Shards are memory-light: only their sparse indices are loaded.
type Reader struct {
	dir      string
	info     DatasetInfo
	features Features

	maps map[string][]*diskmap.Map
}

// Open reads the dataset info in dir. Shards must be on the local filesystem.
func Open(dir string) (*Reader, error) {
	if awsutil.IsS3URI(dir) {
		return nil, errors.Errorf("cannot read shards from %s, copy the dataset locally first", dir)
	}
	info, features, err := ReadInfo(dir)
	if err != nil {
		return nil, err
	}
	return &Reader{
		dir:      dir,
		info:     info,
		features: features,
		maps:     make(map[string][]*diskmap.Map),
	}, nil
}

// Info of the dataset
func (r *Reader) Info() DatasetInfo {
	return r.info
}

// Features of the dataset
func (r *Reader) Features() Features {
	return r.features
}

// Splits in sorted order
func (r *Reader) Splits() []string {
	return r.info.SplitNames()
}

// Complete returns whether the split was finalized
func (r *Reader) Complete(split string) (bool, error) {
	if _, ok := r.info.Splits[split]; !ok {
		return false, errors.Errorf("unknown split %s", split)
	}
	return fileutil.Exists(fileutil.Join(r.dir, DoneFilename(split)))
}

func (r *Reader) shards(split string) ([]*diskmap.Map, error) {
	if maps, ok := r.maps[split]; ok {
		return maps, nil
	}
	si, ok := r.info.Splits[split]
	if !ok {
		return nil, errors.Errorf("unknown split %s", split)
	}

	var maps []*diskmap.Map
	for _, s := range si.Shards {
		m, err := diskmap.NewMap(fileutil.Join(r.dir, s.File))
		if err != nil {
			return nil, errors.Wrapf(err, "error opening shard %s", s.File)
		}
		maps = append(maps, m)
	}
	r.maps[split] = maps
	return maps, nil
}

// Keys of the episodes in a split, in storage order
func (r *Reader) Keys(split string) ([]string, error) {
	maps, err := r.shards(split)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, m := range maps {
		ks, err := m.Keys()
		if err != nil {
			return nil, errors.Wrapf(err, "error listing %s", m.Path())
		}
		keys = append(keys, ks...)
	}
	return keys, nil
}

// Episodes calls fn for every episode of the split in storage order. Iteration stops at the first error.
func (r *Reader) Episodes(split string, fn func(key string, ep *Episode) error) error {
	maps, err := r.shards(split)
	if err != nil {
		return err
	}
	for _, m := range maps {
		err := m.IterateSlowly(func(key string, val []byte) error {
			var ep Episode
			if err := Codec.Unmarshal(val, &ep); err != nil {
				return errors.Wrapf(err, "error decoding %s", key)
			}
			return fn(key, &ep)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Episode looks up a single episode by key
func (r *Reader) Episode(split, key string) (*Episode, error) {
	maps, err := r.shards(split)
	if err != nil {
		return nil, err
	}
	for _, m := range maps {
		var ep Episode
		err := Codec.Get(m, key, &ep)
		switch {
		case err == nil:
			return &ep, nil
		case err == diskmap.ErrNotFound:
			continue
		default:
			return nil, errors.Wrapf(err, "error reading %s from %s", key, m.Path())
		}
	}
	return nil, errors.Wrapf(diskmap.ErrNotFound, "%s not in split %s", key, split)
}
