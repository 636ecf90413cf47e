package rlds

import (
	"sort"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/fileutil"
	"github.com/dlr-sara/gridclamp/golib/serialization"
)

// InfoFilename is the name of the dataset description in a dataset directory
const InfoFilename = "dataset_info.json"

// ShardInfo describes one shard file of a split
type ShardInfo struct {
	File     string `json:"file"`
	Episodes int    `json:"episodes"`
	Steps    int    `json:"steps"`
	Bytes    int64  `json:"bytes"`
}

// SplitInfo describes the shards written for a split
type SplitInfo struct {
	Name     string      `json:"name"`
	Episodes int         `json:"num_episodes"`
	Steps    int         `json:"num_steps"`
	Bytes    int64       `json:"num_bytes"`
	Shards   []ShardInfo `json:"shards"`
}

// SampleTag implements pipeline.Sample
func (SplitInfo) SampleTag() {}

// DatasetInfo is the top level description of a dataset
type DatasetInfo struct {
	Name         string               `json:"name"`
	Version      string               `json:"version"`
	Description  string               `json:"description"`
	ReleaseNotes map[string]string    `json:"release_notes"`
	Splits       map[string]SplitInfo `json:"splits"`
}

// SplitNames returns the split names in sorted order
func (d DatasetInfo) SplitNames() []string {
	var names []string
	for name := range d.Splits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Write stores the info and the features declaration in dir, which may be local or on s3
func Write(dir string, info DatasetInfo, features Features) error {
	if err := serialization.Encode(fileutil.Join(dir, InfoFilename), info); err != nil {
		return errors.Wrapf(err, "error writing dataset info")
	}
	if err := serialization.Encode(fileutil.Join(dir, FeaturesFilename), features); err != nil {
		return errors.Wrapf(err, "error writing features")
	}
	return nil
}

// ReadInfo loads the dataset info and the features declaration from dir
func ReadInfo(dir string) (DatasetInfo, Features, error) {
	var info DatasetInfo
	if err := serialization.Decode(fileutil.Join(dir, InfoFilename), &info); err != nil {
		return DatasetInfo{}, Features{}, errors.Wrapf(err, "error reading dataset info")
	}
	var features Features
	if err := serialization.Decode(fileutil.Join(dir, FeaturesFilename), &features); err != nil {
		return DatasetInfo{}, Features{}, errors.Wrapf(err, "error reading features")
	}
	return info, features, nil
}
