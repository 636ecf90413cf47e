package data

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dlr-sara/gridclamp/golib/embedding"
	"github.com/dlr-sara/gridclamp/golib/envutil"
	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/fileutil"
	"github.com/dlr-sara/gridclamp/golib/rlds"
	"github.com/dlr-sara/gridclamp/golib/serialization"
)

const (
	// DatasetName of the converted dataset
	DatasetName = "dlr_sara_grid_clamp_dataset"
	// Version of the converted dataset
	Version = "1.0.0"
	// Instruction shared by every step of every episode
	Instruction = "Place grid clamp"
)

// Split maps a split name to the raw files it is built from
type Split struct {
	Name string `yaml:"name" json:"name"`
	Glob string `yaml:"glob" json:"glob"`
}

// EmbeddingConfig selects the language embedding backend, see embedding.Options
type EmbeddingConfig struct {
	Addr       string `yaml:"addr" json:"addr"`
	Model      string `yaml:"model" json:"model"`
	GraphPath  string `yaml:"graph_path" json:"graph_path"`
	StaticPath string `yaml:"static_path" json:"static_path"`
	CacheDir   string `yaml:"cache_dir" json:"cache_dir"`
	Dim        int    `yaml:"dim" json:"dim"`
}

// Options for embedding.New
func (e EmbeddingConfig) Options() embedding.Options {
	return embedding.Options{
		StaticPath: e.StaticPath,
		GraphPath:  e.GraphPath,
		Addr:       e.Addr,
		ModelName:  e.Model,
		CacheDir:   e.CacheDir,
		Dim:        e.Dim,
	}
}

// ImageConfig is the size of the camera frames
type ImageConfig struct {
	Height int `yaml:"height" json:"height"`
	Width  int `yaml:"width" json:"width"`
}

// Config describes a dataset build
type Config struct {
	Name         string            `yaml:"name" json:"name"`
	Version      string            `yaml:"version" json:"version"`
	Description  string            `yaml:"description" json:"description"`
	ReleaseNotes map[string]string `yaml:"release_notes" json:"release_notes"`

	// DataDir is the root under which <name>/<version> is written, local or s3
	DataDir string  `yaml:"data_dir" json:"data_dir"`
	Splits  []Split `yaml:"splits" json:"splits"`

	Instruction string          `yaml:"instruction" json:"instruction"`
	Embedding   EmbeddingConfig `yaml:"embedding" json:"embedding"`

	Image     ImageConfig `yaml:"image" json:"image"`
	StateDim  int         `yaml:"state_dim" json:"state_dim"`
	ActionDim int         `yaml:"action_dim" json:"action_dim"`

	MaxEpisodesPerShard int   `yaml:"max_episodes_per_shard" json:"max_episodes_per_shard"`
	MaxShardBytes       int64 `yaml:"max_shard_bytes" json:"max_shard_bytes"`
	// MaxEpisodes limits the episodes taken from each split, 0 for all
	MaxEpisodes int `yaml:"max_episodes" json:"max_episodes"`
	// SkipMalformed drops episodes that fail to load or validate instead of aborting the build
	SkipMalformed bool   `yaml:"skip_malformed" json:"skip_malformed"`
	TmpDir        string `yaml:"tmp_dir" json:"tmp_dir"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return envutil.GetenvDefault("TFDS_DATA_DIR", filepath.Join(home, "tensorflow_datasets"))
}

// DefaultConfig for the grid clamp dataset. The data directory and embedding server can be
// set with TFDS_DATA_DIR and EMBEDDING_ADDR.
func DefaultConfig() Config {
	return Config{
		Name:        DatasetName,
		Version:     Version,
		Description: "DLR SARA grid clamp placement demonstrations.",
		ReleaseNotes: map[string]string{
			Version: "Initial release.",
		},
		DataDir: defaultDataDir(),
		Splits: []Split{
			{Name: "train", Glob: "data_filtered_filtered/train/episode_*.npy"},
		},
		Instruction: Instruction,
		Embedding: EmbeddingConfig{
			Addr:  envutil.GetenvDefault("EMBEDDING_ADDR", embedding.DefaultOptions.Addr),
			Model: envutil.GetenvDefault("EMBEDDING_MODEL", embedding.DefaultOptions.ModelName),
			Dim:   embedding.Dimension,
		},
		Image:         ImageConfig{Height: 480, Width: 640},
		StateDim:      12,
		ActionDim:     7,
		MaxShardBytes: rlds.DefaultShardWriterOpts.MaxBytes,
	}
}

// LoadConfig reads a yaml or json config; fields missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := serialization.Decode(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "error loading config")
	}
	return cfg, nil
}

// Validate checks the config for a build
func (c Config) Validate() error {
	var errs errors.Errors
	if c.Name == "" {
		errs = errors.Append(errs, errors.Errorf("name is required"))
	}
	if c.Version == "" {
		errs = errors.Append(errs, errors.Errorf("version is required"))
	}
	if c.DataDir == "" {
		errs = errors.Append(errs, errors.Errorf("data_dir is required"))
	}
	if len(c.Splits) == 0 {
		errs = errors.Append(errs, errors.Errorf("at least one split is required"))
	}
	seen := make(map[string]bool)
	for _, s := range c.Splits {
		switch {
		case s.Name == "" || s.Glob == "":
			errs = errors.Append(errs, errors.Errorf("split %q needs a name and a glob", s.Name))
		case strings.ContainsAny(s.Name, "/-. "):
			errs = errors.Append(errs, errors.Errorf("split name %q may not contain '/', '-', '.' or spaces", s.Name))
		case seen[s.Name]:
			errs = errors.Append(errs, errors.Errorf("split %s is listed twice", s.Name))
		}
		seen[s.Name] = true
	}
	if c.Image.Height <= 0 || c.Image.Width <= 0 || c.StateDim <= 0 || c.ActionDim <= 0 || c.Embedding.Dim <= 0 {
		errs = errors.Append(errs, errors.Errorf("feature sizes must be positive"))
	}
	if c.MaxEpisodesPerShard < 0 || c.MaxShardBytes < 0 || c.MaxEpisodes < 0 {
		errs = errors.Append(errs, errors.Errorf("limits may not be negative"))
	}
	if errs == nil {
		return nil
	}
	return errs
}

// FeatureConfig sizes the dataset features
func (c Config) FeatureConfig() rlds.FeatureConfig {
	return rlds.FeatureConfig{
		ImageHeight:  c.Image.Height,
		ImageWidth:   c.Image.Width,
		StateDim:     c.StateDim,
		ActionDim:    c.ActionDim,
		EmbeddingDim: c.Embedding.Dim,
	}
}

// OutputDir is where the dataset version is written
func (c Config) OutputDir() string {
	return fileutil.Join(c.DataDir, c.Name, c.Version)
}
