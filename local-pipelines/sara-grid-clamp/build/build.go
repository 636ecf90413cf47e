package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dlr-sara/gridclamp/golib/cmdline"
	"github.com/dlr-sara/gridclamp/golib/embedding"
	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/runlog"
	"github.com/dlr-sara/gridclamp/local-pipelines/sara-grid-clamp/internal/data"
	"github.com/dustin/go-humanize"
)

var buildCmd = cmdline.Command{
	Name:     "build",
	Synopsis: "convert raw grid clamp episodes into a dataset",
	Args:     &buildArgs{},
}

type buildArgs struct {
	Config              string   `arg:"--config" help:"yaml/json dataset config, flags below override it"`
	DataDir             string   `arg:"--data_dir" help:"root of the output, local or s3"`
	Split               []string `arg:"--split,separate" help:"name=glob, repeatable; replaces the configured splits"`
	Instruction         string   `arg:"--instruction" help:"language instruction attached to every step"`
	EmbedAddr           string   `arg:"--embed_addr" help:"TF Serving address of the language encoder"`
	EmbedModel          string   `arg:"--embed_model" help:"TF Serving model name"`
	EmbedStatic         string   `arg:"--embed_static" help:"static table of instruction embeddings"`
	EmbedGraph          string   `arg:"--embed_graph" help:"frozen encoder graph, needs a tensorflow build"`
	EmbedCache          string   `arg:"--embed_cache" help:"directory caching embeddings between runs"`
	SkipMalformed       bool     `arg:"--skip_malformed" help:"drop episodes that fail to load instead of aborting"`
	MaxEpisodesPerShard int      `arg:"--max_episodes_per_shard" help:"roll shards over after this many episodes"`
	MaxShardBytes       int64    `arg:"--max_shard_bytes" help:"roll shards over after this many bytes"`
	MaxEpisodes         int      `arg:"--max_episodes" help:"take at most this many episodes per split"`
	Verbose             bool     `arg:"--verbose" help:"log debug events"`
}

func parseSplits(specs []string) ([]data.Split, error) {
	var splits []data.Split
	for _, s := range specs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.Errorf("split %q should be name=glob", s)
		}
		splits = append(splits, data.Split{Name: parts[0], Glob: parts[1]})
	}
	return splits, nil
}

// config loads the base config and applies the flags that were set
func (a *buildArgs) config() (data.Config, error) {
	cfg := data.DefaultConfig()
	if a.Config != "" {
		var err error
		if cfg, err = data.LoadConfig(a.Config); err != nil {
			return data.Config{}, err
		}
	}

	if a.DataDir != "" {
		cfg.DataDir = a.DataDir
	}
	if len(a.Split) > 0 {
		splits, err := parseSplits(a.Split)
		if err != nil {
			return data.Config{}, err
		}
		cfg.Splits = splits
	}
	if a.Instruction != "" {
		cfg.Instruction = a.Instruction
	}

	// an explicit backend replaces whatever the config selected
	switch {
	case a.EmbedStatic != "":
		cfg.Embedding.StaticPath = a.EmbedStatic
		cfg.Embedding.GraphPath = ""
	case a.EmbedGraph != "":
		cfg.Embedding.StaticPath = ""
		cfg.Embedding.GraphPath = a.EmbedGraph
	case a.EmbedAddr != "":
		cfg.Embedding.StaticPath = ""
		cfg.Embedding.GraphPath = ""
		cfg.Embedding.Addr = a.EmbedAddr
	}
	if a.EmbedModel != "" {
		cfg.Embedding.Model = a.EmbedModel
	}
	if a.EmbedCache != "" {
		cfg.Embedding.CacheDir = a.EmbedCache
	}

	if a.SkipMalformed {
		cfg.SkipMalformed = true
	}
	if a.MaxEpisodesPerShard > 0 {
		cfg.MaxEpisodesPerShard = a.MaxEpisodesPerShard
	}
	if a.MaxShardBytes > 0 {
		cfg.MaxShardBytes = a.MaxShardBytes
	}
	if a.MaxEpisodes > 0 {
		cfg.MaxEpisodes = a.MaxEpisodes
	}
	return cfg, cfg.Validate()
}

func (a *buildArgs) Validate() error {
	_, err := a.config()
	return err
}

func (a *buildArgs) Handle() error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	logger := runlog.New(os.Stderr, map[string]string{"dataset": cfg.Name})
	events := runlog.NewStructured(a.Verbose)
	defer events.Sync()

	embedder, err := embedding.New(cfg.Embedding.Options())
	if err != nil {
		return errors.Wrapf(err, "error creating embedder")
	}

	builder, err := data.NewBuilder(cfg, embedder, logger, events)
	if err != nil {
		return err
	}

	res, err := builder.Build(context.Background())
	if err != nil {
		return err
	}

	for _, sr := range res.Splits {
		if err := sr.Summary.Write(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("shards: %d, size: %s\n", len(sr.Info.Shards), humanize.Bytes(uint64(sr.Info.Bytes)))
		for feed, reasons := range sr.Stats.ErrorsByReason {
			for reason, n := range reasons {
				fmt.Printf("dropped by %s (%s): %d\n", feed, reason, n)
			}
		}
		fmt.Println()
	}

	logger.Durations.Flush(logger)
	fmt.Printf("dataset written to %s\n", res.Dir)
	return nil
}
