package data

import (
	"context"
	"fmt"
	"time"

	"github.com/dlr-sara/gridclamp/golib/embedding"
	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/pipeline"
	"github.com/dlr-sara/gridclamp/golib/pipeline/dependent"
	"github.com/dlr-sara/gridclamp/golib/pipeline/sample"
	"github.com/dlr-sara/gridclamp/golib/pipeline/source"
	"github.com/dlr-sara/gridclamp/golib/pipeline/transform"
	"github.com/dlr-sara/gridclamp/golib/rlds"
	"github.com/dlr-sara/gridclamp/golib/runlog"
	"go.uber.org/zap"
)

// Builder converts the raw splits of a Config into a dataset
type Builder struct {
	cfg      Config
	embedder embedding.Embedder
	logger   *runlog.Logger
	events   *zap.Logger
}

// NewBuilder for cfg. logger receives progress lines, events one structured entry per episode;
// nil loggers are replaced by runlog.Basic and a no-op logger.
func NewBuilder(cfg Config, embedder embedding.Embedder, logger *runlog.Logger, events *zap.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config")
	}
	if logger == nil {
		logger = runlog.Basic
	}
	if events == nil {
		events = zap.NewNop()
	}
	return &Builder{
		cfg:      cfg,
		embedder: embedder,
		logger:   logger,
		events:   events,
	}, nil
}

// SplitResult is the outcome of building one split
type SplitResult struct {
	Info    rlds.SplitInfo
	Summary Summary
	Stats   pipeline.RunStats
}

// Result of a build
type Result struct {
	Dir    string
	Info   rlds.DatasetInfo
	Splits []SplitResult
}

// Build embeds the instruction, then converts every split in order and writes the dataset info.
// An unreachable embedding backend fails the build before any file is read.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	start := time.Now()
	constant := embedding.NewConstant(ctx, b.embedder, b.cfg.Instruction)
	vec, err := constant.Vector()
	if err != nil {
		return Result{}, errors.Wrapf(err, "error computing the instruction embedding")
	}
	b.logger.Durations.Since("embed instruction", start)

	parser := Parser{
		Instruction: b.cfg.Instruction,
		Embedding:   vec,
	}
	features := rlds.NewFeatures(b.cfg.FeatureConfig())

	res := Result{
		Dir: b.cfg.OutputDir(),
		Info: rlds.DatasetInfo{
			Name:         b.cfg.Name,
			Version:      b.cfg.Version,
			Description:  b.cfg.Description,
			ReleaseNotes: b.cfg.ReleaseNotes,
			Splits:       make(map[string]rlds.SplitInfo),
		},
	}

	for _, split := range b.cfg.Splits {
		start := time.Now()
		sr, err := b.buildSplit(ctx, split, parser, features)
		if err != nil {
			return Result{}, errors.Wrapf(err, "error building split %s", split.Name)
		}
		b.logger.Durations.Since(fmt.Sprintf("split %s", split.Name), start)

		res.Info.Splits[split.Name] = sr.Info
		res.Splits = append(res.Splits, sr)
	}

	if err := rlds.Write(res.Dir, res.Info, features); err != nil {
		return Result{}, err
	}
	b.logger.Printf("wrote %s with %d splits in %s", res.Dir, len(res.Splits), time.Since(start))
	return res, nil
}

func (b *Builder) buildSplit(ctx context.Context, split Split, parser Parser, features rlds.Features) (SplitResult, error) {
	logger := b.logger.With(map[string]string{"split": split.Name})
	events := b.events.With(zap.String("split", split.Name))

	src := source.NewGlob(split.Name, split.Glob, logger.Default.Writer())

	var taken int
	limit := transform.NewFilter("limit", func(s pipeline.Sample) bool {
		if b.cfg.MaxEpisodes > 0 && taken >= b.cfg.MaxEpisodes {
			return false
		}
		taken++
		return true
	})

	parse := transform.NewOneInOneOutKeyed("parse", func(s pipeline.Sample) pipeline.Sample {
		path := string(s.(sample.FilePath))
		ep, err := parser.Parse(path)
		if err != nil {
			return pipeline.WrapError("parse", err)
		}
		return ep
	})

	validate := transform.NewOneInOneOutKeyed("validate", func(s pipeline.Sample) pipeline.Sample {
		ep := s.(*rlds.Episode)
		if err := features.Validate(ep); err != nil {
			return pipeline.WrapError("validate", err)
		}
		return ep
	})

	writer := rlds.NewShardWriter(rlds.ShardWriterOpts{
		MaxEpisodes: b.cfg.MaxEpisodesPerShard,
		MaxBytes:    b.cfg.MaxShardBytes,
		TmpDir:      b.cfg.TmpDir,
		Logger:      logger,
	}, b.cfg.OutputDir(), b.cfg.Name, split.Name)

	summary := newSummarizer(split.Name)

	episodeLog := dependent.NewKeyed("episode-log", func(key string, ep *rlds.Episode) {
		terminal := ep.Len() > 0 && ep.Steps[ep.Len()-1].IsTerminal
		events.Info("episode", zap.String("file", key), zap.Int("steps", ep.Len()), zap.Bool("terminal", terminal))
	})

	pm := make(pipeline.ParentMap)
	pm.Chain(src, limit, parse, validate)
	pm.FanOut(validate, writer, summary, episodeLog)

	pipe := pipeline.Pipeline{
		Name:    fmt.Sprintf("%s-%s", b.cfg.Name, split.Name),
		Parents: pm,
		Sources: []pipeline.Source{src},
		Params: map[string]interface{}{
			"Glob":                split.Glob,
			"MaxEpisodes":         b.cfg.MaxEpisodes,
			"SkipMalformed":       b.cfg.SkipMalformed,
			"MaxShardBytes":       b.cfg.MaxShardBytes,
			"MaxEpisodesPerShard": b.cfg.MaxEpisodesPerShard,
		},
	}

	opts := pipeline.DefaultEngineOptions
	opts.AbortOnError = !b.cfg.SkipMalformed
	opts.ErrorFn = func(fe pipeline.FeedError) {
		events.Warn("dropped episode", zap.String("file", fe.Key), zap.String("feed", fe.Feed),
			zap.String("reason", fe.Reason), zap.Error(fe.Err))
	}

	engine, err := pipeline.NewEngine(pipe, opts)
	if err != nil {
		return SplitResult{}, err
	}

	res, err := engine.RunContext(ctx)
	if err != nil {
		return SplitResult{}, err
	}

	stats := engine.Stats()
	if n := stats.NumErrors(); n > 0 {
		logger.Printf("skipped %d malformed episodes", n)
	}

	return SplitResult{
		Info:    res[writer].(rlds.SplitInfo),
		Summary: res[summary].(Summary),
		Stats:   stats,
	}, nil
}
