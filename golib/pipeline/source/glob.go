package source

import (
	"fmt"
	"io"

	"github.com/dlr-sara/gridclamp/golib/fileutil"
	"github.com/dlr-sara/gridclamp/golib/pipeline"
	"github.com/dlr-sara/gridclamp/golib/pipeline/sample"
)

// Glob is a source emitting one record per file matching a pattern, in sorted order.
// Each record is keyed by the path and carries a pipeline.Keyed{Key: path, Sample: sample.FilePath}.
// The pattern is expanded lazily on the first SourceOut; a failed expansion is emitted as an
// error record keyed by the pattern. No match emits nothing.
type Glob struct {
	name    string
	pattern string
	logger  io.Writer

	expanded bool
	paths    []string
	pos      int
}

// NewGlob creates a Glob source; pattern may be local or an s3 uri, see fileutil.Glob.
func NewGlob(name, pattern string, logger io.Writer) *Glob {
	return &Glob{
		name:    name,
		pattern: pattern,
		logger:  logger,
	}
}

// Name implements pipeline.Source
func (g *Glob) Name() string {
	return g.name
}

// Pattern being expanded
func (g *Glob) Pattern() string {
	return g.pattern
}

// SourceOut implements pipeline.Source
func (g *Glob) SourceOut() pipeline.Record {
	if !g.expanded {
		g.expanded = true
		paths, err := fileutil.Glob(g.pattern)
		if err != nil {
			return pipeline.Record{
				Key:   g.pattern,
				Value: pipeline.WrapError("glob", err),
			}
		}
		g.paths = paths
		if g.logger != nil {
			fmt.Fprintf(g.logger, "%s: %d files match %s\n", g.name, len(paths), g.pattern)
		}
	}

	if g.pos >= len(g.paths) {
		return pipeline.Record{}
	}

	path := g.paths[g.pos]
	g.pos++
	return pipeline.Record{
		Key: path,
		Value: pipeline.Keyed{
			Key:    path,
			Sample: sample.FilePath(path),
		},
	}
}
