package rlds

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dlr-sara/gridclamp/golib/awsutil"
	"github.com/dlr-sara/gridclamp/golib/diskmap"
	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/fileutil"
	"github.com/dlr-sara/gridclamp/golib/pipeline"
	"github.com/dlr-sara/gridclamp/golib/runlog"
	humanize "github.com/dustin/go-humanize"
)

// Codec encodes episodes in shard files
var Codec = diskmap.SnappyGob

// DoneSuffix marks a split whose shards are complete, e.g. "train.DONE"
const DoneSuffix = ".DONE"

// ShardFilename returns the name of the i-th shard of a split
func ShardFilename(dataset, split string, i int) string {
	return fmt.Sprintf("%s-%s.diskmap-%05d", dataset, split, i)
}

// DoneFilename returns the name of the marker written once a split is complete
func DoneFilename(split string) string {
	return split + DoneSuffix
}

// ShardWriterOpts configures a ShardWriter
type ShardWriterOpts struct {
	// MaxEpisodes per shard, 0 for no limit
	MaxEpisodes int
	// MaxBytes of encoded episodes per shard, 0 for no limit
	MaxBytes int64
	// TmpDir buffers shards bound for s3; the system temp dir if empty
	TmpDir string
	Logger runlog.Interface
}

// DefaultShardWriterOpts roll over every 256MB
var DefaultShardWriterOpts = ShardWriterOpts{
	MaxBytes: 256 << 20,
}

// ShardWriter is a pipeline.Aggregator writing the episodes of a split to diskmap shards
// in dir. Inputs are pipeline.Keyed samples wrapping an *Episode; keys must arrive in
// increasing order, which holds for sorted sources. Local shards are written with a .tmp
// suffix and renamed once complete. The result of the aggregator is a SplitInfo.
type ShardWriter struct {
	opts    ShardWriterOpts
	name    string
	dir     string
	dataset string
	split   string

	cur    *shard
	shards []ShardInfo
	err    error

	result *SplitInfo
}

// NewShardWriter for the given split of dataset, writing into dir (local or s3)
func NewShardWriter(opts ShardWriterOpts, dir, dataset, split string) *ShardWriter {
	if opts.Logger == nil {
		opts.Logger = runlog.Basic
	}
	return &ShardWriter{
		opts:    opts,
		name:    fmt.Sprintf("%s-writer", split),
		dir:     dir,
		dataset: dataset,
		split:   split,
	}
}

// Name implements pipeline.Aggregator
func (w *ShardWriter) Name() string {
	return w.name
}

// Clone implements pipeline.Aggregator
func (w *ShardWriter) Clone() pipeline.Dependent {
	return NewShardWriter(w.opts, w.dir, w.dataset, w.split)
}

// In implements pipeline.Aggregator. After the first write error the remaining
// samples are dropped; the error is returned by AggregateLocal.
func (w *ShardWriter) In(s pipeline.Sample) {
	if w.err != nil {
		return
	}
	w.err = w.add(s)
}

func (w *ShardWriter) add(s pipeline.Sample) error {
	k, ok := s.(pipeline.Keyed)
	if !ok {
		return errors.Errorf("%s: expected a keyed sample, got %T", w.name, s)
	}
	ep, ok := k.Sample.(*Episode)
	if !ok {
		return errors.Errorf("%s: expected an episode for %s, got %T", w.name, k.Key, k.Sample)
	}

	if w.cur != nil && w.full() {
		if err := w.complete(); err != nil {
			return err
		}
	}
	if w.cur == nil {
		cur, err := w.next()
		if err != nil {
			return err
		}
		w.cur = cur
	}

	if err := Codec.Add(w.cur.builder, k.Key, ep); err != nil {
		return errors.Wrapf(err, "error adding %s to %s", k.Key, w.cur.path)
	}
	w.cur.steps += ep.Len()
	return nil
}

func (w *ShardWriter) full() bool {
	if w.opts.MaxEpisodes > 0 && w.cur.builder.Len() >= w.opts.MaxEpisodes {
		return true
	}
	return w.opts.MaxBytes > 0 && w.cur.builder.Size() >= w.opts.MaxBytes
}

type shard struct {
	name    string
	path    string
	wc      fileutil.NamedWriteCloser
	buf     *bufio.Writer
	builder *diskmap.StreamBuilder
	steps   int
}

func (w *ShardWriter) next() (*shard, error) {
	name := ShardFilename(w.dataset, w.split, len(w.shards))
	path := fileutil.Join(w.dir, name)
	if !awsutil.IsS3URI(w.dir) {
		path += ".tmp"
	}

	wc, err := newBufferedWriter(w.opts.TmpDir, path)
	if err != nil {
		return nil, errors.Errorf("error creating writer '%s': %v", path, err)
	}

	buf := bufio.NewWriter(wc)
	return &shard{
		name:    name,
		path:    path,
		wc:      wc,
		buf:     buf,
		builder: diskmap.NewStreamBuilder(buf),
	}, nil
}

func (s *shard) close() error {
	if err := s.builder.Close(); err != nil {
		s.wc.Close()
		return errors.Errorf("error closing diskmap for '%s': %v", s.path, err)
	}
	if err := s.buf.Flush(); err != nil {
		s.wc.Close()
		return errors.Errorf("error flushing '%s': %v", s.path, err)
	}
	if err := s.wc.Close(); err != nil {
		return errors.Errorf("error closing writer for '%s': %v", s.path, err)
	}
	return nil
}

// complete closes the current shard and moves it into place
func (w *ShardWriter) complete() error {
	s := w.cur
	w.cur = nil

	if err := s.close(); err != nil {
		return err
	}

	if strings.HasSuffix(s.path, ".tmp") {
		path := strings.TrimSuffix(s.path, ".tmp")
		if err := os.Rename(s.path, path); err != nil {
			return errors.Errorf("unable to rename %s -> %s: %v", s.path, path, err)
		}
	}

	info := ShardInfo{
		File:     s.name,
		Episodes: s.builder.Len(),
		Steps:    s.steps,
		Bytes:    s.builder.Size(),
	}
	w.shards = append(w.shards, info)
	w.opts.Logger.Printf("%s: wrote %s with %d episodes, %d steps, %s",
		w.split, info.File, info.Episodes, info.Steps, humanize.Bytes(uint64(info.Bytes)))
	return nil
}

// AggregateLocal implements pipeline.Aggregator
func (w *ShardWriter) AggregateLocal(clones []pipeline.Aggregator) (pipeline.Sample, error) {
	info := SplitInfo{Name: w.split}
	for _, c := range clones {
		cw := c.(*ShardWriter)
		if cw.err != nil {
			return nil, cw.err
		}
		if cw.cur != nil {
			if err := cw.complete(); err != nil {
				return nil, err
			}
		}
		for _, s := range cw.shards {
			info.Shards = append(info.Shards, s)
			info.Episodes += s.Episodes
			info.Steps += s.Steps
			info.Bytes += s.Bytes
		}
	}
	w.result = &info
	return info, nil
}

// Abort implements pipeline.Aborter: the shard being written is discarded, completed
// shards are kept but the split is not marked as done.
func (w *ShardWriter) Abort() error {
	s := w.cur
	if s == nil {
		return nil
	}
	w.cur = nil

	if d, ok := s.wc.(interface{ Discard() error }); ok {
		return d.Discard()
	}
	s.wc.Close()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Finalize implements pipeline.Aggregator
func (w *ShardWriter) Finalize() error {
	if w.result == nil {
		return errors.Errorf("%s: finalized before aggregation", w.name)
	}
	return writeDoneFile(w.dir, w.split)
}

func writeDoneFile(dir, split string) error {
	outf, err := fileutil.NewBufferedWriter(fileutil.Join(dir, DoneFilename(split)))
	if err != nil {
		return err
	}

	if _, err := outf.Write([]byte("done")); err != nil {
		outf.Close()
		return err
	}

	return outf.Close()
}

// newBufferedWriter opens a local or remote path for writing. If the path starts with
// "s3://", then this will write to a local buffer, copying to s3 on close.
func newBufferedWriter(tmpDir, path string) (fileutil.NamedWriteCloser, error) {
	if awsutil.IsS3URI(path) && tmpDir != "" {
		return awsutil.NewBufferedS3WriterWithTmp(tmpDir, path)
	}
	return fileutil.NewBufferedWriter(path)
}
