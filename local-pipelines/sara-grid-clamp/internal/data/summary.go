package data

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/pipeline"
	"github.com/dlr-sara/gridclamp/golib/rlds"
	humanize "github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
)

// Summary describes the episodes written for a split
type Summary struct {
	Split     string `json:"split"`
	Episodes  int    `json:"episodes"`
	Steps     int    `json:"steps"`
	Successes int    `json:"successes"`

	MinSteps    float64 `json:"min_steps"`
	MaxSteps    float64 `json:"max_steps"`
	MeanSteps   float64 `json:"mean_steps"`
	MedianSteps float64 `json:"median_steps"`
	StdDevSteps float64 `json:"stddev_steps"`

	ImageBytes int64 `json:"image_bytes"`
}

// SampleTag implements pipeline.Sample
func (Summary) SampleTag() {}

// Write renders the summary as a table
func (s Summary) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "split\t%s\n", s.Split)
	fmt.Fprintf(tw, "episodes\t%d\n", s.Episodes)
	fmt.Fprintf(tw, "successful episodes\t%d\n", s.Successes)
	fmt.Fprintf(tw, "steps\t%d\n", s.Steps)
	if s.Episodes > 0 {
		fmt.Fprintf(tw, "steps per episode\tmin %.0f, max %.0f, mean %.1f, median %.1f, stddev %.1f\n",
			s.MinSteps, s.MaxSteps, s.MeanSteps, s.MedianSteps, s.StdDevSteps)
	}
	fmt.Fprintf(tw, "encoded images\t%s\n", humanize.Bytes(uint64(s.ImageBytes)))
	return tw.Flush()
}

// summarizer is an aggregator over the episodes of a split
type summarizer struct {
	split string

	lengths    []float64
	successes  int
	imageBytes int64
}

func newSummarizer(split string) *summarizer {
	return &summarizer{split: split}
}

func (s *summarizer) Name() string {
	return s.split + "-summary"
}

func (s *summarizer) Clone() pipeline.Dependent {
	return newSummarizer(s.split)
}

func (s *summarizer) In(sample pipeline.Sample) {
	ep := sample.(pipeline.Keyed).Sample.(*rlds.Episode)
	s.lengths = append(s.lengths, float64(ep.Len()))
	if n := ep.Len(); n > 0 && ep.Steps[n-1].IsTerminal {
		s.successes++
	}
	for _, step := range ep.Steps {
		s.imageBytes += int64(len(step.Observation.Image))
	}
}

func (s *summarizer) AggregateLocal(clones []pipeline.Aggregator) (pipeline.Sample, error) {
	sum := Summary{Split: s.split}
	var lengths []float64
	for _, c := range clones {
		cs := c.(*summarizer)
		lengths = append(lengths, cs.lengths...)
		sum.Successes += cs.successes
		sum.ImageBytes += cs.imageBytes
	}

	sum.Episodes = len(lengths)
	for _, l := range lengths {
		sum.Steps += int(l)
	}
	if len(lengths) == 0 {
		return sum, nil
	}

	var err error
	if sum.MinSteps, err = stats.Min(lengths); err != nil {
		return nil, errors.Wrapf(err, "min")
	}
	if sum.MaxSteps, err = stats.Max(lengths); err != nil {
		return nil, errors.Wrapf(err, "max")
	}
	if sum.MeanSteps, err = stats.Mean(lengths); err != nil {
		return nil, errors.Wrapf(err, "mean")
	}
	if sum.MedianSteps, err = stats.Median(lengths); err != nil {
		return nil, errors.Wrapf(err, "median")
	}
	if sum.StdDevSteps, err = stats.StdDevP(lengths); err != nil {
		return nil, errors.Wrapf(err, "stddev")
	}
	return sum, nil
}

func (s *summarizer) Finalize() error {
	return nil
}
