package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// maxErrorRecords bounds how many individual failures are kept for reporting
const maxErrorRecords = 100

// FeedError records one sample that a feed failed to produce.
type FeedError struct {
	Feed   string
	Source string
	Key    string
	Reason string
	Err    error
}

// Error implements error
func (f FeedError) Error() string {
	return fmt.Sprintf("%s failed on %s (source %s): %v", f.Feed, f.Key, f.Source, f.Err)
}

// Unwrap returns the underlying sample error
func (f FeedError) Unwrap() error {
	return f.Err
}

// RunStats summarizes a run
type RunStats struct {
	Records int
	FeedIn  map[string]int
	FeedOut map[string]int
	// ErrorsByReason counts failures per feed and reason
	ErrorsByReason map[string]map[string]int
	// Errors holds the first failures of the run
	Errors []FeedError
}

// NumErrors is the total number of failed samples
func (s RunStats) NumErrors() int {
	var n int
	for _, reasons := range s.ErrorsByReason {
		for _, c := range reasons {
			n += c
		}
	}
	return n
}

// String renders per feed counts, one feed per line, sorted by name
func (s RunStats) String() string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range []map[string]int{s.FeedIn, s.FeedOut} {
		for name := range m {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	for name := range s.ErrorsByReason {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "records: %d\n", s.Records)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: in=%d out=%d", name, s.FeedIn[name], s.FeedOut[name])
		var reasons []string
		for reason := range s.ErrorsByReason[name] {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(&b, " [%s]=%d", reason, s.ErrorsByReason[name][reason])
		}
		b.WriteString("\n")
	}
	return b.String()
}

type runStats struct {
	RunStats
}

func newRunStats() runStats {
	return runStats{RunStats{
		FeedIn:         make(map[string]int),
		FeedOut:        make(map[string]int),
		ErrorsByReason: make(map[string]map[string]int),
	}}
}

func (r *runStats) IncrFeedIn(f Feed) {
	r.FeedIn[f.Name()]++
}

func (r *runStats) IncrFeedOut(f Feed) {
	r.FeedOut[f.Name()]++
}

func (r *runStats) AddFeedError(f Feed, source, key string, se sampleError) FeedError {
	reasons := r.ErrorsByReason[f.Name()]
	if reasons == nil {
		reasons = make(map[string]int)
		r.ErrorsByReason[f.Name()] = reasons
	}
	reasons[se.Reason]++

	fe := FeedError{Feed: f.Name(), Source: source, Key: key, Reason: se.Reason, Err: se}
	if len(r.Errors) < maxErrorRecords {
		r.Errors = append(r.Errors, fe)
	}
	return fe
}

func (r *runStats) snapshot() RunStats {
	out := RunStats{
		Records:        r.Records,
		FeedIn:         make(map[string]int, len(r.FeedIn)),
		FeedOut:        make(map[string]int, len(r.FeedOut)),
		ErrorsByReason: make(map[string]map[string]int, len(r.ErrorsByReason)),
		Errors:         append([]FeedError(nil), r.Errors...),
	}
	for k, v := range r.FeedIn {
		out.FeedIn[k] = v
	}
	for k, v := range r.FeedOut {
		out.FeedOut[k] = v
	}
	for k, reasons := range r.ErrorsByReason {
		cp := make(map[string]int, len(reasons))
		for reason, c := range reasons {
			cp[reason] = c
		}
		out.ErrorsByReason[k] = cp
	}
	return out
}
