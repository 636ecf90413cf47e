package runlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
)

var flags = log.LstdFlags | log.Lmicroseconds

// Logger is a line logger whose prefix identifies the run, plus a table of stage durations.
type Logger struct {
	Default   *log.Logger
	Durations Durations
}

// Interface encapsulates the relevant methods of log.Logger
type Interface interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// Basic logs to stderr with no run tags
var Basic = New(os.Stderr, nil)

// New creates a Logger writing to w; tags are rendered as a sorted [k=v ...] prefix.
func New(w io.Writer, tags map[string]string) *Logger {
	return &Logger{
		Default: log.New(w, prefix(tags), flags),
	}
}

func prefix(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, tags[k]))
	}
	return "[" + strings.Join(parts, " ") + "] "
}

// With returns a derived Logger whose prefix carries the extra tags, sharing the output writer
func (l *Logger) With(tags map[string]string) *Logger {
	merged := parseTags(l.Default.Prefix())
	for k, v := range tags {
		merged[k] = v
	}
	return &Logger{
		Default: log.New(l.Default.Writer(), prefix(merged), l.Default.Flags()),
	}
}

func parseTags(p string) map[string]string {
	tags := make(map[string]string)
	p = strings.TrimSuffix(strings.TrimSpace(p), "]")
	p = strings.TrimPrefix(p, "[")
	for _, kv := range strings.Fields(p) {
		if parts := strings.SplitN(kv, "=", 2); len(parts) == 2 {
			tags[parts[0]] = parts[1]
		}
	}
	return tags
}

// Printf implements Interface
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Default.Output(2, fmt.Sprintf(format, v...))
}

// Println implements Interface
func (l *Logger) Println(v ...interface{}) {
	l.Default.Output(2, fmt.Sprintln(v...))
}
