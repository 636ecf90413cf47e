package fileutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dlr-sara/gridclamp/golib/awsutil"
	zglob "github.com/mattn/go-zglob"
)

// Glob returns the sorted paths matching pattern. Patterns may use "**" to cross
// directories and may be s3 uris, in which case the keys under the longest
// literal prefix are listed and matched. No match is not an error.
func Glob(pattern string) ([]string, error) {
	var matches []string
	var err error
	if awsutil.IsS3URI(pattern) {
		matches, err = globS3(pattern)
	} else {
		matches, err = globLocal(pattern)
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func globLocal(pattern string) ([]string, error) {
	root := literalPrefix(pattern)
	if i := strings.LastIndex(root, string(filepath.Separator)); i >= 0 {
		root = root[:i+1]
	} else {
		root = "."
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := zglob.Glob(pattern)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return matches, err
}

func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

func globS3(pattern string) ([]string, error) {
	bucket, keyPattern, err := awsutil.SplitURI(pattern)
	if err != nil {
		return nil, err
	}

	prefix := literalPrefix(keyPattern)

	keys, err := listS3(bucket, prefix)
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, key := range keys {
		ok, err := zglob.Match(keyPattern, key)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, "s3://"+bucket+"/"+key)
		}
	}
	return matches, nil
}
