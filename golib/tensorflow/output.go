package tensorflow

import (
	"strconv"
	"strings"
)

// splitOutput splits an output name such as "encoder/output:1" into the op name and output index.
// Names without an index refer to output 0.
func splitOutput(name string) (string, int) {
	i := strings.LastIndex(name, ":")
	if i < 0 {
		return name, 0
	}
	index, err := strconv.Atoi(name[i+1:])
	if err != nil || index < 0 {
		return name, 0
	}
	return name[:i], index
}
