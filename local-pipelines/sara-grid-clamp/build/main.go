package main

import (
	"github.com/dlr-sara/gridclamp/golib/cmdline"
)

func main() {
	cmdline.MustDispatch(buildCmd, infoCmd)
}
