package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dlr-sara/gridclamp/golib/cmdline"
	"github.com/dlr-sara/gridclamp/golib/rlds"
	"github.com/dustin/go-humanize"
)

var infoCmd = cmdline.Command{
	Name:     "info",
	Synopsis: "describe a built dataset",
	Args:     &infoArgs{},
}

type infoArgs struct {
	Dir      string `arg:"positional,required" help:"dataset directory, <data_dir>/<name>/<version>"`
	Features bool   `arg:"--features" help:"also list the step features"`
}

func (a *infoArgs) Handle() error {
	r, err := rlds.Open(a.Dir)
	if err != nil {
		return err
	}
	return writeInfo(os.Stdout, r, a.Features)
}

func writeInfo(w io.Writer, r *rlds.Reader, features bool) error {
	info := r.Info()
	fmt.Fprintf(w, "%s %s\n%s\n\n", info.Name, info.Version, info.Description)

	tw := tabwriter.NewWriter(w, 4, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "split\tepisodes\tsteps\tshards\tsize\tcomplete")
	for _, name := range r.Splits() {
		split := info.Splits[name]
		done, err := r.Complete(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%t\n", name, split.Episodes, split.Steps, len(split.Shards),
			humanize.Bytes(uint64(split.Bytes)), done)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !features {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 4, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "feature\tdtype\tshape\tencoding")
	for _, f := range r.Features().Steps {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", f.Name, f.DType, f.Shape, f.Encoding)
	}
	return tw.Flush()
}
