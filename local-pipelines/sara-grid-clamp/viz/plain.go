package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dlr-sara/gridclamp/golib/errors"
)

// stepLine is printed under every frame
func stepLine(i int, f frame) string {
	return fmt.Sprintf("Step: %d, x : %v, Terminal : %t", i, f.x(), f.IsTerminal)
}

type plainViewer struct {
	eps    episodes
	in     *bufio.Reader
	out    io.Writer
	render renderer
	width  int
}

func newPlainViewer(eps episodes, in io.Reader, out io.Writer, render renderer, width int) *plainViewer {
	return &plainViewer{
		eps:    eps,
		in:     bufio.NewReader(in),
		out:    out,
		render: render,
		width:  width,
	}
}

// Run shows every step of every episode and waits for a line on the input after each one.
// A closed input ends the session early without an error.
func (v *plainViewer) Run() error {
	var successes int
	for i := 0; i < v.eps.Len(); i++ {
		frames, err := v.eps.Load(i)
		if err != nil {
			return errors.Wrapf(err, "error loading %s", v.eps.Name(i))
		}
		fmt.Fprintf(v.out, "== %s (%d steps)\n", v.eps.Name(i), len(frames))

		for j, f := range frames {
			if v.render != nil {
				art, err := v.render(f.Image, v.width)
				if err != nil {
					return err
				}
				fmt.Fprintln(v.out, art)
			}
			fmt.Fprintln(v.out, stepLine(j, f))

			if _, err := v.in.ReadString('\n'); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}

		if n := len(frames); n > 0 && frames[n-1].IsTerminal {
			successes++
		}
	}
	fmt.Fprintf(v.out, "%d of %d episodes end in a terminal step\n", successes, v.eps.Len())
	return nil
}
