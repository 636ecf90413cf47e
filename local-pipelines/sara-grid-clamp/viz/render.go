package main

import (
	"image"
	"io/ioutil"
	"os"

	"github.com/TheZoraiz/ascii-image-converter/aic_package"
	"github.com/disintegration/imaging"
	"github.com/dlr-sara/gridclamp/golib/errors"
)

// renderer turns a camera frame into text of at most width columns
type renderer func(img image.Image, width int) (string, error)

// terminal cells are about twice as tall as they are wide
const cellAspect = 2

func asciiSize(b image.Rectangle, width int) (int, int) {
	if width <= 0 || b.Dx() == 0 {
		return 0, 0
	}
	if width > b.Dx() {
		width = b.Dx()
	}
	height := width * b.Dy() / b.Dx() / cellAspect
	if height < 1 {
		height = 1
	}
	return width, height
}

// newASCIIRenderer renders frames with ascii-image-converter; braille packs 2x4 pixels per cell
func newASCIIRenderer(colored, braille bool) renderer {
	return func(img image.Image, width int) (string, error) {
		w, h := asciiSize(img.Bounds(), width)
		if w == 0 {
			return "", nil
		}

		// the converter only reads files
		f, err := ioutil.TempFile("", "frame_*.png")
		if err != nil {
			return "", errors.Wrapf(err, "error creating frame file")
		}
		defer os.Remove(f.Name())
		defer f.Close()

		// shrink large frames before handing them over, the converter resamples again
		small := imaging.Fit(img, w*cellAspect*2, h*cellAspect*4, imaging.Box)
		if err := imaging.Encode(f, small, imaging.PNG); err != nil {
			return "", errors.Wrapf(err, "error writing frame")
		}
		if err := f.Close(); err != nil {
			return "", err
		}

		flags := aic_package.DefaultFlags()
		flags.Dimensions = []int{w, h}
		flags.Colored = colored
		flags.Braille = braille
		out, err := aic_package.Convert(f.Name(), flags)
		if err != nil {
			return "", errors.Wrapf(err, "error converting frame")
		}
		return out, nil
	}
}
