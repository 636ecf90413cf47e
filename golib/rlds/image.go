package rlds

import (
	"bytes"
	"image"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/dlr-sara/gridclamp/golib/errors"
)

// BGRToImage converts an interleaved HxWx3 BGR buffer into an RGB image.
func BGRToImage(pix []uint8, height, width int) (*image.NRGBA, error) {
	if height <= 0 || width <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", height, width)
	}
	if len(pix) != height*width*3 {
		return nil, errors.Errorf("expected %d bytes for a %dx%dx3 image, got %d", height*width*3, height, width, len(pix))
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < len(pix); i, j = i+3, j+4 {
		img.Pix[j] = pix[i+2]
		img.Pix[j+1] = pix[i+1]
		img.Pix[j+2] = pix[i]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

// EncodePNG encodes img as a PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, errors.Wrapf(err, "error encoding png")
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes an encoded observation image
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding image")
	}
	return img, nil
}

// ImageSize returns the height and width of an encoded image without decoding its pixels
func ImageSize(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, errors.Wrapf(err, "error reading image header")
	}
	return cfg.Height, cfg.Width, nil
}
