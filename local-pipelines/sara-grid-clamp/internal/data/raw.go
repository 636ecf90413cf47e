package data

import (
	"image"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/npy"
	"github.com/dlr-sara/gridclamp/golib/rlds"
)

// RawStep is one step of a raw episode file. Image is already converted to RGB.
type RawStep struct {
	Image      *image.NRGBA
	State      []float32
	Action     []float32
	IsTerminal bool
}

// ReadRaw loads the steps of a raw episode file, local or on s3. Vector sizes are not checked.
func ReadRaw(path string) ([]RawStep, error) {
	arr, err := npy.ReadFile(path)
	if err != nil {
		return nil, err
	}
	items, err := arr.Objects()
	if err != nil {
		return nil, errors.Wrapf(err, "%s does not hold a list of steps", path)
	}

	steps := make([]RawStep, 0, len(items))
	for i, item := range items {
		step, err := rawStep(item)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: step %d", path, i)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func rawStep(item interface{}) (RawStep, error) {
	m, ok := item.(map[string]interface{})
	if !ok {
		return RawStep{}, errors.Errorf("expected a dict, got %T", item)
	}

	var step RawStep
	var err error

	img, ok := m["image"].(*npy.Array)
	if !ok {
		return RawStep{}, errors.Errorf("image is %T, not an array", m["image"])
	}
	if step.Image, err = bgrImage(img); err != nil {
		return RawStep{}, err
	}

	if step.State, err = npy.AsFloat32s(m["state"]); err != nil {
		return RawStep{}, errors.Wrapf(err, "state")
	}
	if step.Action, err = npy.AsFloat32s(m["action"]); err != nil {
		return RawStep{}, errors.Wrapf(err, "action")
	}
	if step.IsTerminal, err = npy.AsBool(m["is_terminal"]); err != nil {
		return RawStep{}, errors.Wrapf(err, "is_terminal")
	}
	return step, nil
}

func bgrImage(arr *npy.Array) (*image.NRGBA, error) {
	if len(arr.Shape) != 3 || arr.Shape[2] != 3 {
		return nil, errors.Errorf("image has shape %v, expected (height, width, 3)", arr.Shape)
	}
	pix, err := arr.Uint8s()
	if err != nil {
		return nil, errors.Wrapf(err, "image")
	}
	return rlds.BGRToImage(pix, arr.Shape[0], arr.Shape[1])
}
