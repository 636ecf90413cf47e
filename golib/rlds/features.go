package rlds

import (
	"math"

	"github.com/dlr-sara/gridclamp/golib/errors"
)

// FeaturesFilename is written next to the dataset info
const FeaturesFilename = "features.json"

// Feature declares one field of a step or of the episode metadata
type Feature struct {
	Name     string `json:"name"`
	DType    string `json:"dtype"`
	Shape    []int  `json:"shape,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Doc      string `json:"doc"`
}

// Features describes the layout of every episode in a dataset
type Features struct {
	Steps    []Feature `json:"steps"`
	Metadata []Feature `json:"episode_metadata"`
}

// FeatureConfig sizes the vector features of a dataset
type FeatureConfig struct {
	ImageHeight, ImageWidth int
	StateDim                int
	ActionDim               int
	EmbeddingDim            int
}

// NewFeatures declares the step and metadata features for cfg
func NewFeatures(cfg FeatureConfig) Features {
	return Features{
		Steps: []Feature{
			{Name: "observation/image", DType: "uint8", Shape: []int{cfg.ImageHeight, cfg.ImageWidth, 3}, Encoding: "png",
				Doc: "Main camera RGB observation."},
			{Name: "observation/state", DType: "float32", Shape: []int{cfg.StateDim},
				Doc: "Robot state."},
			{Name: "action", DType: "float32", Shape: []int{cfg.ActionDim},
				Doc: "Robot action."},
			{Name: "discount", DType: "float32",
				Doc: "Discount if provided, default to 1."},
			{Name: "reward", DType: "float32",
				Doc: "Reward if provided, 1 on final step for demos."},
			{Name: "is_first", DType: "bool",
				Doc: "True on first step of the episode."},
			{Name: "is_last", DType: "bool",
				Doc: "True on last step of the episode."},
			{Name: "is_terminal", DType: "bool",
				Doc: "True on last step of the episode if it is a terminal step, True for demos."},
			{Name: "language_instruction", DType: "string",
				Doc: "Language Instruction."},
			{Name: "language_embedding", DType: "float32", Shape: []int{cfg.EmbeddingDim},
				Doc: "Kona language embedding."},
		},
		Metadata: []Feature{
			{Name: "file_path", DType: "string", Doc: "Path to the original data file."},
		},
	}
}

// Feature returns the step feature with the given name
func (f Features) Feature(name string) (Feature, bool) {
	for _, feat := range f.Steps {
		if feat.Name == name {
			return feat, true
		}
	}
	return Feature{}, false
}

func (f Features) dim(name string, axis int) int {
	feat, ok := f.Feature(name)
	if !ok || axis >= len(feat.Shape) {
		return -1
	}
	return feat.Shape[axis]
}

// Validate checks the vector shapes and the step flags of an episode.
// Image pixels are not decoded; only the encoded header is read.
func (f Features) Validate(ep *Episode) error {
	if ep == nil {
		return errors.Errorf("nil episode")
	}
	if ep.Metadata.FilePath == "" {
		return errors.Errorf("episode has no file path")
	}

	height, width := f.dim("observation/image", 0), f.dim("observation/image", 1)
	stateDim := f.dim("observation/state", 0)
	actionDim := f.dim("action", 0)
	embDim := f.dim("language_embedding", 0)

	n := len(ep.Steps)
	for i, step := range ep.Steps {
		if err := checkLen("observation/state", step.Observation.State, stateDim); err != nil {
			return stepErr(i, err)
		}
		if err := checkLen("action", step.Action, actionDim); err != nil {
			return stepErr(i, err)
		}
		if err := checkLen("language_embedding", step.LanguageEmbedding, embDim); err != nil {
			return stepErr(i, err)
		}

		h, w, err := ImageSize(step.Observation.Image)
		if err != nil {
			return stepErr(i, err)
		}
		if (height >= 0 && h != height) || (width >= 0 && w != width) {
			return stepErr(i, errors.Errorf("observation/image is %dx%d, expected %dx%d", h, w, height, width))
		}

		if step.IsFirst != (i == 0) {
			return stepErr(i, errors.Errorf("is_first is %v", step.IsFirst))
		}
		if step.IsLast != (i == n-1) {
			return stepErr(i, errors.Errorf("is_last is %v", step.IsLast))
		}
		if math.IsNaN(float64(step.Reward)) || math.IsNaN(float64(step.Discount)) {
			return stepErr(i, errors.Errorf("reward or discount is NaN"))
		}
	}
	return nil
}

func checkLen(name string, v []float32, want int) error {
	if want >= 0 && len(v) != want {
		return errors.Errorf("%s has %d values, expected %d", name, len(v), want)
	}
	return nil
}

func stepErr(i int, err error) error {
	return errors.Wrapf(err, "step %d", i)
}
