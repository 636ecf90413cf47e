package rlds

// Observation recorded at a step. Image is a PNG encoded RGB frame.
type Observation struct {
	Image []byte    `json:"image"`
	State []float32 `json:"state"`
}

// Step in an episode
type Step struct {
	Observation Observation `json:"observation"`
	Action      []float32   `json:"action"`
	Discount    float32     `json:"discount"`
	Reward      float32     `json:"reward"`

	IsFirst    bool `json:"is_first"`
	IsLast     bool `json:"is_last"`
	IsTerminal bool `json:"is_terminal"`

	LanguageInstruction string    `json:"language_instruction"`
	LanguageEmbedding   []float32 `json:"language_embedding"`
}

// EpisodeMetadata describes where an episode came from
type EpisodeMetadata struct {
	FilePath string `json:"file_path"`
}

// Episode is an ordered sequence of steps
type Episode struct {
	Steps    []Step          `json:"steps"`
	Metadata EpisodeMetadata `json:"episode_metadata"`
}

// SampleTag implements pipeline.Sample
func (*Episode) SampleTag() {}

// Len is the number of steps
func (e *Episode) Len() int {
	return len(e.Steps)
}
