package data

import (
	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/rlds"
)

// Parser turns raw episode files into episodes. Every step carries the same instruction
// and embedding slice.
type Parser struct {
	Instruction string
	Embedding   []float32
}

// Parse loads the file at path and builds its episode
func (p Parser) Parse(path string) (*rlds.Episode, error) {
	raw, err := ReadRaw(path)
	if err != nil {
		return nil, err
	}
	return p.Episode(path, raw)
}

// Episode builds the episode for already loaded steps
func (p Parser) Episode(path string, raw []RawStep) (*rlds.Episode, error) {
	ep := &rlds.Episode{
		Steps:    make([]rlds.Step, 0, len(raw)),
		Metadata: rlds.EpisodeMetadata{FilePath: path},
	}

	n := len(raw)
	for i, r := range raw {
		png, err := rlds.EncodePNG(r.Image)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: step %d", path, i)
		}

		var reward float32
		if r.IsTerminal {
			reward = 1
		}

		ep.Steps = append(ep.Steps, rlds.Step{
			Observation: rlds.Observation{
				Image: png,
				State: r.State,
			},
			Action:     r.Action,
			Discount:   1,
			Reward:     reward,
			IsFirst:    i == 0,
			IsLast:     i == n-1,
			IsTerminal: r.IsTerminal,

			LanguageInstruction: p.Instruction,
			LanguageEmbedding:   p.Embedding,
		})
	}
	return ep, nil
}
