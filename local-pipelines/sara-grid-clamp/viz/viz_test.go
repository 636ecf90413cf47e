package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEpisodes struct {
	names  []string
	frames [][]frame
	errs   []error
}

func (f fakeEpisodes) Len() int          { return len(f.names) }
func (f fakeEpisodes) Name(i int) string { return f.names[i] }
func (f fakeEpisodes) Load(i int) ([]frame, error) {
	if f.errs != nil && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.frames[i], nil
}

func testFrames(terminals ...bool) []frame {
	var frames []frame
	for i, t := range terminals {
		frames = append(frames, frame{
			Image:      image.NewNRGBA(image.Rect(0, 0, 4, 2)),
			State:      []float32{0, float32(i) / 4, 0},
			IsTerminal: t,
		})
	}
	return frames
}

func testEpisodes() fakeEpisodes {
	return fakeEpisodes{
		names:  []string{"episode_0.npy", "episode_1.npy"},
		frames: [][]frame{testFrames(false, false, true), testFrames(false, false)},
	}
}

func stubRender(img image.Image, width int) (string, error) {
	return "<frame>", nil
}

func TestStepLine(t *testing.T) {
	f := frame{State: []float32{1, 0.25}, IsTerminal: true}
	assert.Equal(t, "Step: 3, x : 0.25, Terminal : true", stepLine(3, f))
	assert.Equal(t, "Step: 0, x : 0, Terminal : false", stepLine(0, frame{}))
}

func TestPlainViewer(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader(strings.Repeat("\n", 5))
	require.NoError(t, newPlainViewer(testEpisodes(), in, &out, stubRender, 40).Run())

	s := out.String()
	assert.Equal(t, 5, strings.Count(s, "<frame>"))
	assert.Contains(t, s, "== episode_0.npy (3 steps)")
	assert.Contains(t, s, "Step: 2, x : 0.5, Terminal : true")
	assert.Contains(t, s, "Step: 1, x : 0.25, Terminal : false")
	assert.Contains(t, s, "1 of 2 episodes end in a terminal step")
}

func TestPlainViewerStopsOnClosedInput(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newPlainViewer(testEpisodes(), strings.NewReader("\n"), &out, nil, 40).Run())

	s := out.String()
	assert.Contains(t, s, "Step: 1")
	assert.NotContains(t, s, "Step: 2")
	assert.NotContains(t, s, "episode_1.npy")
}

func TestPlainViewerStopsOnError(t *testing.T) {
	eps := testEpisodes()
	eps.errs = []error{nil, errors.New("truncated file")}

	var out bytes.Buffer
	err := newPlainViewer(eps, strings.NewReader(strings.Repeat("\n", 5)), &out, nil, 40).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "episode_1.npy")
	assert.Contains(t, err.Error(), "truncated file")
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, keys ...string) model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(model)
	}
	return m
}

func TestModelNavigation(t *testing.T) {
	m := newModel(testEpisodes(), stubRender)
	assert.Contains(t, m.View(), "Step: 0")
	assert.Contains(t, m.View(), "<frame>")

	m = press(t, m, "enter", "right")
	assert.Equal(t, 2, m.step)
	assert.Contains(t, m.View(), "Terminal : true")
	assert.Contains(t, m.View(), "terminal")

	// stepping past the last frame moves to the next episode
	m = press(t, m, "enter")
	assert.Equal(t, 1, m.episode)
	assert.Equal(t, 0, m.step)
	assert.Contains(t, m.View(), "episode_1.npy (2/2)")

	m = press(t, m, "left", "enter", "enter", "enter")
	assert.Equal(t, 1, m.episode)
	assert.Equal(t, 1, m.step)

	m = press(t, m, "p")
	assert.Equal(t, 0, m.episode)
	assert.Equal(t, 0, m.step)
	m = press(t, m, "p", "left")
	assert.Equal(t, 0, m.episode)
	assert.Equal(t, 0, m.step)

	m = press(t, m, "n", "n")
	assert.Equal(t, 1, m.episode)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModelShowsLoadErrors(t *testing.T) {
	eps := testEpisodes()
	eps.errs = []error{errors.New("bad header"), nil}

	m := newModel(eps, stubRender)
	assert.Contains(t, m.View(), "bad header")

	m = press(t, m, "n")
	assert.NoError(t, m.err)
	assert.Contains(t, m.View(), "Step: 0")
}

func TestASCIISize(t *testing.T) {
	w, h := asciiSize(image.Rect(0, 0, 640, 480), 80)
	assert.Equal(t, 80, w)
	assert.Equal(t, 30, h)

	w, h = asciiSize(image.Rect(0, 0, 3, 2), 80)
	assert.Equal(t, 3, w)
	assert.Equal(t, 1, h)

	w, _ = asciiSize(image.Rect(0, 0, 640, 480), 0)
	assert.Equal(t, 0, w)
}

func TestASCIIRenderer(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.White)
		}
	}
	out, err := newASCIIRenderer(false, false)(img, 16)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestRawEpisodes(t *testing.T) {
	dir, err := ioutil.TempDir("", "viz")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	for i, terminals := range [][]bool{{false, true}, {false}} {
		var steps []map[string]interface{}
		for j, terminal := range terminals {
			// blue first
			img, err := npy.NewArray([]uint8{10, 20, 30}, 1, 1, 3)
			require.NoError(t, err)
			state, err := npy.NewArray([]float64{0, float64(j) + 0.5})
			require.NoError(t, err)
			action, err := npy.NewArray([]float64{1})
			require.NoError(t, err)
			steps = append(steps, map[string]interface{}{
				"image":       img,
				"state":       state,
				"action":      action,
				"is_terminal": terminal,
			})
		}
		var buf bytes.Buffer
		require.NoError(t, npy.WriteObjects(&buf, steps))
		name := filepath.Join(dir, fmt.Sprintf("episode_%d.npy", i))
		require.NoError(t, ioutil.WriteFile(name, buf.Bytes(), 0644))
	}

	eps, err := newRawEpisodes(dir)
	require.NoError(t, err)
	require.Equal(t, 2, eps.Len())
	assert.Equal(t, "episode_0.npy", eps.Name(0))

	frames, err := eps.Load(0)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, float32(1.5), frames[1].x())
	assert.True(t, frames[1].IsTerminal)
	r, g, b, _ := frames[0].Image.At(0, 0).RGBA()
	assert.Equal(t, []uint32{30, 20, 10}, []uint32{r >> 8, g >> 8, b >> 8})

	single, err := newRawEpisodes(filepath.Join(dir, "episode_1.npy"))
	require.NoError(t, err)
	assert.Equal(t, 1, single.Len())

	_, err = newRawEpisodes(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
