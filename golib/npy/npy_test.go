package npy

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	h, err := parseHeader("{'descr': '<f8', 'fortran_order': False, 'shape': (3, 4), }   \n")
	require.NoError(t, err)
	assert.Equal(t, Float64, h.DType)
	assert.Equal(t, []int{3, 4}, h.Shape)
	assert.False(t, h.Fortran)
	assert.Equal(t, 12, h.Len())

	h, err = parseHeader(`{"descr": "|O", "fortran_order": False, "shape": (2L,)}`)
	require.NoError(t, err)
	assert.Equal(t, Object, h.DType.Kind)
	assert.Equal(t, []int{2}, h.Shape)

	_, err = parseHeader("{'descr': [('x', '<f4')], 'fortran_order': False, 'shape': (1,), }")
	assert.Error(t, err)
}

func TestHeaderAlignment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, Header{DType: Uint8, Shape: []int{480, 640, 3}}))
	assert.Equal(t, 0, buf.Len()%64)
	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])

	h, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int{480, 640, 3}, h.Shape)
	assert.Equal(t, "|u1", h.DType.String())
}

func TestParseDType(t *testing.T) {
	for descr, want := range map[string]DType{
		"<f4": Float32,
		"|u1": Uint8,
		"|b1": Bool8,
		"<i8": Int64,
		">f8": {ByteOrder: '>', Kind: Float, ItemSize: 8},
		"O8":  {ByteOrder: '|', Kind: Object, ItemSize: 8},
	} {
		got, err := ParseDType(descr)
		require.NoError(t, err, descr)
		assert.Equal(t, want, got, descr)
	}

	_, err := ParseDType("<U10")
	assert.Error(t, err)
	_, err = ParseDType("<f3")
	assert.Error(t, err)
}

func TestNumericRoundTrip(t *testing.T) {
	arr, err := NewArray([]float64{0.5, -1, 2.25, 3, 4, 5}, 2, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, arr))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, got.Shape)
	assert.Equal(t, []float64{0.5, -1, 2.25, 3, 4, 5}, got.Data)

	f, err := got.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2.25, 3, 4, 5}, f)
}

func TestBigEndian(t *testing.T) {
	var buf bytes.Buffer
	dt := DType{ByteOrder: '>', Kind: Int, ItemSize: 2}
	require.NoError(t, WriteHeader(&buf, Header{DType: dt, Shape: []int{2}}))
	buf.Write([]byte{0x01, 0x00, 0xff, 0xfe})

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int16{256, -2}, got.Data)
}

func TestHalfFloat(t *testing.T) {
	assert.Equal(t, float32(1), halfToFloat32(0x3c00))
	assert.Equal(t, float32(-2), halfToFloat32(0xc000))
	assert.Equal(t, float32(0.5), halfToFloat32(0x3800))
	assert.Equal(t, float32(5.9604645e-08), halfToFloat32(0x0001))
}

func step(i int, terminal interface{}) map[string]interface{} {
	image, _ := NewArray([]uint8{
		10, 20, 30, 11, 21, 31,
		12, 22, 32, uint8(i), 23, 33,
	}, 2, 2, 3)
	state, _ := NewArray(make([]float64, 12))
	state.Data.([]float64)[1] = float64(i) / 10
	action, _ := NewArray([]float64{1, 2, 3, 4, 5, 6, float64(i)})
	return map[string]interface{}{
		"image":       image,
		"state":       state,
		"action":      action,
		"is_terminal": terminal,
	}
}

func TestObjectRoundTrip(t *testing.T) {
	steps := []map[string]interface{}{
		step(0, false),
		step(1, Scalar{DType: Bool8, Value: false}),
		step(2, Scalar{DType: Bool8, Value: true}),
	}

	path := filepath.Join(t.TempDir(), "episode_0.npy")
	w := &bytes.Buffer{}
	require.NoError(t, WriteObjects(w, steps))
	require.NoError(t, WriteFile(path, &Array{DType: ObjectT, Shape: []int{3}, Data: []interface{}{steps[0], steps[1], steps[2]}}))

	for _, load := range []func() (*Array, error){
		func() (*Array, error) { return Read(w) },
		func() (*Array, error) { return ReadFile(path) },
	} {
		arr, err := load()
		require.NoError(t, err)
		objs, err := arr.Objects()
		require.NoError(t, err)
		require.Len(t, objs, 3)

		var terminals []bool
		for i, obj := range objs {
			m, ok := obj.(map[string]interface{})
			require.True(t, ok)

			image := m["image"].(*Array)
			assert.Equal(t, []int{2, 2, 3}, image.Shape)
			px, err := image.Uint8s()
			require.NoError(t, err)
			assert.Equal(t, uint8(i), px[9])

			state, err := AsFloat32s(m["state"])
			require.NoError(t, err)
			assert.Len(t, state, 12)
			assert.InDelta(t, float32(i)/10, state[1], 1e-6)

			action, err := AsFloat32s(m["action"])
			require.NoError(t, err)
			assert.Equal(t, float32(i), action[6])

			term, err := AsBool(m["is_terminal"])
			require.NoError(t, err)
			terminals = append(terminals, term)
		}
		assert.Equal(t, []bool{false, false, true}, terminals)
	}
}

func TestReadErrors(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not an npy file")))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, Header{DType: Float32, Shape: []int{4}}))
	buf.Write([]byte{0, 0, 0, 0})
	_, err = Read(&buf)
	assert.Error(t, err)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.npy"))
	assert.Error(t, err)
}

func TestAsBool(t *testing.T) {
	for _, v := range []interface{}{true, 1, int64(2), uint64(1), 1.0} {
		b, err := AsBool(v)
		require.NoError(t, err)
		assert.True(t, b)
	}
	one, _ := NewArray([]bool{true})
	b, err := AsBool(one)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = AsBool("yes")
	assert.Error(t, err)
}

// testdata/episode_cpython.npy is pickled by CPython (see make_episode_cpython.py), so it
// carries memoized globals and dtypes that WriteObjects never emits.
func TestReadCPythonEpisode(t *testing.T) {
	arr, err := ReadFile(filepath.Join("testdata", "episode_cpython.npy"))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, arr.Shape)

	objs, err := arr.Objects()
	require.NoError(t, err)
	require.Len(t, objs, 3)

	var terminals []bool
	for i, obj := range objs {
		m, ok := obj.(map[string]interface{})
		require.True(t, ok, "step %d is %T", i, obj)

		image := m["image"].(*Array)
		assert.Equal(t, []int{1, 2, 3}, image.Shape)
		assert.Equal(t, Uint8, image.DType)
		px, err := image.Uint8s()
		require.NoError(t, err)
		assert.Equal(t, []uint8{uint8(i), uint8(i + 1), uint8(i + 2), 10, 20, 30}, px)

		state := m["state"].(*Array)
		assert.Equal(t, Float32, state.DType)
		sv, err := AsFloat32s(state)
		require.NoError(t, err)
		require.Len(t, sv, 12)
		assert.InDelta(t, float32(i)/10, sv[1], 1e-6)

		action := m["action"].(*Array)
		assert.Equal(t, Float64, action.DType)
		av, err := AsFloat32s(action)
		require.NoError(t, err)
		require.Len(t, av, 7)
		assert.Equal(t, float32(i), av[0])
		assert.Equal(t, float32(i)+0.5, av[6])

		term, err := AsBool(m["is_terminal"])
		require.NoError(t, err)
		terminals = append(terminals, term)
	}
	assert.Equal(t, []bool{false, false, true}, terminals)
}
