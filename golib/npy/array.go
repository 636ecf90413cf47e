package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/fileutil"
)

// Array is an n-dimensional numpy array in C order. Data holds a typed slice:
// []bool, []int8..[]int64, []uint8..[]uint64, []float32 (also for float16),
// []float64, or []interface{} for object arrays.
type Array struct {
	DType   DType
	Shape   []int
	Fortran bool
	Data    interface{}
}

// Len is the number of elements in the array
func (a *Array) Len() int {
	return numElements(a.Shape)
}

// Float32s returns the elements converted to float32, for any numeric dtype.
func (a *Array) Float32s() ([]float32, error) {
	switch d := a.Data.(type) {
	case []float32:
		return append([]float32(nil), d...), nil
	case []float64:
		return convert(d, func(v float64) float32 { return float32(v) }), nil
	case []uint8:
		return convert(d, func(v uint8) float32 { return float32(v) }), nil
	case []uint16:
		return convert(d, func(v uint16) float32 { return float32(v) }), nil
	case []uint32:
		return convert(d, func(v uint32) float32 { return float32(v) }), nil
	case []uint64:
		return convert(d, func(v uint64) float32 { return float32(v) }), nil
	case []int8:
		return convert(d, func(v int8) float32 { return float32(v) }), nil
	case []int16:
		return convert(d, func(v int16) float32 { return float32(v) }), nil
	case []int32:
		return convert(d, func(v int32) float32 { return float32(v) }), nil
	case []int64:
		return convert(d, func(v int64) float32 { return float32(v) }), nil
	case []bool:
		return convert(d, func(v bool) float32 {
			if v {
				return 1
			}
			return 0
		}), nil
	}
	return nil, errors.Errorf("cannot convert %s array to float32", a.DType)
}

// Uint8s returns the raw bytes of a uint8 array
func (a *Array) Uint8s() ([]uint8, error) {
	d, ok := a.Data.([]uint8)
	if !ok {
		return nil, errors.Errorf("expected uint8 array, got %s", a.DType)
	}
	return d, nil
}

// Objects returns the elements of an object array
func (a *Array) Objects() ([]interface{}, error) {
	d, ok := a.Data.([]interface{})
	if !ok {
		return nil, errors.Errorf("expected object array, got %s", a.DType)
	}
	return d, nil
}

func convert[S, D any](src []S, f func(S) D) []D {
	out := make([]D, len(src))
	for i, v := range src {
		out[i] = f(v)
	}
	return out
}

// Read decodes a .npy stream. Object arrays are unpickled.
func Read(r io.Reader) (*Array, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	if h.Fortran && len(h.Shape) > 1 {
		return nil, errors.Errorf("fortran ordered arrays are not supported")
	}

	if h.DType.Kind == Object {
		arr, err := unpickleArray(br)
		if err != nil {
			return nil, err
		}
		if arr.Len() != h.Len() {
			return nil, errors.Errorf("pickled array has %d elements, header declares shape %v", arr.Len(), h.Shape)
		}
		return arr, nil
	}

	raw := make([]byte, h.Len()*h.DType.ItemSize)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, errors.Wrapf(err, "reading %d bytes of %s data", len(raw), h.DType)
	}
	data, err := decodeRaw(h.DType, h.Len(), raw)
	if err != nil {
		return nil, err
	}
	return &Array{DType: h.DType, Shape: h.Shape, Data: data}, nil
}

// ReadFile decodes a local or s3 .npy file
func ReadFile(path string) (arr *Array, err error) {
	r, err := fileutil.NewReader(path)
	if err != nil {
		return nil, err
	}
	defer errors.Defer(&err, r.Close)

	arr, err = Read(r)
	return arr, errors.WrapfOrNil(err, "loading %s", path)
}

func decodeRaw(dt DType, n int, raw []byte) (interface{}, error) {
	if len(raw) != n*dt.ItemSize {
		return nil, errors.Errorf("have %d bytes for %d elements of %s", len(raw), n, dt)
	}

	var data interface{}
	switch {
	case dt.Kind == Bool:
		data = make([]bool, n)
	case dt.Kind == Uint && dt.ItemSize == 1:
		return append([]uint8(nil), raw...), nil
	case dt.Kind == Uint && dt.ItemSize == 2:
		data = make([]uint16, n)
	case dt.Kind == Uint && dt.ItemSize == 4:
		data = make([]uint32, n)
	case dt.Kind == Uint && dt.ItemSize == 8:
		data = make([]uint64, n)
	case dt.Kind == Int && dt.ItemSize == 1:
		data = make([]int8, n)
	case dt.Kind == Int && dt.ItemSize == 2:
		data = make([]int16, n)
	case dt.Kind == Int && dt.ItemSize == 4:
		data = make([]int32, n)
	case dt.Kind == Int && dt.ItemSize == 8:
		data = make([]int64, n)
	case dt.Kind == Float && dt.ItemSize == 2:
		halves := make([]uint16, n)
		if err := binary.Read(bytes.NewReader(raw), dt.order(), halves); err != nil {
			return nil, err
		}
		return convert(halves, halfToFloat32), nil
	case dt.Kind == Float && dt.ItemSize == 4:
		data = make([]float32, n)
	case dt.Kind == Float && dt.ItemSize == 8:
		data = make([]float64, n)
	default:
		return nil, errors.Errorf("cannot decode raw %s data", dt)
	}

	if err := binary.Read(bytes.NewReader(raw), dt.order(), data); err != nil {
		return nil, err
	}
	return data, nil
}

func encodeRaw(dt DType, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, dt.order(), data); err != nil {
		return nil, errors.Wrapf(err, "encoding %s data", dt)
	}
	return buf.Bytes(), nil
}

// halfToFloat32 widens an IEEE 754 binary16 value
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal: renormalize
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x3ff
		return math.Float32frombits(sign | e<<23 | frac<<13)
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
}

// dtypeOf infers the dtype for a typed slice
func dtypeOf(data interface{}) (DType, error) {
	switch data.(type) {
	case []bool:
		return Bool8, nil
	case []uint8:
		return Uint8, nil
	case []uint16:
		return DType{'<', Uint, 2}, nil
	case []uint32:
		return DType{'<', Uint, 4}, nil
	case []uint64:
		return DType{'<', Uint, 8}, nil
	case []int8:
		return DType{'|', Int, 1}, nil
	case []int16:
		return DType{'<', Int, 2}, nil
	case []int32:
		return DType{'<', Int, 4}, nil
	case []int64:
		return Int64, nil
	case []float32:
		return Float32, nil
	case []float64:
		return Float64, nil
	case []interface{}:
		return ObjectT, nil
	}
	return DType{}, fmt.Errorf("unsupported array data %T", data)
}

// NewArray wraps a typed slice with the given shape; a nil shape means 1-D.
func NewArray(data interface{}, shape ...int) (*Array, error) {
	dt, err := dtypeOf(data)
	if err != nil {
		return nil, err
	}
	n := sliceLen(data)
	if shape == nil {
		shape = []int{n}
	}
	if numElements(shape) != n {
		return nil, errors.Errorf("shape %v does not match %d elements", shape, n)
	}
	return &Array{DType: dt, Shape: shape, Data: data}, nil
}

func sliceLen(data interface{}) int {
	switch d := data.(type) {
	case []bool:
		return len(d)
	case []uint8:
		return len(d)
	case []uint16:
		return len(d)
	case []uint32:
		return len(d)
	case []uint64:
		return len(d)
	case []int8:
		return len(d)
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []int64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []interface{}:
		return len(d)
	}
	return 0
}
