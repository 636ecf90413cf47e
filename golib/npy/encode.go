package npy

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/dlr-sara/gridclamp/golib/fileutil"
)

// Scalar is a numpy scalar to be pickled, e.g. Scalar{Bool8, true} for numpy.bool_(True).
// Decoding yields plain Go values instead.
type Scalar struct {
	DType DType
	Value interface{}
}

// Write encodes arr as a .npy stream. Object arrays are pickled with protocol 3;
// their elements may be nil, bool, int, int64, float32, float64, string, []byte,
// []interface{}, map[string]interface{}, Scalar or *Array.
func Write(w io.Writer, arr *Array) error {
	bw := bufio.NewWriter(w)
	h := Header{DType: arr.DType, Shape: arr.Shape}
	if err := WriteHeader(bw, h); err != nil {
		return err
	}

	if arr.DType.Kind == Object {
		p := &pickler{w: bw}
		p.proto()
		p.array(arr)
		p.op(opStop)
		if p.err != nil {
			return p.err
		}
	} else {
		raw, err := encodeRaw(arr.DType, arr.Data)
		if err != nil {
			return err
		}
		if _, err := bw.Write(raw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile encodes arr to a local or s3 path
func WriteFile(path string, arr *Array) (err error) {
	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return err
	}
	defer errors.Defer(&err, w.Close)
	return Write(w, arr)
}

// WriteObjects writes a 1-D object array of dicts, the layout np.save produces for a list of dicts
func WriteObjects(w io.Writer, items []map[string]interface{}) error {
	data := make([]interface{}, len(items))
	for i, item := range items {
		data[i] = item
	}
	return Write(w, &Array{DType: ObjectT, Shape: []int{len(items)}, Data: data})
}

const (
	opProto       = 0x80
	opStop        = '.'
	opGlobal      = 'c'
	opReduce      = 'R'
	opBuild       = 'b'
	opMark        = '('
	opTuple       = 't'
	opEmptyTuple  = ')'
	opTuple1      = 0x85
	opTuple2      = 0x86
	opTuple3      = 0x87
	opEmptyList   = ']'
	opAppends     = 'e'
	opEmptyDict   = '}'
	opSetItems    = 'u'
	opBinUnicode  = 'X'
	opBinBytes    = 'B'
	opShortBytes  = 'C'
	opBinInt      = 'J'
	opBinInt1     = 'K'
	opLong1       = 0x8a
	opBinFloat    = 'G'
	opNewTrue     = 0x88
	opNewFalse    = 0x89
	opNone        = 'N'
	pickleVersion = 3
)

// pickler writes the subset of protocol 3 numpy needs; the first error sticks.
type pickler struct {
	w   *bufio.Writer
	err error
}

func (p *pickler) op(b byte) {
	if p.err == nil {
		p.err = p.w.WriteByte(b)
	}
}

func (p *pickler) raw(b []byte) {
	if p.err == nil {
		_, p.err = p.w.Write(b)
	}
}

func (p *pickler) uint32(n uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	p.raw(b[:])
}

func (p *pickler) proto() {
	p.op(opProto)
	p.op(pickleVersion)
}

func (p *pickler) global(module, name string) {
	p.op(opGlobal)
	p.raw([]byte(module + "\n" + name + "\n"))
}

func (p *pickler) str(s string) {
	p.op(opBinUnicode)
	p.uint32(uint32(len(s)))
	p.raw([]byte(s))
}

func (p *pickler) bytes(b []byte) {
	if len(b) < 256 {
		p.op(opShortBytes)
		p.op(byte(len(b)))
	} else {
		p.op(opBinBytes)
		p.uint32(uint32(len(b)))
	}
	p.raw(b)
}

func (p *pickler) int(n int64) {
	switch {
	case n >= 0 && n < 256:
		p.op(opBinInt1)
		p.op(byte(n))
	case n >= math.MinInt32 && n <= math.MaxInt32:
		p.op(opBinInt)
		p.uint32(uint32(int32(n)))
	default:
		p.op(opLong1)
		p.op(8)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(n))
		p.raw(b[:])
	}
}

func (p *pickler) float(f float64) {
	p.op(opBinFloat)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
	p.raw(b[:])
}

func (p *pickler) bool(b bool) {
	if b {
		p.op(opNewTrue)
	} else {
		p.op(opNewFalse)
	}
}

// tuple writes each item followed by the matching tuple opcode
func (p *pickler) tuple(items ...func()) {
	switch len(items) {
	case 0:
		p.op(opEmptyTuple)
		return
	case 1, 2, 3:
	default:
		p.op(opMark)
	}
	for _, item := range items {
		item()
	}
	switch len(items) {
	case 1:
		p.op(opTuple1)
	case 2:
		p.op(opTuple2)
	case 3:
		p.op(opTuple3)
	default:
		p.op(opTuple)
	}
}

func (p *pickler) dtype(dt DType) {
	p.global("numpy", "dtype")
	p.tuple(
		func() { p.str(dt.name()) },
		func() { p.bool(false) },
		func() { p.bool(true) },
	)
	p.op(opReduce)

	order := dt.ByteOrder
	if order == 0 || dt.ItemSize == 1 || dt.Kind == Object {
		order = '|'
	}
	flags := int64(0)
	if dt.Kind == Object {
		flags = 63
	}
	p.tuple(
		func() { p.int(3) },
		func() { p.str(string(order)) },
		func() { p.op(opNone) },
		func() { p.op(opNone) },
		func() { p.op(opNone) },
		func() { p.int(-1) },
		func() { p.int(-1) },
		func() { p.int(flags) },
	)
	p.op(opBuild)
}

func (p *pickler) array(arr *Array) {
	p.global("numpy.core.multiarray", "_reconstruct")
	p.tuple(
		func() { p.global("numpy", "ndarray") },
		func() { p.tuple(func() { p.int(0) }) },
		func() { p.bytes([]byte("b")) },
	)
	p.op(opReduce)

	shape := make([]func(), len(arr.Shape))
	for i, d := range arr.Shape {
		d := d
		shape[i] = func() { p.int(int64(d)) }
	}
	p.tuple(
		func() { p.int(1) },
		func() { p.tuple(shape...) },
		func() { p.dtype(arr.DType) },
		func() { p.bool(false) },
		func() {
			if arr.DType.Kind == Object {
				items, _ := arr.Data.([]interface{})
				p.list(items)
				return
			}
			raw, err := encodeRaw(arr.DType, arr.Data)
			if err != nil && p.err == nil {
				p.err = err
			}
			p.bytes(raw)
		},
	)
	p.op(opBuild)
}

func (p *pickler) list(items []interface{}) {
	p.op(opEmptyList)
	if len(items) == 0 {
		return
	}
	p.op(opMark)
	for _, item := range items {
		p.value(item)
	}
	p.op(opAppends)
}

func (p *pickler) dict(m map[string]interface{}) {
	p.op(opEmptyDict)
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p.op(opMark)
	for _, k := range keys {
		p.str(k)
		p.value(m[k])
	}
	p.op(opSetItems)
}

func (p *pickler) scalar(s Scalar) {
	data, err := scalarSlice(s)
	if err != nil {
		if p.err == nil {
			p.err = err
		}
		return
	}
	raw, err := encodeRaw(s.DType, data)
	if err != nil && p.err == nil {
		p.err = err
	}
	p.global("numpy.core.multiarray", "scalar")
	p.tuple(
		func() { p.dtype(s.DType) },
		func() { p.bytes(raw) },
	)
	p.op(opReduce)
}

func scalarSlice(s Scalar) (interface{}, error) {
	switch v := s.Value.(type) {
	case bool:
		if s.DType.Kind == Bool {
			return []bool{v}, nil
		}
	case float64:
		switch {
		case s.DType.Kind == Float && s.DType.ItemSize == 4:
			return []float32{float32(v)}, nil
		case s.DType.Kind == Float && s.DType.ItemSize == 8:
			return []float64{v}, nil
		}
	case int64:
		switch {
		case s.DType.Kind == Int && s.DType.ItemSize == 8:
			return []int64{v}, nil
		case s.DType.Kind == Int && s.DType.ItemSize == 4:
			return []int32{int32(v)}, nil
		}
	}
	return nil, errors.Errorf("cannot pickle %T as a %s scalar", s.Value, s.DType)
}

func (p *pickler) value(v interface{}) {
	switch v := v.(type) {
	case nil:
		p.op(opNone)
	case bool:
		p.bool(v)
	case int:
		p.int(int64(v))
	case int64:
		p.int(v)
	case float32:
		p.float(float64(v))
	case float64:
		p.float(v)
	case string:
		p.str(v)
	case []byte:
		p.bytes(v)
	case []interface{}:
		p.list(v)
	case map[string]interface{}:
		p.dict(v)
	case Scalar:
		p.scalar(v)
	case *Array:
		p.array(v)
	default:
		if p.err == nil {
			p.err = errors.Errorf("cannot pickle %T", v)
		}
	}
}
