package npy

import (
	"io"
	"math/big"

	"github.com/dlr-sara/gridclamp/golib/errors"
	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
)

// unpickleArray reads the pickled ndarray numpy writes after an object array header
func unpickleArray(r io.Reader) (*Array, error) {
	u := pickle.NewUnpickler(r)
	u.FindClass = findClass

	obj, err := u.Load()
	if err != nil {
		return nil, errors.Wrapf(err, "unpickling object array")
	}
	v, err := toGo(obj)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(*Array)
	if !ok {
		return nil, errors.Errorf("pickle holds %T, not an ndarray", v)
	}
	return arr, nil
}

func findClass(module, name string) (interface{}, error) {
	switch module + "." + name {
	case "numpy.core.multiarray._reconstruct", "numpy._core.multiarray._reconstruct":
		return reconstructFunc{}, nil
	case "numpy.ndarray":
		return ndarrayClass{}, nil
	case "numpy.dtype":
		return dtypeClass{}, nil
	case "numpy.core.multiarray.scalar", "numpy._core.multiarray.scalar":
		return scalarFunc{}, nil
	case "_codecs.encode":
		return codecsEncode{}, nil
	}
	return nil, errors.Errorf("unsupported pickled global %s.%s", module, name)
}

type ndarrayClass struct{}

func (ndarrayClass) Call(args ...interface{}) (interface{}, error) {
	return &pickledArray{}, nil
}

// reconstructFunc stands in for numpy.core.multiarray._reconstruct(ndarray, (0,), b'b')
type reconstructFunc struct{}

func (reconstructFunc) Call(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.Errorf("_reconstruct called without a class")
	}
	if _, ok := args[0].(ndarrayClass); !ok {
		return nil, errors.Errorf("_reconstruct of unsupported class %T", args[0])
	}
	return &pickledArray{}, nil
}

// pickledArray receives the ndarray state: (version, shape, dtype, is_fortran, data)
type pickledArray struct {
	arr *Array
}

func (p *pickledArray) PySetState(state interface{}) error {
	items, ok := sequence(state)
	if !ok || len(items) != 5 {
		return errors.Errorf("unexpected ndarray state %v", state)
	}

	shapeItems, ok := sequence(items[1])
	if !ok {
		return errors.Errorf("unexpected ndarray shape %v", items[1])
	}
	shape := make([]int, 0, len(shapeItems))
	for _, d := range shapeItems {
		n, ok := d.(int)
		if !ok {
			return errors.Errorf("unexpected ndarray dimension %v", d)
		}
		shape = append(shape, n)
	}

	dt, ok := items[2].(*pickledDType)
	if !ok {
		return errors.Errorf("unexpected ndarray dtype %T", items[2])
	}
	fortran, _ := items[3].(bool)
	if fortran && len(shape) > 1 {
		return errors.Errorf("fortran ordered arrays are not supported")
	}

	arr := &Array{DType: dt.DType, Shape: shape}
	n := arr.Len()
	if dt.Kind == Object {
		objs, ok := sequence(items[4])
		if !ok {
			return errors.Errorf("object ndarray data is %T, not a list", items[4])
		}
		data := make([]interface{}, len(objs))
		for i, o := range objs {
			v, err := toGo(o)
			if err != nil {
				return err
			}
			data[i] = v
		}
		if len(data) != n {
			return errors.Errorf("object ndarray has %d items for shape %v", len(data), shape)
		}
		arr.Data = data
	} else {
		raw, ok := items[4].([]byte)
		if !ok {
			return errors.Errorf("ndarray data is %T, not bytes", items[4])
		}
		data, err := decodeRaw(dt.DType, n, raw)
		if err != nil {
			return err
		}
		arr.Data = data
	}
	p.arr = arr
	return nil
}

type dtypeClass struct{}

// Call handles dtype(name, align, copy), e.g. dtype('f4', False, True)
func (dtypeClass) Call(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.Errorf("dtype called without a name")
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, errors.Errorf("dtype name is %T", args[0])
	}
	dt, err := ParseDType(name)
	if err != nil {
		return nil, err
	}
	return &pickledDType{DType: dt}, nil
}

// pickledDType receives the dtype state: (version, byteorder, subarray, names, fields, elsize, alignment, flags)
type pickledDType struct {
	DType
}

func (d *pickledDType) PySetState(state interface{}) error {
	items, ok := sequence(state)
	if !ok || len(items) < 2 {
		return errors.Errorf("unexpected dtype state %v", state)
	}
	order, ok := items[1].(string)
	if !ok || len(order) != 1 {
		return errors.Errorf("unexpected dtype byte order %v", items[1])
	}
	if len(items) > 3 && items[3] != nil {
		return errors.Errorf("structured dtypes are not supported")
	}
	switch order[0] {
	case '<', '>', '|':
		d.ByteOrder = order[0]
	case '=':
		d.ByteOrder = '<'
	default:
		return errors.Errorf("unexpected dtype byte order %q", order)
	}
	return nil
}

// scalarFunc stands in for numpy.core.multiarray.scalar(dtype, raw)
type scalarFunc struct{}

func (scalarFunc) Call(args ...interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, errors.Errorf("scalar called with %d args", len(args))
	}
	dt, ok := args[0].(*pickledDType)
	if !ok {
		return nil, errors.Errorf("scalar dtype is %T", args[0])
	}
	raw, ok := args[1].([]byte)
	if !ok {
		return nil, errors.Errorf("scalar data is %T", args[1])
	}
	data, err := decodeRaw(dt.DType, 1, raw)
	if err != nil {
		return nil, err
	}
	return scalarValue(data), nil
}

// scalarValue unwraps a one element typed slice into a plain Go value:
// bool, int64, uint64 or float64.
func scalarValue(data interface{}) interface{} {
	switch d := data.(type) {
	case []bool:
		return d[0]
	case []uint8:
		return uint64(d[0])
	case []uint16:
		return uint64(d[0])
	case []uint32:
		return uint64(d[0])
	case []uint64:
		return d[0]
	case []int8:
		return int64(d[0])
	case []int16:
		return int64(d[0])
	case []int32:
		return int64(d[0])
	case []int64:
		return d[0]
	case []float32:
		return float64(d[0])
	case []float64:
		return d[0]
	}
	return nil
}

// codecsEncode handles _codecs.encode(text, 'latin1'), which protocol 2 pickles use for bytes
type codecsEncode struct{}

func (codecsEncode) Call(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.Errorf("_codecs.encode called without text")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, errors.Errorf("_codecs.encode of %T", args[0])
	}
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return nil, errors.Errorf("_codecs.encode: rune %U outside latin1", r)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func sequence(v interface{}) ([]interface{}, bool) {
	switch v := v.(type) {
	case *types.Tuple:
		out := make([]interface{}, v.Len())
		for i := range out {
			out[i] = v.Get(i)
		}
		return out, true
	case *types.List:
		out := make([]interface{}, v.Len())
		for i := range out {
			out[i] = v.Get(i)
		}
		return out, true
	case []interface{}:
		return v, true
	}
	return nil, false
}

// toGo converts unpickled values into plain Go values: dicts with string keys become
// map[string]interface{}, lists and tuples []interface{}, ndarrays *Array.
func toGo(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case *pickledArray:
		if v.arr == nil {
			return nil, errors.Errorf("ndarray was never given its state")
		}
		return v.arr, nil
	case *pickledDType:
		return v.DType, nil
	case *types.Dict:
		return dictToGo(v)
	case *big.Int:
		if v.IsInt64() {
			return int(v.Int64()), nil
		}
		return v, nil
	}

	if items, ok := sequence(v); ok {
		out := make([]interface{}, len(items))
		for i, item := range items {
			conv, err := toGo(item)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	}
	return v, nil
}

func dictToGo(d *types.Dict) (map[string]interface{}, error) {
	keys := d.Keys()
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		key, ok := k.(string)
		if !ok {
			return nil, errors.Errorf("dict key %v is %T, not a string", k, k)
		}
		raw, _ := d.Get(k)
		val, err := toGo(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "converting %s", key)
		}
		out[key] = val
	}
	return out, nil
}
