package npy

import (
	"github.com/dlr-sara/gridclamp/golib/errors"
)

// AsBool interprets a python bool, a numpy bool scalar, a number or a one element array as a bool
func AsBool(v interface{}) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case uint64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case *Array:
		if v.Len() != 1 {
			return false, errors.Errorf("cannot use %v shaped array as a bool", v.Shape)
		}
		f, err := v.Float32s()
		if err != nil {
			return false, err
		}
		return f[0] != 0, nil
	}
	return false, errors.Errorf("cannot use %T as a bool", v)
}

// AsFloat32s converts a numeric array, or a list of python numbers, to float32
func AsFloat32s(v interface{}) ([]float32, error) {
	switch v := v.(type) {
	case *Array:
		return v.Float32s()
	case []interface{}:
		out := make([]float32, len(v))
		for i, item := range v {
			switch item := item.(type) {
			case float64:
				out[i] = float32(item)
			case int:
				out[i] = float32(item)
			case int64:
				out[i] = float32(item)
			case uint64:
				out[i] = float32(item)
			case bool:
				if item {
					out[i] = 1
				}
			default:
				return nil, errors.Errorf("element %d is %T, not a number", i, item)
			}
		}
		return out, nil
	}
	return nil, errors.Errorf("cannot convert %T to float32 values", v)
}
