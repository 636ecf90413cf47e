package npy

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Kind is the numpy type character of a dtype
type Kind byte

// Supported kinds.
const (
	Bool    Kind = 'b'
	Int     Kind = 'i'
	Uint    Kind = 'u'
	Float   Kind = 'f'
	Object  Kind = 'O'
	unknown Kind = 0
)

// DType describes the element type of an array.
type DType struct {
	// ByteOrder is one of '<', '>' or '|' (not applicable)
	ByteOrder byte
	Kind      Kind
	ItemSize  int
}

// Common dtypes.
var (
	Uint8   = DType{ByteOrder: '|', Kind: Uint, ItemSize: 1}
	Bool8   = DType{ByteOrder: '|', Kind: Bool, ItemSize: 1}
	Float32 = DType{ByteOrder: '<', Kind: Float, ItemSize: 4}
	Float64 = DType{ByteOrder: '<', Kind: Float, ItemSize: 8}
	Int64   = DType{ByteOrder: '<', Kind: Int, ItemSize: 8}
	ObjectT = DType{ByteOrder: '|', Kind: Object, ItemSize: 8}
)

// ParseDType parses a numpy type string such as "<f4", "|u1", "b1" or "|O".
func ParseDType(descr string) (DType, error) {
	if descr == "" {
		return DType{}, fmt.Errorf("empty dtype")
	}

	dt := DType{ByteOrder: '|'}
	switch descr[0] {
	case '<', '>', '|', '=':
		dt.ByteOrder = descr[0]
		descr = descr[1:]
	}
	if dt.ByteOrder == '=' {
		dt.ByteOrder = '<'
	}
	if descr == "" {
		return DType{}, fmt.Errorf("dtype has no type character")
	}

	dt.Kind = Kind(descr[0])
	size := descr[1:]
	switch dt.Kind {
	case Object:
		dt.ItemSize = 8
		return dt, nil
	case Bool, Int, Uint, Float:
	case '?':
		dt.Kind, dt.ItemSize = Bool, 1
		return dt, nil
	default:
		return DType{}, fmt.Errorf("unsupported dtype kind %q", string(dt.Kind))
	}

	n, err := strconv.Atoi(size)
	if err != nil {
		return DType{}, fmt.Errorf("invalid dtype size %q", size)
	}
	dt.ItemSize = n
	if !dt.valid() {
		return DType{}, fmt.Errorf("unsupported dtype %s%d", string(dt.Kind), n)
	}
	if n == 1 {
		dt.ByteOrder = '|'
	}
	return dt, nil
}

func (d DType) valid() bool {
	switch d.Kind {
	case Bool:
		return d.ItemSize == 1
	case Int, Uint:
		return d.ItemSize == 1 || d.ItemSize == 2 || d.ItemSize == 4 || d.ItemSize == 8
	case Float:
		return d.ItemSize == 2 || d.ItemSize == 4 || d.ItemSize == 8
	case Object:
		return true
	}
	return false
}

// String renders the dtype the way numpy writes it into .npy headers
func (d DType) String() string {
	if d.Kind == Object {
		return "|O"
	}
	order := d.ByteOrder
	if order == 0 {
		order = '<'
	}
	if d.ItemSize == 1 {
		order = '|'
	}
	return fmt.Sprintf("%c%c%d", order, d.Kind, d.ItemSize)
}

// name is the pickled dtype constructor argument, e.g. "f4" or "O8"
func (d DType) name() string {
	return fmt.Sprintf("%c%d", d.Kind, d.ItemSize)
}

func (d DType) order() binary.ByteOrder {
	if d.ByteOrder == '>' {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
