package npy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dlr-sara/gridclamp/golib/errors"
)

const magic = "\x93NUMPY"

// Header is the decoded preamble of a .npy file.
type Header struct {
	DType   DType
	Shape   []int
	Fortran bool
}

// Len is the number of elements described by the header's shape
func (h Header) Len() int {
	return numElements(h.Shape)
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// ReadHeader reads the magic string, version and header dict of a .npy stream,
// leaving r positioned at the start of the array data.
func ReadHeader(r io.Reader) (Header, error) {
	var pre [8]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return Header{}, errors.Wrapf(err, "reading npy magic")
	}
	if string(pre[:6]) != magic {
		return Header{}, errors.Errorf("not an npy file: bad magic %q", pre[:6])
	}

	var hlen int
	switch major := pre[6]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Header{}, errors.Wrapf(err, "reading npy header length")
		}
		hlen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Header{}, errors.Wrapf(err, "reading npy header length")
		}
		hlen = int(n)
	default:
		return Header{}, errors.Errorf("unsupported npy version %d.%d", major, pre[7])
	}

	buf := make([]byte, hlen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, errors.Wrapf(err, "reading npy header")
	}
	return parseHeader(string(buf))
}

func parseHeader(s string) (Header, error) {
	p := &literalParser{s: strings.TrimSpace(s)}
	v, err := p.value()
	if err != nil {
		return Header{}, errors.Wrapf(err, "parsing npy header %q", s)
	}
	dict, ok := v.(map[string]interface{})
	if !ok {
		return Header{}, errors.Errorf("npy header is not a dict: %q", s)
	}

	var h Header
	descr, ok := dict["descr"].(string)
	if !ok {
		return Header{}, errors.Errorf("npy header descr must be a simple type string, got %v", dict["descr"])
	}
	if h.DType, err = ParseDType(descr); err != nil {
		return Header{}, err
	}

	if h.Fortran, ok = dict["fortran_order"].(bool); !ok {
		return Header{}, errors.Errorf("npy header missing fortran_order")
	}

	shape, ok := dict["shape"].([]interface{})
	if !ok {
		return Header{}, errors.Errorf("npy header missing shape")
	}
	for _, d := range shape {
		n, ok := d.(int)
		if !ok || n < 0 {
			return Header{}, errors.Errorf("invalid npy shape %v", shape)
		}
		h.Shape = append(h.Shape, n)
	}
	return h, nil
}

// WriteHeader writes a version 1.0 header (2.0 if it does not fit), padded so the
// data starts at a multiple of 64 bytes.
func WriteHeader(w io.Writer, h Header) error {
	var dict bytes.Buffer
	fmt.Fprintf(&dict, "{'descr': '%s', 'fortran_order': %s, 'shape': %s, }",
		h.DType.String(), pyBool(h.Fortran), shapeLiteral(h.Shape))

	major, prefixLen := byte(1), 10
	if dict.Len()+1+prefixLen >= 1<<16 {
		major, prefixLen = 2, 12
	}
	total := prefixLen + dict.Len() + 1
	pad := (64 - total%64) % 64
	dict.WriteString(strings.Repeat(" ", pad))
	dict.WriteByte('\n')

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(major)
	buf.WriteByte(0)
	if major == 1 {
		binary.Write(&buf, binary.LittleEndian, uint16(dict.Len()))
	} else {
		binary.Write(&buf, binary.LittleEndian, uint32(dict.Len()))
	}
	buf.Write(dict.Bytes())

	_, err := w.Write(buf.Bytes())
	return err
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func shapeLiteral(shape []int) string {
	switch len(shape) {
	case 0:
		return "()"
	case 1:
		return fmt.Sprintf("(%d,)", shape[0])
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// literalParser reads the subset of Python literals numpy uses in headers:
// dicts, tuples, lists, quoted strings, ints, True, False and None.
type literalParser struct {
	s   string
	pos int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.s) && strings.IndexByte(" \t\r\n", p.s[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *literalParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *literalParser) value() (interface{}, error) {
	switch c := p.peek(); {
	case c == '{':
		return p.dict()
	case c == '(':
		return p.sequence('(', ')')
	case c == '[':
		return p.sequence('[', ']')
	case c == '\'' || c == '"':
		return p.str()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.integer()
	case c == 0:
		return nil, fmt.Errorf("unexpected end of literal")
	default:
		return p.word()
	}
}

func (p *literalParser) dict() (interface{}, error) {
	p.pos++
	out := make(map[string]interface{})
	for {
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}
		k, err := p.value()
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("non-string dict key %v", k)
		}
		if p.peek() != ':' {
			return nil, fmt.Errorf("expected ':' at offset %d", p.pos)
		}
		p.pos++
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[key] = v
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, fmt.Errorf("expected ',' or '}' at offset %d", p.pos)
		}
	}
}

func (p *literalParser) sequence(open, close byte) (interface{}, error) {
	p.pos++
	out := []interface{}{}
	for {
		if p.peek() == close {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		switch p.peek() {
		case ',':
			p.pos++
		case close:
		default:
			return nil, fmt.Errorf("expected ',' or %q at offset %d", close, p.pos)
		}
	}
}

func (p *literalParser) str() (interface{}, error) {
	quote := p.s[p.pos]
	end := strings.IndexByte(p.s[p.pos+1:], quote)
	if end < 0 {
		return nil, fmt.Errorf("unterminated string at offset %d", p.pos)
	}
	v := p.s[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	return v, nil
}

func (p *literalParser) integer() (interface{}, error) {
	start := p.pos
	if p.s[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	// python 2 era headers write long dimensions as "3L"
	n, err := strconv.Atoi(p.s[start:p.pos])
	if p.pos < len(p.s) && p.s[p.pos] == 'L' {
		p.pos++
	}
	return n, err
}

func (p *literalParser) word() (interface{}, error) {
	start := p.pos
	for p.pos < len(p.s) && (p.s[p.pos] >= 'A' && p.s[p.pos] <= 'z') {
		p.pos++
	}
	switch w := p.s[start:p.pos]; w {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected token %q at offset %d", w, start)
	}
}
