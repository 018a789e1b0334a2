package db

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// --------------------------------------------------------------------------
// Value Kinds
// --------------------------------------------------------------------------

// Kind is the type tag of a Cell
type Kind uint8

const (
	KindUnset Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindUnset:
		return "unset"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unset":
		return KindUnset, true
	case "bool":
		return KindBool, true
	case "int":
		return KindInt, true
	case "float":
		return KindFloat, true
	case "string":
		return KindString, true
	default:
		return KindUnset, false
	}
}

// --------------------------------------------------------------------------
// Cell
// --------------------------------------------------------------------------

// Cell holds exactly one of: unset, bool, int32, float32 or string.
// The zero value is an unset cell. Cells are immutable values.
type Cell struct {
	kind Kind
	b    bool
	i    int32
	f    float32
	s    string
}

// Unset returns an empty cell
func Unset() Cell { return Cell{} }

func BoolCell(v bool) Cell { return Cell{kind: KindBool, b: v} }
func IntCell(v int32) Cell { return Cell{kind: KindInt, i: v} }
func FloatCell(v float32) Cell { return Cell{kind: KindFloat, f: v} }
func StringCell(v string) Cell { return Cell{kind: KindString, s: v} }

// Kind returns the type tag of the cell
func (c Cell) Kind() Kind { return c.kind }

// IsUnset reports whether the cell holds no value
func (c Cell) IsUnset() bool { return c.kind == KindUnset }

// The raw payload accessors return the zero value for other kinds.

func (c Cell) BoolValue() bool { return c.b }
func (c Cell) IntValue() int32 { return c.i }
func (c Cell) FloatValue() float32 { return c.f }
func (c Cell) StringValue() string { return c.s }

// String returns the string coercion of the cell, unset cells become "".
func (c Cell) String() string {
	if c.kind == KindUnset {
		return ""
	}
	s, _ := c.Convert(KindString)
	return s.s
}

// GoString is used by %#v and makes test failures readable
func (c Cell) GoString() string {
	return fmt.Sprintf("db.Cell{%s:%q}", c.kind, c.String())
}

// Scalar lists the Go types a Cell can carry
type Scalar interface {
	bool | int32 | float32 | string
}

// CellOf wraps a Go value into a Cell
func CellOf[T Scalar](v T) Cell {
	switch x := any(v).(type) {
	case bool:
		return BoolCell(x)
	case int32:
		return IntCell(x)
	case float32:
		return FloatCell(x)
	case string:
		return StringCell(x)
	}
	return Cell{}
}

// KindOf returns the Kind that corresponds to T
func KindOf[T Scalar]() Kind {
	var zero T
	return CellOf(zero).kind
}

// As converts the cell to T using the coercion rules of Convert.
// ok is false if the cell is unset or the value cannot be represented as T.
func As[T Scalar](c Cell) (v T, ok bool) {
	converted, ok := c.Convert(KindOf[T]())
	if !ok {
		return v, false
	}
	var out any
	switch converted.kind {
	case KindBool:
		out = converted.b
	case KindInt:
		out = converted.i
	case KindFloat:
		out = converted.f
	case KindString:
		out = converted.s
	default:
		return v, false
	}
	return out.(T), true
}

// --------------------------------------------------------------------------
// Binary Encoding
// --------------------------------------------------------------------------

// AppendBinary appends the encoded cell to buf.
// Layout: kind (1 byte) followed by the payload; strings are length prefixed.
func (c Cell) AppendBinary(buf []byte) []byte {
	buf = append(buf, byte(c.kind))
	switch c.kind {
	case KindUnset:
	case KindBool:
		if c.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindInt:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(c.i))
	case KindFloat:
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(c.f))
	case KindString:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.s)))
		buf = append(buf, c.s...)
	}
	return buf
}

// ReadCell decodes one cell written by AppendBinary
func ReadCell(r io.Reader) (Cell, error) {
	var kind [1]byte
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		return Cell{}, err
	}

	var word [4]byte
	switch Kind(kind[0]) {
	case KindUnset:
		return Cell{}, nil
	case KindBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Cell{}, err
		}
		return BoolCell(b[0] != 0), nil
	case KindInt:
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return Cell{}, err
		}
		return IntCell(int32(binary.LittleEndian.Uint32(word[:]))), nil
	case KindFloat:
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return Cell{}, err
		}
		return FloatCell(math.Float32frombits(binary.LittleEndian.Uint32(word[:]))), nil
	case KindString:
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return Cell{}, err
		}
		s := make([]byte, binary.LittleEndian.Uint32(word[:]))
		if _, err := io.ReadFull(r, s); err != nil {
			return Cell{}, err
		}
		return StringCell(string(s)), nil
	default:
		return Cell{}, fmt.Errorf("invalid cell kind %d", kind[0])
	}
}
