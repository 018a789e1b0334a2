package db

import (
	"math"
	"strconv"
	"strings"
)

// Convert returns the cell coerced to kind.
//
// Conversions follow a fixed matrix:
//   - bool becomes 0/1 for numbers and "0"/"1" for strings
//   - numbers become bool only if they are exactly 0 or 1
//   - float to int truncates toward zero and fails outside the int32 range
//   - numbers become strings in decimal, floats always with six decimals
//   - strings must parse cleanly as the target type; "true" and "false"
//     (any case) are accepted as 1 and 0 by the numeric targets and
//     "1"/"0" by the bool target
//
// Converting to KindUnset or converting an unset cell always fails.
func (c Cell) Convert(kind Kind) (Cell, bool) {
	if c.kind == KindUnset || kind == KindUnset {
		return Cell{}, false
	}
	if c.kind == kind {
		return c, true
	}

	switch c.kind {
	case KindBool:
		return convertBool(c.b, kind)
	case KindInt:
		return convertInt(c.i, kind)
	case KindFloat:
		return convertFloat(c.f, kind)
	case KindString:
		return convertString(c.s, kind)
	}
	return Cell{}, false
}

func convertBool(v bool, kind Kind) (Cell, bool) {
	var n int32
	if v {
		n = 1
	}
	switch kind {
	case KindInt:
		return IntCell(n), true
	case KindFloat:
		return FloatCell(float32(n)), true
	case KindString:
		return StringCell(strconv.Itoa(int(n))), true
	}
	return Cell{}, false
}

func convertInt(v int32, kind Kind) (Cell, bool) {
	switch kind {
	case KindBool:
		if v != 0 && v != 1 {
			return Cell{}, false
		}
		return BoolCell(v == 1), true
	case KindFloat:
		return FloatCell(float32(v)), true
	case KindString:
		return StringCell(strconv.FormatInt(int64(v), 10)), true
	}
	return Cell{}, false
}

func convertFloat(v float32, kind Kind) (Cell, bool) {
	switch kind {
	case KindBool:
		if v != 0 && v != 1 {
			return Cell{}, false
		}
		return BoolCell(v == 1), true
	case KindInt:
		t := math.Trunc(float64(v))
		if math.IsNaN(t) || t > math.MaxInt32 || t < math.MinInt32 {
			return Cell{}, false
		}
		return IntCell(int32(t)), true
	case KindString:
		return StringCell(strconv.FormatFloat(float64(v), 'f', 6, 32)), true
	}
	return Cell{}, false
}

func convertString(v string, kind Kind) (Cell, bool) {
	switch kind {
	case KindBool:
		switch strings.ToLower(v) {
		case "1", "true":
			return BoolCell(true), true
		case "0", "false":
			return BoolCell(false), true
		}
		return Cell{}, false
	case KindInt:
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			return IntCell(int32(n)), true
		}
		if b, ok := parseBoolWord(v); ok {
			return convertBool(b, KindInt)
		}
		return Cell{}, false
	case KindFloat:
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return FloatCell(float32(f)), true
		}
		if b, ok := parseBoolWord(v); ok {
			return convertBool(b, KindFloat)
		}
		return Cell{}, false
	}
	return Cell{}, false
}

// parseBoolWord only accepts the words, digits are handled by the numeric parsers
func parseBoolWord(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
