package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FromNative converts a decoded YAML, JSON or CUE scalar/list into a Value of
// type t.
//
// Accepted inputs:
//   - bits: int, int64, uint64, json.Number, decimal strings, bool (true = 1)
//   - tuple: []any with one entry per element
//   - array: []any with exactly Size entries
//   - token: nil or the string "token"
//
// Negative integers are stored in two's complement. Integers that do not fit
// the width (unsigned or signed) are rejected rather than truncated.
// Floats are rejected.
func FromNative(t Type, x any) (Value, error) {
	switch tt := t.(type) {
	case BitsType:
		return bitsFromNative(tt.Width, x)
	case TupleType:
		list, ok := x.([]any)
		if !ok {
			return nil, fmt.Errorf("want list for %s, got %T", tt, x)
		}
		if len(list) != len(tt.Elems) {
			return nil, fmt.Errorf("want %d elements for %s, got %d", len(tt.Elems), tt, len(list))
		}
		elems := make([]Value, len(list))
		for i, item := range list {
			v, err := FromNative(tt.Elems[i], item)
			if err != nil {
				return nil, fmt.Errorf("tuple element %d: %w", i, err)
			}
			elems[i] = v
		}
		return Tuple{elems: elems}, nil
	case ArrayType:
		list, ok := x.([]any)
		if !ok {
			return nil, fmt.Errorf("want list for %s, got %T", tt, x)
		}
		if len(list) != tt.Size {
			return nil, fmt.Errorf("want %d elements for %s, got %d", tt.Size, tt, len(list))
		}
		elems := make([]Value, len(list))
		for i, item := range list {
			v, err := FromNative(tt.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			elems[i] = v
		}
		return Array{elems: elems}, nil
	case TokenType:
		if x == nil || x == "token" {
			return Token{}, nil
		}
		return nil, fmt.Errorf("want token, got %v", x)
	default:
		return nil, fmt.Errorf("unsupported type %T", t)
	}
}

func bitsFromNative(width int, x any) (Value, error) {
	switch n := x.(type) {
	case bool:
		if n {
			return checkedUnsigned(1, width)
		}
		return UBits(0, width), nil
	case int:
		return checkedSigned(int64(n), width)
	case int32:
		return checkedSigned(int64(n), width)
	case int64:
		return checkedSigned(n, width)
	case uint:
		return checkedUnsigned(uint64(n), width)
	case uint32:
		return checkedUnsigned(uint64(n), width)
	case uint64:
		return checkedUnsigned(n, width)
	case json.Number:
		return bitsFromString(string(n), width)
	case string:
		return bitsFromString(n, width)
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden: %v", n)
	default:
		return nil, fmt.Errorf("want integer for bits[%d], got %T", width, x)
	}
}

func bitsFromString(s string, width int) (Value, error) {
	if u, err := strconv.ParseUint(s, 0, 64); err == nil {
		return checkedUnsigned(u, width)
	}
	i, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q for bits[%d]", s, width)
	}
	return checkedSigned(i, width)
}

func checkedUnsigned(u uint64, width int) (Value, error) {
	if width < 64 && u > mask(width) {
		return nil, fmt.Errorf("value %d does not fit in bits[%d]", u, width)
	}
	return UBits(u, width), nil
}

func checkedSigned(i int64, width int) (Value, error) {
	if i >= 0 {
		return checkedUnsigned(uint64(i), width)
	}
	if width == 0 || (width < 64 && i < -(int64(1)<<uint(width-1))) {
		return nil, fmt.Errorf("value %d does not fit in bits[%d]", i, width)
	}
	return SBits(i, width), nil
}

// ToNative converts a Value into plain Go data suitable for JSON/YAML output:
// bits become uint64, tuples and arrays become []any, tokens become "token".
func ToNative(v Value) any {
	switch val := v.(type) {
	case Bits:
		return val.v
	case Tuple:
		out := make([]any, len(val.elems))
		for i, e := range val.elems {
			out[i] = ToNative(e)
		}
		return out
	case Array:
		out := make([]any, len(val.elems))
		for i, e := range val.elems {
			out[i] = ToNative(e)
		}
		return out
	case Token:
		return "token"
	default:
		panic(fmt.Sprintf("ir: unknown value %T", v))
	}
}
