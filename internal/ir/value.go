package ir

import (
	"fmt"
	"strings"
)

// Value is a sealed interface representing an immutable typed value.
// Only Bits, Tuple, Array and Token implement this.
type Value interface {
	irValue() // Sealed - only these types implement it
	String() string
}

// Bits is an unsigned bit vector of at most MaxBitsWidth bits.
// The payload is always masked to the width, so two Bits with the same
// width and payload are equal regardless of how they were built.
type Bits struct {
	width int
	v     uint64
}

func (Bits) irValue() {}

// UBits creates a Bits value of the given width from an unsigned payload.
// Bits above the width are discarded.
func UBits(v uint64, width int) Bits {
	if width < 0 || width > MaxBitsWidth {
		panic(fmt.Sprintf("ir: bits width %d out of range [0, %d]", width, MaxBitsWidth))
	}
	return Bits{width: width, v: v & mask(width)}
}

// SBits creates a Bits value of the given width from a signed payload,
// stored in two's complement.
func SBits(v int64, width int) Bits {
	return UBits(uint64(v), width)
}

// Bool creates a bits[1] value.
func Bool(b bool) Bits {
	if b {
		return UBits(1, 1)
	}
	return UBits(0, 1)
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

// Width returns the bit width.
func (b Bits) Width() int { return b.width }

// Uint64 returns the payload as an unsigned integer.
func (b Bits) Uint64() uint64 { return b.v }

// Int64 returns the payload sign-extended from its width.
func (b Bits) Int64() int64 {
	if b.width == 0 {
		return 0
	}
	if b.width >= 64 {
		return int64(b.v)
	}
	shift := uint(64 - b.width)
	return int64(b.v<<shift) >> shift
}

// IsZero reports whether every bit is zero.
func (b Bits) IsZero() bool { return b.v == 0 }

func (b Bits) String() string {
	return fmt.Sprintf("bits[%d]:%d", b.width, b.v)
}

// Tuple is a fixed-length heterogeneous sequence of values.
type Tuple struct {
	elems []Value
}

func (Tuple) irValue() {}

// NewTuple creates a tuple. The element slice is copied.
func NewTuple(elems ...Value) Tuple {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Tuple{elems: cp}
}

// Len returns the number of elements.
func (t Tuple) Len() int { return len(t.elems) }

// At returns the i-th element.
func (t Tuple) At(i int) Value { return t.elems[i] }

// Elements returns a copy of the elements.
func (t Tuple) Elements() []Value {
	cp := make([]Value, len(t.elems))
	copy(cp, t.elems)
	return cp
}

func (t Tuple) String() string {
	return "(" + joinValues(t.elems) + ")"
}

// Array is a fixed-length homogeneous sequence of values.
type Array struct {
	elems []Value
}

func (Array) irValue() {}

// NewArray creates an array. The element slice is copied.
// Returns an error if the elements do not share one type or the array is empty.
func NewArray(elems ...Value) (Array, error) {
	if len(elems) == 0 {
		return Array{}, fmt.Errorf("array must have at least one element")
	}
	first := TypeOf(elems[0])
	for i, e := range elems[1:] {
		if !TypesEqual(first, TypeOf(e)) {
			return Array{}, fmt.Errorf("array element %d has type %s, want %s", i+1, TypeOf(e), first)
		}
	}
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Array{elems: cp}, nil
}

// Len returns the number of elements.
func (a Array) Len() int { return len(a.elems) }

// At returns the i-th element.
func (a Array) At(i int) Value { return a.elems[i] }

// Elements returns a copy of the elements.
func (a Array) Elements() []Value {
	cp := make([]Value, len(a.elems))
	copy(cp, a.elems)
	return cp
}

func (a Array) String() string {
	return "[" + joinValues(a.elems) + "]"
}

// Token is the value carried by ordering tokens. It has no payload.
type Token struct{}

func (Token) irValue() {}

func (Token) String() string { return "token" }

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// Equal reports whether two values are structurally equal, including widths.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Bits:
		bv, ok := b.(Bits)
		return ok && av.width == bv.width && av.v == bv.v
	case Tuple:
		bv, ok := b.(Tuple)
		return ok && equalElems(av.elems, bv.elems)
	case Array:
		bv, ok := b.(Array)
		return ok && equalElems(av.elems, bv.elems)
	case Token:
		_, ok := b.(Token)
		return ok
	default:
		return false
	}
}

func equalElems(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// TypeOf returns the type of a value.
// An empty Array has no element type and reports ArrayType{Size: 0}.
func TypeOf(v Value) Type {
	switch val := v.(type) {
	case Bits:
		return BitsType{Width: val.width}
	case Tuple:
		elems := make([]Type, len(val.elems))
		for i, e := range val.elems {
			elems[i] = TypeOf(e)
		}
		return TupleType{Elems: elems}
	case Array:
		if len(val.elems) == 0 {
			return ArrayType{}
		}
		return ArrayType{Elem: TypeOf(val.elems[0]), Size: len(val.elems)}
	case Token:
		return TokenType{}
	default:
		panic(fmt.Sprintf("ir: unknown value %T", v))
	}
}

// Zero returns the all-zeros value of a type.
func Zero(t Type) Value {
	switch tt := t.(type) {
	case BitsType:
		return UBits(0, tt.Width)
	case TupleType:
		elems := make([]Value, len(tt.Elems))
		for i, e := range tt.Elems {
			elems[i] = Zero(e)
		}
		return Tuple{elems: elems}
	case ArrayType:
		elems := make([]Value, tt.Size)
		for i := range elems {
			elems[i] = Zero(tt.Elem)
		}
		return Array{elems: elems}
	case TokenType:
		return Token{}
	default:
		panic(fmt.Sprintf("ir: unknown type %T", t))
	}
}

// HasType reports whether v is a value of type t.
func HasType(v Value, t Type) bool {
	return TypesEqual(TypeOf(v), t)
}
