package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxBitsWidth is the widest bits type the value model supports.
const MaxBitsWidth = 64

// Type is a sealed interface describing the shape of a Value.
// Only BitsType, TupleType, ArrayType and TokenType implement it.
type Type interface {
	irType() // Sealed
	String() string
}

// BitsType is an unsigned bit vector of a fixed width.
type BitsType struct {
	Width int
}

func (BitsType) irType() {}

func (t BitsType) String() string {
	return fmt.Sprintf("bits[%d]", t.Width)
}

// TupleType is a fixed-length heterogeneous sequence of types.
type TupleType struct {
	Elems []Type
}

func (TupleType) irType() {}

func (t TupleType) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ArrayType is a fixed-length homogeneous sequence.
type ArrayType struct {
	Elem Type
	Size int
}

func (ArrayType) irType() {}

func (t ArrayType) String() string {
	return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Size)
}

// TokenType is the type of ordering tokens.
type TokenType struct{}

func (TokenType) irType() {}

func (TokenType) String() string {
	return "token"
}

// TypesEqual reports whether two types are structurally identical.
func TypesEqual(a, b Type) bool {
	switch at := a.(type) {
	case BitsType:
		bt, ok := b.(BitsType)
		return ok && at.Width == bt.Width
	case TupleType:
		bt, ok := b.(TupleType)
		if !ok || len(at.Elems) != len(bt.Elems) {
			return false
		}
		for i := range at.Elems {
			if !TypesEqual(at.Elems[i], bt.Elems[i]) {
				return false
			}
		}
		return true
	case ArrayType:
		bt, ok := b.(ArrayType)
		return ok && at.Size == bt.Size && TypesEqual(at.Elem, bt.Elem)
	case TokenType:
		_, ok := b.(TokenType)
		return ok
	default:
		return false
	}
}

// BitCount returns the flattened number of bits of a type.
// Tokens carry no data and count as zero bits.
func BitCount(t Type) int {
	switch tt := t.(type) {
	case BitsType:
		return tt.Width
	case TupleType:
		n := 0
		for _, e := range tt.Elems {
			n += BitCount(e)
		}
		return n
	case ArrayType:
		return tt.Size * BitCount(tt.Elem)
	default:
		return 0
	}
}

// ParseType parses the textual form of a type.
//
// Accepted forms:
//
//	bits[32]
//	(bits[32], bits[8])
//	bits[8][4]          array of 4 bits[8]
//	(bits[1], token)[2] array of 2 tuples
//	token
//	()                  empty tuple
func ParseType(s string) (Type, error) {
	p := &typeParser{src: s}
	t, err := p.parseType()
	if err != nil {
		return nil, fmt.Errorf("parse type %q: %w", s, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("parse type %q: unexpected trailing input at offset %d", s, p.pos)
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error.
// Intended for tests and package-level literals.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) consume(prefix string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], prefix) {
		p.pos += len(prefix)
		return true
	}
	return false
}

func (p *typeParser) parseInt() (int, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected integer at offset %d", start)
	}
	return strconv.Atoi(p.src[start:p.pos])
}

func (p *typeParser) parseType() (Type, error) {
	var base Type
	switch {
	case p.consume("bits["):
		w, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		if !p.consume("]") {
			return nil, fmt.Errorf("expected ']' at offset %d", p.pos)
		}
		if w > MaxBitsWidth {
			return nil, fmt.Errorf("bits width %d exceeds maximum of %d", w, MaxBitsWidth)
		}
		base = BitsType{Width: w}
	case p.consume("token"):
		base = TokenType{}
	case p.consume("("):
		var elems []Type
		if !p.consume(")") {
			for {
				e, err := p.parseType()
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
				if p.consume(")") {
					break
				}
				if !p.consume(",") {
					return nil, fmt.Errorf("expected ',' or ')' at offset %d", p.pos)
				}
			}
		}
		base = TupleType{Elems: elems}
	default:
		return nil, fmt.Errorf("unknown type at offset %d", p.pos)
	}

	// Array suffixes bind left to right: bits[8][4][2] is a 2-array of 4-arrays.
	for p.consume("[") {
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		if !p.consume("]") {
			return nil, fmt.Errorf("expected ']' at offset %d", p.pos)
		}
		base = ArrayType{Elem: base, Size: n}
	}
	return base, nil
}
