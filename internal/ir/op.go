package ir

// Op is a sealed interface over the closed set of dataflow node operations.
// Every variant carries exactly the operands it needs; operands are node
// names within the same proc.
type Op interface {
	isOp() // Sealed

	// Kind returns the textual operation name used in network descriptions.
	Kind() string

	// Operands returns referenced node names in a fixed order.
	Operands() []string
}

// Operation names as written in network descriptions.
const (
	OpLiteral    = "literal"
	OpToken      = "token"
	OpState      = "state"
	OpReceive    = "receive"
	OpSend       = "send"
	OpAfterAll   = "after_all"
	OpTuple      = "tuple"
	OpTupleIndex = "tuple_index"
	OpSelect     = "select"
	OpBitSlice   = "bit_slice"
	OpIdentity   = "identity"
)

// BinaryKind names a two-operand bits operation.
type BinaryKind string

const (
	BinAdd BinaryKind = "add"
	BinSub BinaryKind = "sub"
	BinMul BinaryKind = "mul"
	BinAnd BinaryKind = "and"
	BinOr  BinaryKind = "or"
	BinXor BinaryKind = "xor"
	BinShl BinaryKind = "shl"
	BinShr BinaryKind = "shr"
	BinEq  BinaryKind = "eq"
	BinNe  BinaryKind = "ne"
	BinUlt BinaryKind = "ult"
	BinUle BinaryKind = "ule"
	BinUgt BinaryKind = "ugt"
	BinUge BinaryKind = "uge"
)

// BinaryKinds lists every BinaryKind in declaration order.
var BinaryKinds = []BinaryKind{
	BinAdd, BinSub, BinMul, BinAnd, BinOr, BinXor, BinShl, BinShr,
	BinEq, BinNe, BinUlt, BinUle, BinUgt, BinUge,
}

// IsComparison reports whether the operation yields bits[1].
// Equality comparisons accept any operand type; ordering comparisons
// require bits.
func (k BinaryKind) IsComparison() bool {
	switch k {
	case BinEq, BinNe, BinUlt, BinUle, BinUgt, BinUge:
		return true
	}
	return false
}

// UnaryKind names a one-operand bits operation.
type UnaryKind string

const (
	UnNot UnaryKind = "not"
	UnNeg UnaryKind = "neg"
)

// Literal produces a constant value.
type Literal struct {
	Value Value
}

// TokenParam produces the proc's incoming token for the current tick.
type TokenParam struct{}

// StateRead produces the saved value of a state element for the current tick.
type StateRead struct {
	Element string
}

// Receive pops one value from a channel, yielding (token, data), or
// (token, data, valid) when NonBlocking is set. With a Predicate the receive
// only happens when the predicate is true; otherwise data is the zero value.
type Receive struct {
	Channel     string
	Token       string
	Predicate   string // optional
	NonBlocking bool
}

// Send pushes Data onto a channel and yields a token. With a Predicate the
// send only happens when the predicate is true.
type Send struct {
	Channel   string
	Token     string
	Data      string
	Predicate string // optional
}

// AfterAll joins several tokens into one.
type AfterAll struct {
	Tokens []string
}

// MakeTuple builds a tuple from its operands.
type MakeTuple struct {
	Elems []string
}

// TupleIndex extracts one element of a tuple.
type TupleIndex struct {
	Operand string
	Index   int
}

// Binary applies a two-operand operation.
type Binary struct {
	Op  BinaryKind
	LHS string
	RHS string
}

// Unary applies a one-operand operation.
type Unary struct {
	Op      UnaryKind
	Operand string
}

// Select picks Cases[selector]; out-of-range selectors pick Default.
// A bits[1] selector with two cases behaves as an if/else with the false
// case first.
type Select struct {
	Selector string
	Cases    []string
	Default  string // optional
}

// BitSlice extracts Width bits starting at bit Start (LSB = 0).
type BitSlice struct {
	Operand string
	Start   int
	Width   int
}

// Identity forwards its operand unchanged.
type Identity struct {
	Operand string
}

func (Literal) isOp()    {}
func (TokenParam) isOp() {}
func (StateRead) isOp()  {}
func (Receive) isOp()    {}
func (Send) isOp()       {}
func (AfterAll) isOp()   {}
func (MakeTuple) isOp()  {}
func (TupleIndex) isOp() {}
func (Binary) isOp()     {}
func (Unary) isOp()      {}
func (Select) isOp()     {}
func (BitSlice) isOp()   {}
func (Identity) isOp()   {}

func (Literal) Kind() string    { return OpLiteral }
func (TokenParam) Kind() string { return OpToken }
func (StateRead) Kind() string  { return OpState }
func (Receive) Kind() string    { return OpReceive }
func (Send) Kind() string       { return OpSend }
func (AfterAll) Kind() string   { return OpAfterAll }
func (MakeTuple) Kind() string  { return OpTuple }
func (TupleIndex) Kind() string { return OpTupleIndex }
func (b Binary) Kind() string   { return string(b.Op) }
func (u Unary) Kind() string    { return string(u.Op) }
func (Select) Kind() string     { return OpSelect }
func (BitSlice) Kind() string   { return OpBitSlice }
func (Identity) Kind() string   { return OpIdentity }

func (Literal) Operands() []string    { return nil }
func (TokenParam) Operands() []string { return nil }
func (StateRead) Operands() []string  { return nil }

func (r Receive) Operands() []string {
	if r.Predicate != "" {
		return []string{r.Token, r.Predicate}
	}
	return []string{r.Token}
}

func (s Send) Operands() []string {
	if s.Predicate != "" {
		return []string{s.Token, s.Data, s.Predicate}
	}
	return []string{s.Token, s.Data}
}

func (a AfterAll) Operands() []string  { return append([]string(nil), a.Tokens...) }
func (t MakeTuple) Operands() []string { return append([]string(nil), t.Elems...) }
func (t TupleIndex) Operands() []string {
	return []string{t.Operand}
}
func (b Binary) Operands() []string { return []string{b.LHS, b.RHS} }
func (u Unary) Operands() []string  { return []string{u.Operand} }

func (s Select) Operands() []string {
	ops := append([]string{s.Selector}, s.Cases...)
	if s.Default != "" {
		ops = append(ops, s.Default)
	}
	return ops
}

func (b BitSlice) Operands() []string { return []string{b.Operand} }
func (i Identity) Operands() []string { return []string{i.Operand} }

// IsSideEffecting reports whether an op touches a channel queue.
// Side-effecting nodes commit at most once per tick.
func IsSideEffecting(op Op) bool {
	switch op.(type) {
	case Receive, Send:
		return true
	}
	return false
}

// ChannelOf returns the channel referenced by a side-effecting op.
func ChannelOf(op Op) (string, bool) {
	switch o := op.(type) {
	case Receive:
		return o.Channel, true
	case Send:
		return o.Channel, true
	}
	return "", false
}

// describeOp returns a JSON-friendly description of an op, used for
// hashing and for the compile command's output.
func describeOp(op Op) map[string]any {
	d := map[string]any{"op": op.Kind()}
	switch o := op.(type) {
	case Literal:
		d["type"] = TypeOf(o.Value).String()
		d["value"] = ToNative(o.Value)
	case TokenParam:
	case StateRead:
		d["element"] = o.Element
	case Receive:
		d["channel"] = o.Channel
		d["token"] = o.Token
		if o.Predicate != "" {
			d["predicate"] = o.Predicate
		}
		if o.NonBlocking {
			d["non_blocking"] = true
		}
	case Send:
		d["channel"] = o.Channel
		d["token"] = o.Token
		d["data"] = o.Data
		if o.Predicate != "" {
			d["predicate"] = o.Predicate
		}
	case AfterAll:
		d["tokens"] = toAnySlice(o.Tokens)
	case MakeTuple:
		d["operands"] = toAnySlice(o.Elems)
	case TupleIndex:
		d["operand"] = o.Operand
		d["index"] = o.Index
	case Binary:
		d["operands"] = toAnySlice([]string{o.LHS, o.RHS})
	case Unary:
		d["operand"] = o.Operand
	case Select:
		d["selector"] = o.Selector
		d["cases"] = toAnySlice(o.Cases)
		if o.Default != "" {
			d["default"] = o.Default
		}
	case BitSlice:
		d["operand"] = o.Operand
		d["start"] = o.Start
		d["width"] = o.Width
	case Identity:
		d["operand"] = o.Operand
	}
	return d
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
