package ir

import (
	"errors"
	"fmt"
)

// ProcBuilder assembles a Proc node by node.
//
// Helper methods return the name of the node they add so results can be fed
// into later calls. Unnamed helpers generate names of the form "<kind>.<n>".
// Errors are accumulated and reported by Build, so call chains do not need
// intermediate checks:
//
//	pb := ir.NewProcBuilder("iota")
//	tok := pb.TokenParam("tok")
//	st := pb.StateElement("st", ir.UBits(5, 32))
//	snd := pb.Send("out", tok, st)
//	next := pb.Add(st, pb.Literal(ir.UBits(10, 32)))
//	proc, err := pb.Build(snd, next)
type ProcBuilder struct {
	proc  *Proc
	names map[string]bool
	seq   int
	errs  []error
}

// NewProcBuilder creates a builder for a proc with the given name.
func NewProcBuilder(name string) *ProcBuilder {
	return &ProcBuilder{
		proc:  &Proc{Name: name},
		names: make(map[string]bool),
	}
}

// Node adds a node with an explicit name and returns the name.
func (b *ProcBuilder) Node(name string, op Op) string {
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("proc %s: node name must be non-empty", b.proc.Name))
		return name
	}
	if b.names[name] {
		b.errs = append(b.errs, fmt.Errorf("proc %s: duplicate node %q", b.proc.Name, name))
		return name
	}
	b.names[name] = true
	b.proc.Nodes = append(b.proc.Nodes, Node{Name: name, Op: op})
	return name
}

func (b *ProcBuilder) auto(op Op) string {
	b.seq++
	name := fmt.Sprintf("%s.%d", op.Kind(), b.seq)
	for b.names[name] {
		b.seq++
		name = fmt.Sprintf("%s.%d", op.Kind(), b.seq)
	}
	return b.Node(name, op)
}

// DeclareState declares a state element without adding a read node.
// Used by front ends that name their state-read nodes explicitly.
func (b *ProcBuilder) DeclareState(name string, t Type, init Value) {
	for _, s := range b.proc.State {
		if s.Name == name {
			b.errs = append(b.errs, fmt.Errorf("proc %s: duplicate state element %q", b.proc.Name, name))
			return
		}
	}
	b.proc.State = append(b.proc.State, StateElement{Name: name, Type: t, Init: init})
}

// StateElement declares a state element initialised to init and adds a
// read node with the same name.
func (b *ProcBuilder) StateElement(name string, init Value) string {
	b.DeclareState(name, TypeOf(init), init)
	return b.Node(name, StateRead{Element: name})
}

// TokenParam adds the token parameter node.
func (b *ProcBuilder) TokenParam(name string) string {
	return b.Node(name, TokenParam{})
}

// Literal adds a constant.
func (b *ProcBuilder) Literal(v Value) string {
	return b.auto(Literal{Value: v})
}

// Receive adds a blocking receive yielding (token, data).
func (b *ProcBuilder) Receive(channel, token string) string {
	return b.auto(Receive{Channel: channel, Token: token})
}

// ReceiveIf adds a conditional blocking receive.
func (b *ProcBuilder) ReceiveIf(channel, token, predicate string) string {
	return b.auto(Receive{Channel: channel, Token: token, Predicate: predicate})
}

// ReceiveNonBlocking adds a non-blocking receive yielding (token, data, valid).
func (b *ProcBuilder) ReceiveNonBlocking(channel, token string) string {
	return b.auto(Receive{Channel: channel, Token: token, NonBlocking: true})
}

// Send adds an unconditional send.
func (b *ProcBuilder) Send(channel, token, data string) string {
	return b.auto(Send{Channel: channel, Token: token, Data: data})
}

// SendIf adds a conditional send.
func (b *ProcBuilder) SendIf(channel, token, predicate, data string) string {
	return b.auto(Send{Channel: channel, Token: token, Data: data, Predicate: predicate})
}

// AfterAll joins tokens.
func (b *ProcBuilder) AfterAll(tokens ...string) string {
	return b.auto(AfterAll{Tokens: tokens})
}

// Tuple builds a tuple.
func (b *ProcBuilder) Tuple(elems ...string) string {
	return b.auto(MakeTuple{Elems: elems})
}

// TupleIndex extracts a tuple element.
func (b *ProcBuilder) TupleIndex(operand string, index int) string {
	return b.auto(TupleIndex{Operand: operand, Index: index})
}

// Binary adds a two-operand operation.
func (b *ProcBuilder) Binary(kind BinaryKind, lhs, rhs string) string {
	return b.auto(Binary{Op: kind, LHS: lhs, RHS: rhs})
}

// Add adds lhs + rhs.
func (b *ProcBuilder) Add(lhs, rhs string) string { return b.Binary(BinAdd, lhs, rhs) }

// Sub adds lhs - rhs.
func (b *ProcBuilder) Sub(lhs, rhs string) string { return b.Binary(BinSub, lhs, rhs) }

// Eq adds lhs == rhs.
func (b *ProcBuilder) Eq(lhs, rhs string) string { return b.Binary(BinEq, lhs, rhs) }

// Ne adds lhs != rhs.
func (b *ProcBuilder) Ne(lhs, rhs string) string { return b.Binary(BinNe, lhs, rhs) }

// Not adds a bitwise not.
func (b *ProcBuilder) Not(operand string) string {
	return b.auto(Unary{Op: UnNot, Operand: operand})
}

// Select picks cases[selector].
func (b *ProcBuilder) Select(selector string, cases ...string) string {
	return b.auto(Select{Selector: selector, Cases: cases})
}

// BitSlice extracts width bits starting at start.
func (b *ProcBuilder) BitSlice(operand string, start, width int) string {
	return b.auto(BitSlice{Operand: operand, Start: start, Width: width})
}

// Identity forwards operand.
func (b *ProcBuilder) Identity(operand string) string {
	return b.auto(Identity{Operand: operand})
}

// Build finalises the proc. nextState names one node per state element in
// declaration order.
func (b *ProcBuilder) Build(nextToken string, nextState ...string) (*Proc, error) {
	if len(nextState) != len(b.proc.State) {
		b.errs = append(b.errs, fmt.Errorf("proc %s: %d next-state values for %d state elements",
			b.proc.Name, len(nextState), len(b.proc.State)))
	}
	if !b.names[nextToken] {
		b.errs = append(b.errs, fmt.Errorf("proc %s: next token references undefined node %q", b.proc.Name, nextToken))
	}
	for i, next := range nextState {
		if i >= len(b.proc.State) {
			break
		}
		if !b.names[next] {
			b.errs = append(b.errs, fmt.Errorf("proc %s: next state for %q references undefined node %q",
				b.proc.Name, b.proc.State[i].Name, next))
		}
		b.proc.State[i].Next = next
	}
	b.proc.NextToken = nextToken
	// Operands may refer forward; order is resolved by the scheduler.
	for _, n := range b.proc.Nodes {
		for _, operand := range n.Op.Operands() {
			if !b.names[operand] {
				b.errs = append(b.errs, fmt.Errorf("proc %s: node %q references undefined node %q", b.proc.Name, n.Name, operand))
			}
		}
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return b.proc, nil
}

// MustBuild is like Build but panics on error.
// Intended for tests and examples.
func (b *ProcBuilder) MustBuild(nextToken string, nextState ...string) *Proc {
	p, err := b.Build(nextToken, nextState...)
	if err != nil {
		panic(err)
	}
	return p
}
