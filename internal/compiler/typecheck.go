package compiler

import (
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

var (
	tokenType = ir.TokenType{}
	boolType  = ir.BitsType{Width: 1}
)

// InferTypes computes the result type of every node of p, visiting nodes in
// NodeOrder. Nodes whose type cannot be determined are absent from the
// result and each problem is reported once as an E215 ValidationError.
// Channel lookups go through n; unknown channels are left to
// ValidateNetwork.
func InferTypes(n *ir.Network, p *ir.Proc) (map[string]ir.Type, []ValidationError) {
	types := make(map[string]ir.Type, len(p.Nodes))
	order, err := NodeOrder(p)
	if err != nil {
		// Reported as E214 by ValidateNetwork.
		return types, nil
	}

	var errs []ValidationError
	fail := func(node, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("proc.%s.node.%s", p.Name, node),
			Message: fmt.Sprintf(format, args...),
			Code:    ErrTypeMismatch,
		})
	}

	stateTypes := make(map[string]ir.Type, len(p.State))
	for _, s := range p.State {
		stateTypes[s.Name] = s.Type
	}

	for _, i := range order {
		node := p.Nodes[i]

		// Skip nodes whose operands could not be typed; the root cause is
		// already reported.
		operandTypes := make([]ir.Type, 0, len(node.Op.Operands()))
		complete := true
		for _, operand := range node.Op.Operands() {
			t, ok := types[operand]
			if !ok {
				complete = false
				break
			}
			operandTypes = append(operandTypes, t)
		}
		if !complete {
			continue
		}

		t, msg := nodeType(n, node.Op, operandTypes, stateTypes)
		if msg != "" {
			fail(node.Name, "%s", msg)
			continue
		}
		types[node.Name] = t
	}

	return types, errs
}

// nodeType returns the result type of op given its operand types, or a
// non-empty message describing why the operands are ill-typed.
func nodeType(n *ir.Network, op ir.Op, operands []ir.Type, state map[string]ir.Type) (ir.Type, string) {
	switch o := op.(type) {
	case ir.Literal:
		return ir.TypeOf(o.Value), ""

	case ir.TokenParam:
		return tokenType, ""

	case ir.StateRead:
		t, ok := state[o.Element]
		if !ok {
			return nil, fmt.Sprintf("unknown state element %q", o.Element)
		}
		return t, ""

	case ir.Receive:
		ch, ok := n.Channel(o.Channel)
		if !ok {
			return nil, fmt.Sprintf("unknown channel %q", o.Channel)
		}
		if !ir.TypesEqual(operands[0], tokenType) {
			return nil, fmt.Sprintf("receive token operand %q has type %s, want token", o.Token, operands[0])
		}
		if o.Predicate != "" && !ir.TypesEqual(operands[1], boolType) {
			return nil, fmt.Sprintf("receive predicate %q has type %s, want bits[1]", o.Predicate, operands[1])
		}
		if o.NonBlocking {
			return ir.TupleType{Elems: []ir.Type{tokenType, ch.Type, boolType}}, ""
		}
		return ir.TupleType{Elems: []ir.Type{tokenType, ch.Type}}, ""

	case ir.Send:
		ch, ok := n.Channel(o.Channel)
		if !ok {
			return nil, fmt.Sprintf("unknown channel %q", o.Channel)
		}
		if !ir.TypesEqual(operands[0], tokenType) {
			return nil, fmt.Sprintf("send token operand %q has type %s, want token", o.Token, operands[0])
		}
		if !ir.TypesEqual(operands[1], ch.Type) {
			return nil, fmt.Sprintf("send data %q has type %s, channel %s carries %s", o.Data, operands[1], ch.Name, ch.Type)
		}
		if o.Predicate != "" && !ir.TypesEqual(operands[2], boolType) {
			return nil, fmt.Sprintf("send predicate %q has type %s, want bits[1]", o.Predicate, operands[2])
		}
		return tokenType, ""

	case ir.AfterAll:
		for i, t := range operands {
			if !ir.TypesEqual(t, tokenType) {
				return nil, fmt.Sprintf("after_all operand %q has type %s, want token", o.Tokens[i], t)
			}
		}
		return tokenType, ""

	case ir.MakeTuple:
		return ir.TupleType{Elems: operands}, ""

	case ir.TupleIndex:
		tt, ok := operands[0].(ir.TupleType)
		if !ok {
			return nil, fmt.Sprintf("tuple_index operand %q has type %s, want a tuple", o.Operand, operands[0])
		}
		if o.Index < 0 || o.Index >= len(tt.Elems) {
			return nil, fmt.Sprintf("tuple index %d out of range for %s", o.Index, tt)
		}
		return tt.Elems[o.Index], ""

	case ir.Binary:
		lhs, rhs := operands[0], operands[1]
		switch o.Op {
		case ir.BinEq, ir.BinNe:
			if !ir.TypesEqual(lhs, rhs) {
				return nil, fmt.Sprintf("%s operands have different types %s and %s", o.Op, lhs, rhs)
			}
			return boolType, ""
		case ir.BinShl, ir.BinShr:
			if _, ok := lhs.(ir.BitsType); !ok {
				return nil, fmt.Sprintf("%s operand %q has type %s, want bits", o.Op, o.LHS, lhs)
			}
			if _, ok := rhs.(ir.BitsType); !ok {
				return nil, fmt.Sprintf("%s amount %q has type %s, want bits", o.Op, o.RHS, rhs)
			}
			return lhs, ""
		}
		if _, ok := lhs.(ir.BitsType); !ok {
			return nil, fmt.Sprintf("%s operand %q has type %s, want bits", o.Op, o.LHS, lhs)
		}
		if !ir.TypesEqual(lhs, rhs) {
			return nil, fmt.Sprintf("%s operands have different types %s and %s", o.Op, lhs, rhs)
		}
		if o.Op.IsComparison() {
			return boolType, ""
		}
		return lhs, ""

	case ir.Unary:
		if _, ok := operands[0].(ir.BitsType); !ok {
			return nil, fmt.Sprintf("%s operand %q has type %s, want bits", o.Op, o.Operand, operands[0])
		}
		return operands[0], ""

	case ir.Select:
		sel, ok := operands[0].(ir.BitsType)
		if !ok {
			return nil, fmt.Sprintf("select selector %q has type %s, want bits", o.Selector, operands[0])
		}
		if len(o.Cases) == 0 {
			return nil, "select needs at least one case"
		}
		want := operands[1]
		for i, t := range operands[1:] {
			if !ir.TypesEqual(t, want) {
				name := o.Default
				if i < len(o.Cases) {
					name = o.Cases[i]
				}
				return nil, fmt.Sprintf("select case %q has type %s, want %s", name, t, want)
			}
		}
		if o.Default == "" && sel.Width < 31 && len(o.Cases) < 1<<sel.Width {
			return nil, fmt.Sprintf("select with %d cases and a bits[%d] selector needs a default", len(o.Cases), sel.Width)
		}
		return want, ""

	case ir.BitSlice:
		bt, ok := operands[0].(ir.BitsType)
		if !ok {
			return nil, fmt.Sprintf("bit_slice operand %q has type %s, want bits", o.Operand, operands[0])
		}
		if o.Start < 0 || o.Width < 0 || o.Start+o.Width > bt.Width {
			return nil, fmt.Sprintf("bit_slice [%d, %d) out of range for %s", o.Start, o.Start+o.Width, bt)
		}
		return ir.BitsType{Width: o.Width}, ""

	case ir.Identity:
		return operands[0], ""
	}

	return nil, fmt.Sprintf("unsupported operation %T", op)
}
