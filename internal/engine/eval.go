package engine

import (
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

// evalPure evaluates a node without side effects. args holds the operand
// values in ir.Op.Operands order; state resolves state reads.
func evalPure(op ir.Op, args []ir.Value, state func(string) (ir.Value, bool)) (ir.Value, error) {
	switch o := op.(type) {
	case ir.Literal:
		return o.Value, nil

	case ir.TokenParam, ir.AfterAll:
		return ir.Token{}, nil

	case ir.StateRead:
		v, ok := state(o.Element)
		if !ok {
			return nil, fmt.Errorf("unknown state element %q", o.Element)
		}
		return v, nil

	case ir.MakeTuple:
		return ir.NewTuple(args...), nil

	case ir.TupleIndex:
		switch t := args[0].(type) {
		case ir.Tuple:
			if o.Index < 0 || o.Index >= t.Len() {
				return nil, fmt.Errorf("tuple index %d out of range for %s", o.Index, t)
			}
			return t.At(o.Index), nil
		case ir.Array:
			if o.Index < 0 || o.Index >= t.Len() {
				return nil, fmt.Errorf("array index %d out of range for %s", o.Index, t)
			}
			return t.At(o.Index), nil
		}
		return nil, fmt.Errorf("tuple_index on %s", args[0])

	case ir.Binary:
		return evalBinary(o.Op, args[0], args[1])

	case ir.Unary:
		b, ok := args[0].(ir.Bits)
		if !ok {
			return nil, fmt.Errorf("%s on %s", o.Op, args[0])
		}
		switch o.Op {
		case ir.UnNot:
			return ir.UBits(^b.Uint64(), b.Width()), nil
		case ir.UnNeg:
			return ir.UBits(-b.Uint64(), b.Width()), nil
		}
		return nil, fmt.Errorf("unknown unary operation %q", o.Op)

	case ir.Select:
		sel, ok := args[0].(ir.Bits)
		if !ok {
			return nil, fmt.Errorf("select on %s", args[0])
		}
		if sel.Uint64() < uint64(len(o.Cases)) {
			return args[1+sel.Uint64()], nil
		}
		if o.Default == "" {
			return nil, fmt.Errorf("selector %d out of range with %d cases and no default", sel.Uint64(), len(o.Cases))
		}
		return args[len(args)-1], nil

	case ir.BitSlice:
		b, ok := args[0].(ir.Bits)
		if !ok {
			return nil, fmt.Errorf("bit_slice on %s", args[0])
		}
		if o.Start >= 64 {
			return ir.UBits(0, o.Width), nil
		}
		return ir.UBits(b.Uint64()>>uint(o.Start), o.Width), nil

	case ir.Identity:
		return args[0], nil
	}
	return nil, fmt.Errorf("operation %s has side effects", op.Kind())
}

func evalBinary(kind ir.BinaryKind, lhs, rhs ir.Value) (ir.Value, error) {
	switch kind {
	case ir.BinEq:
		return ir.Bool(ir.Equal(lhs, rhs)), nil
	case ir.BinNe:
		return ir.Bool(!ir.Equal(lhs, rhs)), nil
	}

	a, ok := lhs.(ir.Bits)
	if !ok {
		return nil, fmt.Errorf("%s on %s", kind, lhs)
	}
	b, ok := rhs.(ir.Bits)
	if !ok {
		return nil, fmt.Errorf("%s on %s", kind, rhs)
	}
	w := a.Width()
	x, y := a.Uint64(), b.Uint64()

	switch kind {
	case ir.BinAdd:
		return ir.UBits(x+y, w), nil
	case ir.BinSub:
		return ir.UBits(x-y, w), nil
	case ir.BinMul:
		return ir.UBits(x*y, w), nil
	case ir.BinAnd:
		return ir.UBits(x&y, w), nil
	case ir.BinOr:
		return ir.UBits(x|y, w), nil
	case ir.BinXor:
		return ir.UBits(x^y, w), nil
	case ir.BinShl:
		if y >= uint64(w) {
			return ir.UBits(0, w), nil
		}
		return ir.UBits(x<<y, w), nil
	case ir.BinShr:
		if y >= uint64(w) {
			return ir.UBits(0, w), nil
		}
		return ir.UBits(x>>y, w), nil
	case ir.BinUlt:
		return ir.Bool(x < y), nil
	case ir.BinUle:
		return ir.Bool(x <= y), nil
	case ir.BinUgt:
		return ir.Bool(x > y), nil
	case ir.BinUge:
		return ir.Bool(x >= y), nil
	}
	return nil, fmt.Errorf("unknown binary operation %q", kind)
}
