package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/procnet/internal/ir"
)

// CompileNetwork parses a CUE value into an ir.Network.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value is the network root:
//
//	name: "iota"
//	channel: out: {ops: "send_only", type: "bits[32]"}
//	proc: iota: {
//		state: st: {type: "bits[32]", init: 5, next: "next"}
//		next_token: "snd"
//		node: {
//			tok:  {op: "token"}
//			st:   {op: "state", element: "st"}
//			ten:  {op: "literal", type: "bits[32]", value: 10}
//			snd:  {op: "send", channel: "out", token: "tok", data: "st"}
//			next: {op: "add", operands: ["st", "ten"]}
//		}
//	}
//
// Struct field order is declaration order. CompileNetwork only checks shape;
// semantic checks (operand references, directions, types) are done by
// ValidateNetwork.
func CompileNetwork(v cue.Value) (*ir.Network, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	name := "network"
	if nameVal := lookup(v, "name"); nameVal.Exists() {
		s, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		name = s
	}
	n := ir.NewNetwork(name)

	chanVal := lookup(v, "channel")
	if chanVal.Exists() {
		iter, err := chanVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			ch, err := compileChannel(unquoteLabel(iter.Label()), iter.Value())
			if err != nil {
				return nil, err
			}
			if _, err := n.AddChannel(ch); err != nil {
				return nil, &CompileError{Field: "channel." + ch.Name, Message: err.Error(), Pos: iter.Value().Pos()}
			}
		}
	}

	procVal := lookup(v, "proc")
	if procVal.Exists() {
		iter, err := procVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			p, err := compileProc(unquoteLabel(iter.Label()), iter.Value())
			if err != nil {
				return nil, err
			}
			if err := n.AddProc(p); err != nil {
				return nil, &CompileError{Field: "proc." + p.Name, Message: err.Error(), Pos: iter.Value().Pos()}
			}
		}
	}

	if len(n.Channels) == 0 && len(n.Procs) == 0 {
		return nil, &CompileError{
			Field:   "network",
			Message: "at least one channel or proc is required",
			Pos:     v.Pos(),
		}
	}

	return n, nil
}

// compileChannel parses one channel declaration.
func compileChannel(name string, v cue.Value) (*ir.Channel, error) {
	field := "channel." + name
	ch := &ir.Channel{Name: name}

	ops, err := requireString(v, "ops", field)
	if err != nil {
		return nil, err
	}
	ch.Ops = ir.ChannelOps(ops)

	typ, err := requireType(v, "type", field)
	if err != nil {
		return nil, err
	}
	ch.Type = typ

	if fc, ok, err := optionalString(v, "flow_control"); err != nil {
		return nil, err
	} else if ok {
		ch.FlowControl = ir.FlowControl(fc)
	}

	if capVal := lookup(v, "capacity"); capVal.Exists() {
		c, err := capVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ch.Capacity = int(c)
	}

	if initVal := lookup(v, "initial_values"); initVal.Exists() {
		list, err := initVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; list.Next(); i++ {
			native, err := cueToNative(list.Value())
			if err != nil {
				return nil, err
			}
			val, err := ir.FromNative(ch.Type, native)
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("%s.initial_values[%d]", field, i),
					Message: err.Error(),
					Pos:     list.Value().Pos(),
				}
			}
			ch.InitialValues = append(ch.InitialValues, val)
		}
	}

	return ch, nil
}

// compileProc parses one proc: its state elements, nodes and next token.
func compileProc(name string, v cue.Value) (*ir.Proc, error) {
	field := "proc." + name
	b := ir.NewProcBuilder(name)

	var nextState []string
	if stateVal := lookup(v, "state"); stateVal.Exists() {
		iter, err := stateVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			elem := unquoteLabel(iter.Label())
			ef := field + ".state." + elem
			ev := iter.Value()

			typ, err := requireType(ev, "type", ef)
			if err != nil {
				return nil, err
			}
			initVal := lookup(ev, "init")
			if !initVal.Exists() {
				return nil, &CompileError{Field: ef + ".init", Message: "initial value is required", Pos: ev.Pos()}
			}
			native, err := cueToNative(initVal)
			if err != nil {
				return nil, err
			}
			init, err := ir.FromNative(typ, native)
			if err != nil {
				return nil, &CompileError{Field: ef + ".init", Message: err.Error(), Pos: initVal.Pos()}
			}
			next, err := requireString(ev, "next", ef)
			if err != nil {
				return nil, err
			}
			b.DeclareState(elem, typ, init)
			nextState = append(nextState, next)
		}
	}

	nodeVal := lookup(v, "node")
	if !nodeVal.Exists() {
		return nil, &CompileError{Field: field + ".node", Message: "at least one node is required", Pos: v.Pos()}
	}
	iter, err := nodeVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		nodeName := unquoteLabel(iter.Label())
		op, err := compileOp(field+".node."+nodeName, iter.Value())
		if err != nil {
			return nil, err
		}
		b.Node(nodeName, op)
	}

	nextToken, err := requireString(v, "next_token", field)
	if err != nil {
		return nil, err
	}

	p, err := b.Build(nextToken, nextState...)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return p, nil
}

// compileOp parses a node body into an ir.Op. The key set mirrors the
// network description produced by ir.Network.Describe.
func compileOp(field string, v cue.Value) (ir.Op, error) {
	kind, err := requireString(v, "op", field)
	if err != nil {
		return nil, err
	}

	switch kind {
	case ir.OpLiteral:
		typ, err := requireType(v, "type", field)
		if err != nil {
			return nil, err
		}
		valVal := lookup(v, "value")
		if !valVal.Exists() {
			return nil, &CompileError{Field: field + ".value", Message: "literal value is required", Pos: v.Pos()}
		}
		native, err := cueToNative(valVal)
		if err != nil {
			return nil, err
		}
		val, err := ir.FromNative(typ, native)
		if err != nil {
			return nil, &CompileError{Field: field + ".value", Message: err.Error(), Pos: valVal.Pos()}
		}
		return ir.Literal{Value: val}, nil

	case ir.OpToken:
		return ir.TokenParam{}, nil

	case ir.OpState:
		elem, err := requireString(v, "element", field)
		if err != nil {
			return nil, err
		}
		return ir.StateRead{Element: elem}, nil

	case ir.OpReceive:
		var r ir.Receive
		if r.Channel, err = requireString(v, "channel", field); err != nil {
			return nil, err
		}
		if r.Token, err = requireString(v, "token", field); err != nil {
			return nil, err
		}
		if r.Predicate, _, err = optionalString(v, "predicate"); err != nil {
			return nil, err
		}
		if nb := lookup(v, "non_blocking"); nb.Exists() {
			if r.NonBlocking, err = nb.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		return r, nil

	case ir.OpSend:
		var s ir.Send
		if s.Channel, err = requireString(v, "channel", field); err != nil {
			return nil, err
		}
		if s.Token, err = requireString(v, "token", field); err != nil {
			return nil, err
		}
		if s.Data, err = requireString(v, "data", field); err != nil {
			return nil, err
		}
		if s.Predicate, _, err = optionalString(v, "predicate"); err != nil {
			return nil, err
		}
		return s, nil

	case ir.OpAfterAll:
		tokens, err := stringList(v, "tokens", field)
		if err != nil {
			return nil, err
		}
		return ir.AfterAll{Tokens: tokens}, nil

	case ir.OpTuple:
		elems, err := stringList(v, "operands", field)
		if err != nil {
			return nil, err
		}
		return ir.MakeTuple{Elems: elems}, nil

	case ir.OpTupleIndex:
		operand, err := requireString(v, "operand", field)
		if err != nil {
			return nil, err
		}
		index, err := requireInt(v, "index", field)
		if err != nil {
			return nil, err
		}
		return ir.TupleIndex{Operand: operand, Index: index}, nil

	case ir.OpSelect:
		var s ir.Select
		if s.Selector, err = requireString(v, "selector", field); err != nil {
			return nil, err
		}
		if s.Cases, err = stringList(v, "cases", field); err != nil {
			return nil, err
		}
		if s.Default, _, err = optionalString(v, "default"); err != nil {
			return nil, err
		}
		return s, nil

	case ir.OpBitSlice:
		var s ir.BitSlice
		if s.Operand, err = requireString(v, "operand", field); err != nil {
			return nil, err
		}
		if s.Start, err = requireInt(v, "start", field); err != nil {
			return nil, err
		}
		if s.Width, err = requireInt(v, "width", field); err != nil {
			return nil, err
		}
		return s, nil

	case ir.OpIdentity:
		operand, err := requireString(v, "operand", field)
		if err != nil {
			return nil, err
		}
		return ir.Identity{Operand: operand}, nil
	}

	for _, bk := range ir.BinaryKinds {
		if kind == string(bk) {
			operands, err := stringList(v, "operands", field)
			if err != nil {
				return nil, err
			}
			if len(operands) != 2 {
				return nil, &CompileError{
					Field:   field + ".operands",
					Message: fmt.Sprintf("%s takes 2 operands, got %d", kind, len(operands)),
					Pos:     v.Pos(),
				}
			}
			return ir.Binary{Op: bk, LHS: operands[0], RHS: operands[1]}, nil
		}
	}

	switch ir.UnaryKind(kind) {
	case ir.UnNot, ir.UnNeg:
		operand, err := requireString(v, "operand", field)
		if err != nil {
			return nil, err
		}
		return ir.Unary{Op: ir.UnaryKind(kind), Operand: operand}, nil
	}

	return nil, &CompileError{
		Field:   field + ".op",
		Message: fmt.Sprintf("unknown operation %q", kind),
		Pos:     v.Pos(),
	}
}

func lookup(v cue.Value, field string) cue.Value {
	return v.LookupPath(cue.MakePath(cue.Str(field)))
}

// unquoteLabel strips CUE quoting from labels such as "literal.1".
func unquoteLabel(label string) string {
	if strings.HasPrefix(label, `"`) {
		if s, err := strconv.Unquote(label); err == nil {
			return s
		}
	}
	return label
}

func requireString(v cue.Value, key, field string) (string, error) {
	s, ok, err := optionalString(v, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &CompileError{
			Field:   field + "." + key,
			Message: key + " is required",
			Pos:     v.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, key string) (string, bool, error) {
	val := lookup(v, key)
	if !val.Exists() {
		return "", false, nil
	}
	s, err := val.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func requireInt(v cue.Value, key, field string) (int, error) {
	val := lookup(v, key)
	if !val.Exists() {
		return 0, &CompileError{Field: field + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	i, err := val.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(i), nil
}

func requireType(v cue.Value, key, field string) (ir.Type, error) {
	s, err := requireString(v, key, field)
	if err != nil {
		return nil, err
	}
	t, err := ir.ParseType(s)
	if err != nil {
		return nil, &CompileError{Field: field + "." + key, Message: err.Error(), Pos: lookup(v, key).Pos()}
	}
	return t, nil
}

func stringList(v cue.Value, key, field string) ([]string, error) {
	val := lookup(v, key)
	if !val.Exists() {
		return nil, &CompileError{Field: field + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// cueToNative converts a concrete CUE value into the plain Go data accepted
// by ir.FromNative. Floats are forbidden.
func cueToNative(v cue.Value) (any, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		u, err := v.Uint64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return u, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.NullKind:
		return nil, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			item, err := cueToNative(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "float values are forbidden, use an integer",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
