package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// Channel errors (E201-E209)
	ErrDuplicateChannel     = "E201" // duplicate channel name
	ErrDuplicateProc        = "E202" // duplicate proc name
	ErrInvalidChannelOps    = "E203" // ops is not send_only/receive_only/send_receive
	ErrInvalidFlowControl   = "E204" // flow control is not none/ready_valid
	ErrInvalidCapacity      = "E205" // negative capacity
	ErrInitialValueType     = "E206" // initial value does not have the channel type
	ErrInitialValueCapacity = "E207" // more initial values than capacity
	ErrMissingType          = "E208" // channel or state element without a type

	// Proc errors (E210-E219)
	ErrDuplicateNode    = "E210" // duplicate node name within a proc
	ErrUndefinedNode    = "E211" // operand, next token or next state names no node
	ErrUnknownChannel   = "E212" // send/receive on an undeclared channel
	ErrChannelDirection = "E213" // send on receive_only or receive on send_only
	ErrDataflowCycle    = "E214" // node graph is not acyclic
	ErrTypeMismatch     = "E215" // ill-typed node
	ErrStateMismatch    = "E216" // state element init/next type or duplicate element
	ErrNextTokenType    = "E217" // next token is not a token
	ErrChannelMultiplex = "E218" // channel sent or received by more than one proc
	ErrEmptyName        = "E219" // empty channel, proc, node or state name

	// Session errors (E220-E229), reported by the engine
	ErrMissingInput = "E220" // receive_only channel with no generator or initial values
)

// ValidationError represents a network validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// JoinValidationErrors combines validation errors into one error, or nil.
func JoinValidationErrors(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

// ValidateNetwork checks a network against the structural and typing rules
// the interpreter relies on. Returns all errors found (does not fail-fast).
func ValidateNetwork(n *ir.Network) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateChannels(n)...)

	procNames := make(map[string]bool)
	senders := make(map[string][]string)
	receivers := make(map[string][]string)

	for i, p := range n.Procs {
		field := fmt.Sprintf("proc.%s", p.Name)
		if p.Name == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("procs[%d].name", i),
				Message: "proc name must be non-empty",
				Code:    ErrEmptyName,
			})
		}
		if procNames[p.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate proc name: %q", p.Name),
				Code:    ErrDuplicateProc,
			})
		}
		procNames[p.Name] = true

		errs = append(errs, validateProc(n, p)...)

		for _, node := range p.Nodes {
			switch op := node.Op.(type) {
			case ir.Send:
				senders[op.Channel] = appendOnce(senders[op.Channel], p.Name)
			case ir.Receive:
				receivers[op.Channel] = appendOnce(receivers[op.Channel], p.Name)
			}
		}
	}

	// E218: one sending proc and one receiving proc per channel
	for _, ch := range n.Channels {
		if procs := senders[ch.Name]; len(procs) > 1 {
			errs = append(errs, ValidationError{
				Field:   "channel." + ch.Name,
				Message: fmt.Sprintf("sent on by more than one proc: %v", procs),
				Code:    ErrChannelMultiplex,
			})
		}
		if procs := receivers[ch.Name]; len(procs) > 1 {
			errs = append(errs, ValidationError{
				Field:   "channel." + ch.Name,
				Message: fmt.Sprintf("received on by more than one proc: %v", procs),
				Code:    ErrChannelMultiplex,
			})
		}
	}

	return errs
}

func appendOnce(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

// validateChannels checks channel declarations.
func validateChannels(n *ir.Network) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool)

	for i, ch := range n.Channels {
		field := "channel." + ch.Name
		if ch.Name == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("channels[%d].name", i),
				Message: "channel name must be non-empty",
				Code:    ErrEmptyName,
			})
		}

		// E201: duplicate channel name
		if names[ch.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate channel name: %q", ch.Name),
				Code:    ErrDuplicateChannel,
			})
		}
		names[ch.Name] = true

		if !ch.Ops.Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".ops",
				Message: fmt.Sprintf("invalid ops %q, must be \"send_only\", \"receive_only\" or \"send_receive\"", ch.Ops),
				Code:    ErrInvalidChannelOps,
			})
		}

		if ch.FlowControl != "" && !ch.FlowControl.Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".flow_control",
				Message: fmt.Sprintf("invalid flow control %q, must be \"none\" or \"ready_valid\"", ch.FlowControl),
				Code:    ErrInvalidFlowControl,
			})
		}

		if ch.Capacity < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".capacity",
				Message: fmt.Sprintf("capacity must be >= 0, got %d", ch.Capacity),
				Code:    ErrInvalidCapacity,
			})
		}

		if ch.Type == nil {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: "channel type is required",
				Code:    ErrMissingType,
			})
			continue
		}

		for j, v := range ch.InitialValues {
			if !ir.HasType(v, ch.Type) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.initial_values[%d]", field, j),
					Message: fmt.Sprintf("value %s does not have channel type %s", v, ch.Type),
					Code:    ErrInitialValueType,
				})
			}
		}

		if ch.Bounded() && len(ch.InitialValues) > ch.Capacity {
			errs = append(errs, ValidationError{
				Field:   field + ".initial_values",
				Message: fmt.Sprintf("%d initial values exceed capacity %d", len(ch.InitialValues), ch.Capacity),
				Code:    ErrInitialValueCapacity,
			})
		}
	}

	return errs
}

// validateProc checks one proc's nodes, state and channel usage.
func validateProc(n *ir.Network, p *ir.Proc) []ValidationError {
	var errs []ValidationError
	field := "proc." + p.Name
	nodes := make(map[string]bool, len(p.Nodes))

	for i, node := range p.Nodes {
		if node.Name == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.nodes[%d].name", field, i),
				Message: "node name must be non-empty",
				Code:    ErrEmptyName,
			})
		}
		if nodes[node.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.node.%s", field, node.Name),
				Message: fmt.Sprintf("duplicate node name: %q", node.Name),
				Code:    ErrDuplicateNode,
			})
		}
		nodes[node.Name] = true
	}

	for _, node := range p.Nodes {
		nodeField := fmt.Sprintf("%s.node.%s", field, node.Name)
		for _, operand := range node.Op.Operands() {
			if !nodes[operand] {
				errs = append(errs, ValidationError{
					Field:   nodeField,
					Message: fmt.Sprintf("operand %q is not a node of proc %s", operand, p.Name),
					Code:    ErrUndefinedNode,
				})
			}
		}

		chName, ok := ir.ChannelOf(node.Op)
		if !ok {
			continue
		}
		ch, ok := n.Channel(chName)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   nodeField,
				Message: fmt.Sprintf("unknown channel %q", chName),
				Code:    ErrUnknownChannel,
			})
			continue
		}
		switch node.Op.(type) {
		case ir.Send:
			if !ch.Ops.CanSend() {
				errs = append(errs, ValidationError{
					Field:   nodeField,
					Message: fmt.Sprintf("cannot send on %s channel %q", ch.Ops, ch.Name),
					Code:    ErrChannelDirection,
				})
			}
		case ir.Receive:
			if !ch.Ops.CanReceive() {
				errs = append(errs, ValidationError{
					Field:   nodeField,
					Message: fmt.Sprintf("cannot receive on %s channel %q", ch.Ops, ch.Name),
					Code:    ErrChannelDirection,
				})
			}
		}
	}

	if _, err := NodeOrder(p); err != nil {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: err.Error(),
			Code:    ErrDataflowCycle,
		})
	}

	types, typeErrs := InferTypes(n, p)
	errs = append(errs, typeErrs...)

	// Next token
	if !nodes[p.NextToken] {
		errs = append(errs, ValidationError{
			Field:   field + ".next_token",
			Message: fmt.Sprintf("next token %q is not a node of proc %s", p.NextToken, p.Name),
			Code:    ErrUndefinedNode,
		})
	} else if t, ok := types[p.NextToken]; ok && !ir.TypesEqual(t, tokenType) {
		errs = append(errs, ValidationError{
			Field:   field + ".next_token",
			Message: fmt.Sprintf("next token %q has type %s, want token", p.NextToken, t),
			Code:    ErrNextTokenType,
		})
	}

	// State elements
	seen := make(map[string]bool, len(p.State))
	for _, s := range p.State {
		sf := fmt.Sprintf("%s.state.%s", field, s.Name)
		if s.Name == "" {
			errs = append(errs, ValidationError{Field: sf, Message: "state element name must be non-empty", Code: ErrEmptyName})
		}
		if seen[s.Name] {
			errs = append(errs, ValidationError{
				Field:   sf,
				Message: fmt.Sprintf("duplicate state element: %q", s.Name),
				Code:    ErrStateMismatch,
			})
		}
		seen[s.Name] = true

		if s.Type == nil {
			errs = append(errs, ValidationError{Field: sf + ".type", Message: "state type is required", Code: ErrMissingType})
			continue
		}
		if s.Init == nil || !ir.HasType(s.Init, s.Type) {
			errs = append(errs, ValidationError{
				Field:   sf + ".init",
				Message: fmt.Sprintf("initial value %v does not have type %s", s.Init, s.Type),
				Code:    ErrStateMismatch,
			})
		}
		if !nodes[s.Next] {
			errs = append(errs, ValidationError{
				Field:   sf + ".next",
				Message: fmt.Sprintf("next value %q is not a node of proc %s", s.Next, p.Name),
				Code:    ErrUndefinedNode,
			})
		} else if t, ok := types[s.Next]; ok && !ir.TypesEqual(t, s.Type) {
			errs = append(errs, ValidationError{
				Field:   sf + ".next",
				Message: fmt.Sprintf("next value %q has type %s, want %s", s.Next, t, s.Type),
				Code:    ErrStateMismatch,
			})
		}
	}

	return errs
}
