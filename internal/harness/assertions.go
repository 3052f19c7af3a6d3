package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string                // Assertion type for categorization
	Expected string                // Human-readable expected outcome
	Actual   string                // Human-readable actual outcome
	Trace    []engine.ChannelEvent // Events relevant to the failure
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] round %d %s %s %s", ev.Seq, ev.Round, ev.Kind, ev.Channel, ev.Value)
			if ev.Proc != "" {
				fmt.Fprintf(&buf, " by %s", ev.Proc)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store   *store.Store
	Network *ir.Network
	Ctx     context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertChannelValues:
		return assertChannelValues(result, a, actx)
	case AssertWrittenValues:
		return assertWrittenValues(result, a, actx)
	case AssertWriteCount:
		return assertWriteCount(result, a)
	case AssertTraceContains:
		return assertTraceContains(result, a, actx)
	case AssertProcState:
		return assertProcState(result, a, actx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertChannelValues checks the values left queued on a channel.
func assertChannelValues(result *Result, a Assertion, actx *AssertionContext) error {
	ch, err := channelOf(actx.Network, a.Channel)
	if err != nil {
		return err
	}
	want, err := ConvertValues(ch, a.Values)
	if err != nil {
		return fmt.Errorf("expected values: %w", err)
	}
	got, err := ConvertValues(ch, result.Outputs[a.Channel])
	if err != nil {
		return fmt.Errorf("queued values: %w", err)
	}
	if !slices.EqualFunc(got, want, ir.Equal) {
		return &AssertionError{
			Type:     AssertChannelValues,
			Expected: fmt.Sprintf("%s holds %s", a.Channel, formatValues(want)),
			Actual:   formatValues(got),
			Trace:    channelEvents(result.Trace, a.Channel),
		}
	}
	return nil
}

// assertWrittenValues checks every value written to a channel, read back
// from the store.
func assertWrittenValues(result *Result, a Assertion, actx *AssertionContext) error {
	ch, err := channelOf(actx.Network, a.Channel)
	if err != nil {
		return err
	}
	want, err := ConvertValues(ch, a.Values)
	if err != nil {
		return fmt.Errorf("expected values: %w", err)
	}
	got, err := actx.Store.ReadChannelValues(actx.Ctx, result.RunID, a.Channel, engine.EventWrite)
	if err != nil {
		return err
	}
	if !slices.EqualFunc(got, want, ir.Equal) {
		return &AssertionError{
			Type:     AssertWrittenValues,
			Expected: fmt.Sprintf("%s written %s", a.Channel, formatValues(want)),
			Actual:   formatValues(got),
			Trace:    channelEvents(result.Trace, a.Channel),
		}
	}
	return nil
}

// assertWriteCount checks the number of writes to a channel.
func assertWriteCount(result *Result, a Assertion) error {
	var count int64
	for _, ev := range result.Trace {
		if ev.Channel == a.Channel && ev.Kind == engine.EventWrite {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertWriteCount,
			Expected: fmt.Sprintf("%d writes to %s", a.Count, a.Channel),
			Actual:   fmt.Sprintf("%d writes", count),
		}
	}
	return nil
}

// assertTraceContains checks that an event matches channel, kind and, when
// given, value and proc.
func assertTraceContains(result *Result, a Assertion, actx *AssertionContext) error {
	var want ir.Value
	if a.Value != nil {
		ch, err := channelOf(actx.Network, a.Channel)
		if err != nil {
			return err
		}
		if want, err = ir.FromNative(ch.Type, a.Value); err != nil {
			return fmt.Errorf("expected value: %w", err)
		}
	}

	for _, ev := range result.Trace {
		if ev.Channel != a.Channel || string(ev.Kind) != a.Kind {
			continue
		}
		if a.Proc != "" && ev.Proc != a.Proc {
			continue
		}
		if want != nil && !ir.Equal(ev.Value, want) {
			continue
		}
		return nil
	}

	expected := fmt.Sprintf("%s on %s", a.Kind, a.Channel)
	if want != nil {
		expected += fmt.Sprintf(" of %s", want)
	}
	if a.Proc != "" {
		expected += fmt.Sprintf(" by %s", a.Proc)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    channelEvents(result.Trace, a.Channel),
	}
}

// assertProcState checks a proc's saved state using subset semantics.
func assertProcState(result *Result, a Assertion, actx *AssertionContext) error {
	p, ok := actx.Network.Proc(a.Proc)
	if !ok {
		return fmt.Errorf("unknown proc %q", a.Proc)
	}
	state := result.State[a.Proc]

	names := make([]string, 0, len(a.State))
	for name := range a.State {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		idx := slices.IndexFunc(p.State, func(s ir.StateElement) bool { return s.Name == name })
		if idx < 0 {
			return fmt.Errorf("proc %s has no state element %q", a.Proc, name)
		}
		elemType := p.State[idx].Type
		want, err := ir.FromNative(elemType, a.State[name])
		if err != nil {
			return fmt.Errorf("expected %s: %w", name, err)
		}
		got, err := ir.FromNative(elemType, state[name])
		if err != nil {
			return fmt.Errorf("state %s: %w", name, err)
		}
		if !ir.Equal(got, want) {
			return &AssertionError{
				Type:     AssertProcState,
				Expected: fmt.Sprintf("%s.%s = %s", a.Proc, name, want),
				Actual:   got.String(),
			}
		}
	}
	return nil
}

func channelOf(n *ir.Network, name string) (*ir.Channel, error) {
	ch, ok := n.Channel(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownChannel, name)
	}
	return ch, nil
}

func channelEvents(trace []engine.ChannelEvent, channel string) []engine.ChannelEvent {
	var out []engine.ChannelEvent
	for _, ev := range trace {
		if ev.Channel == channel {
			out = append(out, ev)
		}
	}
	return out
}

func formatValues(vs []ir.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
