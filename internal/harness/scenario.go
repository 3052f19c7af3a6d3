package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios run a network from known inputs and assert on the resulting
// trace, queues and proc state.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Network is the path of the CUE network file or directory.
	// Relative paths are resolved against the scenario file location.
	Network string `yaml:"network"`

	// Inputs are written to the named channels before the first round.
	Inputs map[string][]any `yaml:"inputs,omitempty"`

	// Generators are attached to the named channels and read lazily.
	Generators map[string][]any `yaml:"generators,omitempty"`

	// Run selects the run-control operation.
	Run RunSpec `yaml:"run"`

	// Expect describes the expected outcome of the run.
	Expect ExpectClause `yaml:"expect,omitempty"`

	// Replay replays the recorded run and fails the scenario when the
	// replayed trace differs.
	Replay bool `yaml:"replay,omitempty"`

	// Assertions validate the final trace, queues and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Run modes.
const (
	ModeTicks        = "ticks"
	ModeUntilOutput  = "until_output"
	ModeUntilBlocked = "until_blocked"
)

// RunSpec selects how far the network is run.
type RunSpec struct {
	// Mode is one of ticks, until_output and until_blocked.
	Mode string `yaml:"mode"`

	// Ticks is the number of Tick calls (ticks mode).
	Ticks int64 `yaml:"ticks,omitempty"`

	// Outputs is the number of writes to wait for per channel
	// (until_output mode).
	Outputs map[string]int64 `yaml:"outputs,omitempty"`

	// MaxTicks bounds until_output and until_blocked runs. Zero means no bound.
	MaxTicks int64 `yaml:"max_ticks,omitempty"`
}

// ExpectClause specifies the expected run outcome.
type ExpectClause struct {
	// Ticks is the expected number of rounds that made progress.
	// If nil, not checked.
	Ticks *int64 `yaml:"ticks,omitempty"`

	// Error is the expected error kind (see ErrorKind). Empty means the
	// run must end without error.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final trace, queues or state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "channel_values": values left queued on Channel equal Values
	// - "written_values": values written to Channel equal Values
	// - "write_count": Channel received exactly Count writes
	// - "trace_contains": an event on Channel of Kind (and Value/Proc) exists
	// - "proc_state": Proc's saved state contains State
	Type string `yaml:"type"`

	Channel string `yaml:"channel,omitempty"`

	// Values are the expected values (channel_values, written_values).
	Values []any `yaml:"values,omitempty"`

	// Count is the expected number of writes (write_count).
	Count int64 `yaml:"count,omitempty"`

	// Kind is "write" or "read" (trace_contains).
	Kind string `yaml:"kind,omitempty"`

	// Value optionally restricts trace_contains to one value.
	Value any `yaml:"value,omitempty"`

	// Proc names the proc (proc_state), or restricts trace_contains to
	// events made by it.
	Proc string `yaml:"proc,omitempty"`

	// State contains expected state element values (proc_state).
	// Subset match - only specified elements are validated.
	State map[string]any `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertChannelValues = "channel_values"
	AssertWrittenValues = "written_values"
	AssertWriteCount    = "write_count"
	AssertTraceContains = "trace_contains"
	AssertProcState     = "proc_state"
)

// LoadScenario reads and parses a scenario YAML file.
// The network path is resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Network != "" && !filepath.IsAbs(scenario.Network) {
		scenario.Network = filepath.Join(filepath.Dir(path), scenario.Network)
	}
	if _, err := os.Stat(scenario.Network); os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid scenario: network not found: %s", scenario.Network)
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML. Paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Network == "" {
		return fmt.Errorf("network is required")
	}

	for ch := range s.Generators {
		if _, ok := s.Inputs[ch]; ok {
			return fmt.Errorf("channel %s has both inputs and a generator", ch)
		}
	}

	if err := s.Run.Validate(); err != nil {
		return err
	}

	switch s.Expect.Error {
	case "", KindDeadlock, KindDeadlineExceeded, KindCapacityExceeded, KindTypeMismatch, KindRuntime:
	default:
		return fmt.Errorf("expect.error: unknown error kind %q", s.Expect.Error)
	}

	if len(s.Assertions) == 0 && s.Expect.Ticks == nil && s.Expect.Error == "" {
		return fmt.Errorf("scenario must have assertions or expectations")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks that the mode and its parameters are consistent.
func (r *RunSpec) Validate() error {
	if r.MaxTicks < 0 {
		return fmt.Errorf("run.max_ticks must be non-negative")
	}
	switch r.Mode {
	case ModeTicks:
		if r.Ticks <= 0 {
			return fmt.Errorf("run.ticks must be positive for mode ticks")
		}
	case ModeUntilOutput:
		if len(r.Outputs) == 0 {
			return fmt.Errorf("run.outputs is required for mode until_output")
		}
		for ch, n := range r.Outputs {
			if n < 0 {
				return fmt.Errorf("run.outputs[%s] must be non-negative", ch)
			}
		}
	case ModeUntilBlocked:
	case "":
		return fmt.Errorf("run.mode is required")
	default:
		return fmt.Errorf("run.mode: unknown mode %q", r.Mode)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertChannelValues, AssertWrittenValues:
		if a.Channel == "" {
			return fmt.Errorf("assertions[%d]: channel is required for %s", index, a.Type)
		}
	case AssertWriteCount:
		if a.Channel == "" {
			return fmt.Errorf("assertions[%d]: channel is required for write_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for write_count", index)
		}
	case AssertTraceContains:
		if a.Channel == "" {
			return fmt.Errorf("assertions[%d]: channel is required for trace_contains", index)
		}
		if a.Kind != "write" && a.Kind != "read" {
			return fmt.Errorf("assertions[%d]: kind must be write or read for trace_contains", index)
		}
	case AssertProcState:
		if a.Proc == "" {
			return fmt.Errorf("assertions[%d]: proc is required for proc_state", index)
		}
		if len(a.State) == 0 {
			return fmt.Errorf("assertions[%d]: state is required for proc_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
