// Package harness runs conformance scenarios against the interpreter.
//
// A scenario names a network, the values fed to its input channels, how
// far to run it, and what must hold afterwards. Every scenario runs on a
// fresh engine with a deterministic clock and run ID, recording into an
// isolated in-memory store, so identical scenarios produce identical traces.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	network: ../networks/accumulator.cue   # relative to the scenario file
//	inputs:                                 # written before the first round
//	  in: [1, 2, 3]
//	generators:                             # read lazily by procs
//	  seed: [7, 8]
//	run:
//	  mode: until_output                    # ticks | until_output | until_blocked
//	  outputs: { out: 3 }                   # until_output only
//	  ticks: 4                              # ticks only
//	  max_ticks: 100
//	expect:
//	  ticks: 3
//	  error: deadlock                       # omitted means no error
//	replay: true                            # replay the recorded run
//	assertions:
//	  - type: channel_values
//	    channel: out
//	    values: [1, 3, 6]
//
// # Assertion Types
//
//   - channel_values: values queued on a channel when the run ends
//   - written_values: every value written to a channel, in order
//   - write_count: number of writes to a channel
//   - trace_contains: some event matches channel, kind and optionally value/proc
//   - proc_state: subset match on a proc's saved state
//
// Values are written the way the network file writes them: integers for
// bits, lists for tuples and arrays, "token" for tokens.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/accumulator.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
