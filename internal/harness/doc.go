// Package harness runs scripted orchestrations through the durable
// controller against a simulated host.
//
// A scenario scripts orchestration logic as steps, stubs the outcomes of the
// activities and external events it waits on, and states the final outcome.
// The harness plays the host: it runs a pass, journals it, appends history
// for the newly requested actions, and runs the next pass until the instance
// completes, fails, or waits on something the scenario never provides.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: approval
//	description: "Order waits for approval after pricing"
//	input: { order: 7 }
//	steps:
//	  - call_activity: Price
//	    input: $input
//	    save_as: price
//	  - set_status: awaiting approval
//	  - wait_event: Approved
//	  - timer: 30m
//	  - emit: $price
//	activities:
//	  Price: { result: 42 }
//	events:
//	  Approved: true
//	expect:
//	  outcome: completed
//	  output: 42
//	assertions:
//	  - type: trace_order
//	    actions: [Price, Approved, timer]
//	  - type: final_state
//	    table: instances
//	    where: { id: test-instance-default }
//	    expect: { status: completed }
//
// # Assertion Types
//
//   - trace_contains: an action was requested, optionally with an input
//   - trace_order: actions were requested in the given order
//   - trace_count: an action was requested exactly N times
//   - final_state: a journal row holds the expected values
//
// # Deterministic Testing
//
// Every run uses a fixed instance ID, a fixed start time and a deterministic
// clock for event timestamps, so traces are identical across runs and can be
// compared against golden files.
package harness
