// Package schema validates host history payloads before they reach the
// replay core.
//
// Validation runs in two stages. The payload is first unified with the
// embedded CUE definition #Payload, which checks shape and field types. A
// structurally valid payload is then decoded and checked for the history
// contract: exactly one OrchestratorStarted event, and completions that
// refer to work the history actually scheduled.
//
// Validation is not fail-fast; every problem found is reported.
package schema
