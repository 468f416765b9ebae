// Package orchestration drives one replay pass of orchestration logic.
//
// A pass runs the logic from the beginning against the history the host
// supplied. Work that the history already resolves is answered immediately;
// the first request the history cannot answer records a blocked batch, the
// controller stops the logic, and the pass is reported as not done together
// with every batch requested so far. The host schedules that work, appends
// its outcome to the history, and invokes a fresh pass.
//
// # Determinism
//
// The logic must read time from Context.CurrentTime, which is taken from the
// history's OrchestratorStarted event, and must reach durable state only
// through the Context task methods. Two passes over the same history then
// request identical batches.
//
// # Concurrency
//
// The logic runs in its own goroutine, started by a Handle. The controller
// goroutine blocks in action.Collector.WaitForActions until the logic
// returns or yields. These are the only two actors of a pass.
//
// # Outcomes
//
// Invoke reports exactly one of:
//   - completion: Message{IsDone: true} with the normalized output
//   - suspension: Message{IsDone: false, Output: nil}
//   - failure: a *FailureError carrying the batches and custom status
//     accumulated before the logic failed
package orchestration
