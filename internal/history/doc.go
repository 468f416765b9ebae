// Package history models the event history a host hands to one replay pass.
//
// A History is an ordered, append-only sequence of events owned by the host.
// Every pass is built from a freshly decoded history; this package only reads
// it and flips the IsProcessed flags that replay is responsible for.
//
// # Single Start Event
//
// Each history carries exactly one OrchestratorStarted event. Its timestamp
// determinizes the pass clock: orchestration logic reads time from the
// context, never from the wall clock, so every replay of the same history
// observes the same instant. A history with zero or several start events is
// a host contract violation and is rejected with a ContractError before any
// orchestration logic runs.
package history
