// Package action holds the durable operations a pass requests and the
// collector that gathers them.
//
// Actions are grouped into batches. A batch is the set of operations
// requested at one sequential yield point of the orchestration logic; the
// batches of a pass are kept in emission order and are never merged or
// reordered.
//
// The Collector is also the rendezvous between the controller and the
// running logic: the logic records batches from its own goroutine, and the
// controller blocks in WaitForActions until either the logic finishes or a
// recorded batch reports that the logic cannot make further progress on the
// current history.
package action
