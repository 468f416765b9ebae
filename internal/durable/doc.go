// Package durable is the entry point of durable function support.
//
// The Controller sits between the function invocation pipeline and the
// replay core. It receives the function's durable classification from the
// binding discovery collaborator, builds a fresh orchestration context from
// the host payload before each invocation, runs one replay pass for
// orchestrator functions and packages activity output under the reserved
// result key.
package durable
