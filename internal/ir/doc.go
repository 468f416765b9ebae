// Package ir computes canonical encodings and fingerprints of pass results.
//
// Fingerprints let the replay tooling compare two passes over the same
// history without caring about map iteration order or encoder whitespace:
// the batches are encoded as RFC 8785 canonical JSON and hashed with
// SHA-256 under a versioned domain prefix.
//
// This package imports nothing internal.
package ir
