package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/durable/internal/ir"
)

// checkExpect compares the final outcome with the expect clause.
func checkExpect(r *Result, e Expect) {
	if r.Outcome != e.Outcome {
		r.AddError(fmt.Sprintf("expect.outcome: got %q, want %q", r.Outcome, e.Outcome))
	}
	if e.Output != nil && !canonicalEqual(r.Output, e.Output) {
		r.AddError(fmt.Sprintf("expect.output: got %s, want %s", canonicalString(r.Output), canonicalString(e.Output)))
	}
	if e.CustomStatus != nil && !canonicalEqual(r.CustomStatus, e.CustomStatus) {
		r.AddError(fmt.Sprintf("expect.custom_status: got %s, want %s",
			canonicalString(r.CustomStatus), canonicalString(e.CustomStatus)))
	}
	if e.Error != "" && !strings.Contains(r.Error, e.Error) {
		r.AddError(fmt.Sprintf("expect.error: %q does not contain %q", r.Error, e.Error))
	}
	if e.Passes != 0 && len(r.Trace) != e.Passes {
		r.AddError(fmt.Sprintf("expect.passes: got %d, want %d", len(r.Trace), e.Passes))
	}
}

// canonicalEqual compares values by their canonical JSON, so that YAML
// integers match decoded JSON numbers.
func canonicalEqual(a, b any) bool {
	ca, err := ir.MarshalCanonical(a)
	if err != nil {
		return false
	}
	cb, err := ir.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

func canonicalString(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
