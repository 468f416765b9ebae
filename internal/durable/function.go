package durable

import "encoding/json"

// FunctionType is the durable role of a function.
type FunctionType int

const (
	// FunctionTypeNone is a regular function, possibly a durable client.
	FunctionTypeNone FunctionType = iota
	FunctionTypeOrchestrator
	FunctionTypeActivity
)

func (t FunctionType) String() string {
	switch t {
	case FunctionTypeOrchestrator:
		return "orchestrator"
	case FunctionTypeActivity:
		return "activity"
	default:
		return "none"
	}
}

// FunctionInfo is the durable classification of a function, computed by
// binding discovery.
type FunctionInfo struct {
	Type FunctionType

	// DurableClientBindingName names the durable client input binding.
	// Empty when the function is not an orchestration client.
	DurableClientBindingName string
}

// IsOrchestrationFunction reports whether the function is an orchestrator.
func (f FunctionInfo) IsOrchestrationFunction() bool {
	return f.Type == FunctionTypeOrchestrator
}

// IsActivityFunction reports whether the function is an activity.
func (f FunctionInfo) IsActivityFunction() bool {
	return f.Type == FunctionTypeActivity
}

// IsDurableClient reports whether the function starts or manages
// orchestrations through a durable client binding.
func (f FunctionInfo) IsDurableClient() bool {
	return f.DurableClientBindingName != ""
}

// ParameterBinding is one input binding delivered by the host.
type ParameterBinding struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}
