package testutil

// DefaultInstanceID is used when a scenario does not name its instance.
const DefaultInstanceID = "test-instance-default"

// FixedInstanceGenerator generates the same instance ID every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario run twice produces byte-identical payloads and journals.
//
// Unlike durable.FixedGenerator which returns IDs in sequence, this
// generator always returns the same ID.
//
// Thread-safety: FixedInstanceGenerator is stateless and safe for concurrent use.
type FixedInstanceGenerator struct {
	id string
}

// NewFixedInstanceGenerator creates a new fixed instance ID generator.
//
// The ID is typically set in the scenario YAML:
//
//	instance_id: "order-0001"
//
// If id is empty, Generate() returns DefaultInstanceID.
func NewFixedInstanceGenerator(id string) *FixedInstanceGenerator {
	if id == "" {
		id = DefaultInstanceID
	}
	return &FixedInstanceGenerator{id: id}
}

// Generate returns the fixed instance ID.
//
// Implements durable.InstanceIDGenerator.
func (g *FixedInstanceGenerator) Generate() string {
	return g.id
}
