package orchestration

import "sync"

// Output is the buffer orchestration logic writes its return values to.
// Safe for concurrent use.
type Output struct {
	mu    sync.Mutex
	items []any
}

// NewOutput creates an empty output buffer.
func NewOutput() *Output {
	return &Output{}
}

// Emit appends values in order.
func (o *Output) Emit(values ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, values...)
}

// Items returns a copy of the emitted values.
func (o *Output) Items() []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]any, len(o.items))
	copy(out, o.items)
	return out
}

// Reset discards all emitted values.
func (o *Output) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = nil
}

// ReturnValue normalizes emitted values into a single result:
// no values is nil, one value is that value, several values are returned as
// a slice in emission order.
func ReturnValue(items []any) any {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return items[0]
	default:
		out := make([]any, len(items))
		copy(out, items)
		return out
	}
}
