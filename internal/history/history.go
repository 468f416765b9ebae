package history

// History is the ordered event sequence of one orchestration instance.
//
// Events are held by pointer so that processed flags flipped during a pass
// are visible to every reader of the same history.
type History []*Event

// OrchestratorStarted returns the single start event of the history.
//
// Returns a ContractError when the history is empty, has no start event, or
// has more than one.
func (h History) OrchestratorStarted() (*Event, error) {
	if len(h) == 0 {
		return nil, &ContractError{Code: ErrCodeEmptyHistory, Message: "history has no events"}
	}

	var start *Event
	for _, e := range h {
		if e.EventType != EventOrchestratorStarted {
			continue
		}
		if start != nil {
			return nil, &ContractError{
				Code:    ErrCodeDuplicateStart,
				Message: "history has more than one OrchestratorStarted event",
			}
		}
		start = e
	}

	if start == nil {
		return nil, &ContractError{
			Code:    ErrCodeMissingStart,
			Message: "history has no OrchestratorStarted event",
		}
	}
	return start, nil
}

// FindUnprocessed returns the first unprocessed event accepted by match.
func (h History) FindUnprocessed(match func(*Event) bool) (*Event, bool) {
	for _, e := range h {
		if !e.IsProcessed && match(e) {
			return e, true
		}
	}
	return nil, false
}

// Count returns the number of events of the given type.
func (h History) Count(t EventType) int {
	n := 0
	for _, e := range h {
		if e.EventType == t {
			n++
		}
	}
	return n
}

// NextEventID returns one past the highest event ID in the history.
func (h History) NextEventID() int {
	next := 0
	for _, e := range h {
		if e.EventID >= next {
			next = e.EventID + 1
		}
	}
	return next
}

// Clone returns a deep copy with independent processed flags.
func (h History) Clone() History {
	out := make(History, len(h))
	for i, e := range h {
		c := *e
		if e.FireAt != nil {
			t := *e.FireAt
			c.FireAt = &t
		}
		out[i] = &c
	}
	return out
}
