package store

import (
	"context"
	"fmt"
)

// InstanceState is the journal view of an instance for recovery and replay.
type InstanceState struct {
	Instance    Instance
	Passes      []Pass
	Suspensions int  // Passes that ended suspended
	IsComplete  bool // True if the last pass completed
	IsFailed    bool // True if the last pass failed
}

// GetInstanceState retrieves an instance with all of its passes.
// Returns sql.ErrNoRows (wrapped) if the instance is unknown.
func (s *Store) GetInstanceState(ctx context.Context, instanceID string) (InstanceState, error) {
	inst, err := s.ReadInstance(ctx, instanceID)
	if err != nil {
		return InstanceState{}, fmt.Errorf("get instance state: %w", err)
	}
	passes, err := s.ReadPasses(ctx, instanceID)
	if err != nil {
		return InstanceState{}, fmt.Errorf("get instance state: %w", err)
	}

	state := InstanceState{Instance: inst, Passes: passes}
	for _, p := range passes {
		if p.Outcome == OutcomeSuspended {
			state.Suspensions++
		}
	}
	if n := len(passes); n > 0 {
		state.IsComplete = passes[n-1].Outcome == OutcomeCompleted
		state.IsFailed = passes[n-1].Outcome == OutcomeFailed
	}
	return state, nil
}

// FindIncompleteInstances returns instances whose last pass suspended.
// These are waiting on the host to append outcomes and re-invoke.
func (s *Store) FindIncompleteInstances(ctx context.Context) ([]Instance, error) {
	all, err := s.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("find incomplete instances: %w", err)
	}
	incomplete := []Instance{}
	for _, inst := range all {
		if inst.Status == OutcomeSuspended {
			incomplete = append(incomplete, inst)
		}
	}
	return incomplete, nil
}

// Divergence is a journaled pass whose replay produced a different result.
type Divergence struct {
	Seq      int64  `json:"seq"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Outcome  string `json:"outcome"`
}

// ReplayFunc re-runs a journaled pass and returns the fresh record.
type ReplayFunc func(ctx context.Context, p Pass) (Pass, error)

// VerifyReplay re-runs every pass of an instance and reports the passes
// whose result fingerprint changed. An empty result means replay is
// deterministic for this instance.
func (s *Store) VerifyReplay(ctx context.Context, instanceID string, replay ReplayFunc) ([]Divergence, error) {
	passes, err := s.ReadPasses(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("verify replay: %w", err)
	}

	divergences := []Divergence{}
	for _, stored := range passes {
		fresh, err := replay(ctx, stored)
		if err != nil {
			return nil, fmt.Errorf("verify replay: pass %d: %w", stored.Seq, err)
		}
		if fresh.ResultHash != stored.ResultHash {
			divergences = append(divergences, Divergence{
				Seq:      stored.Seq,
				Expected: stored.ResultHash,
				Actual:   fresh.ResultHash,
				Outcome:  fmt.Sprintf("%s -> %s", stored.Outcome, fresh.Outcome),
			})
		}
	}
	return divergences, nil
}
