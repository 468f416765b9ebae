package harness

import (
	"context"
	"fmt"

	"github.com/roach88/durable/internal/history"
	"github.com/roach88/durable/internal/schema"
	"github.com/roach88/durable/internal/store"
)

// Replayer returns a store.ReplayFunc that re-runs journaled passes of the
// scenario's orchestration against their stored payloads.
//
// Each call builds a fresh controller, so replays share no state with the
// run that journaled the pass.
func Replayer(scenario *Scenario) (store.ReplayFunc, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, p store.Pass) (store.Pass, error) {
		if err := ctx.Err(); err != nil {
			return store.Pass{}, err
		}

		payload, err := history.Decode(p.Payload)
		if err != nil {
			return store.Pass{}, fmt.Errorf("decode journaled payload: %w", err)
		}

		h := &Harness{
			validator:  validator,
			controller: newController(scenario),
		}
		out, err := h.runPass(payload)
		if err != nil {
			return store.Pass{}, err
		}
		return store.NewPass(p.InstanceID, p.Seq, payload, out.msg, out.err)
	}, nil
}
