package store

import (
	"context"
	"fmt"
)

// WritePass appends a pass to the journal and updates its instance summary.
// Returns inserted=false when a pass with the same (instance, seq) already
// exists; the existing record is left untouched.
//
// orchestrator names the logic that ran the pass; it is recorded on the
// instance the first time the instance is seen.
func (s *Store) WritePass(ctx context.Context, orchestrator string, p Pass) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write pass: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO instances (id, orchestrator, status, last_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			last_seq = excluded.last_seq
		WHERE excluded.last_seq > instances.last_seq
	`,
		p.InstanceID,
		orchestrator,
		string(p.Outcome),
		p.Seq,
	)
	if err != nil {
		return false, fmt.Errorf("write pass: instance: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO passes
		(id, instance_id, seq, payload, payload_hash, outcome, result, result_hash, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		p.ID,
		p.InstanceID,
		p.Seq,
		string(p.Payload),
		p.PayloadHash,
		string(p.Outcome),
		string(p.Result),
		p.ResultHash,
		p.Error,
	)
	if err != nil {
		return false, fmt.Errorf("write pass: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write pass: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write pass: commit: %w", err)
	}
	return rows > 0, nil
}

// DeleteInstance removes an instance and all of its passes.
func (s *Store) DeleteInstance(ctx context.Context, instanceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete instance: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM passes WHERE instance_id = ?`, instanceID); err != nil {
		return fmt.Errorf("delete instance: passes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, instanceID); err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete instance: commit: %w", err)
	}
	return nil
}
