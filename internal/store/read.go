package store

import (
	"context"
	"database/sql"
	"fmt"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const passColumns = `id, instance_id, seq, payload, payload_hash, outcome, result, result_hash, error`

func scanPass(row rowScanner) (Pass, error) {
	var p Pass
	var payload, result, outcome string
	err := row.Scan(&p.ID, &p.InstanceID, &p.Seq, &payload, &p.PayloadHash, &outcome, &result, &p.ResultHash, &p.Error)
	if err != nil {
		return Pass{}, err
	}
	p.Payload = []byte(payload)
	p.Result = []byte(result)
	p.Outcome = Outcome(outcome)
	return p, nil
}

// ReadPasses returns every pass of an instance in seq order.
// Returns an empty slice (not nil) if the instance has no passes.
func (s *Store) ReadPasses(ctx context.Context, instanceID string) ([]Pass, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+passColumns+`
		FROM passes
		WHERE instance_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []Pass{}
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return passes, nil
}

// ReadPass retrieves one pass by instance and seq.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadPass(ctx context.Context, instanceID string, seq int64) (Pass, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+passColumns+`
		FROM passes
		WHERE instance_id = ? AND seq = ?
	`, instanceID, seq)
	return scanPass(row)
}

// ReadInstance retrieves one instance summary.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadInstance(ctx context.Context, instanceID string) (Instance, error) {
	var (
		inst   Instance
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, orchestrator, status, last_seq
		FROM instances
		WHERE id = ?
	`, instanceID).Scan(&inst.ID, &inst.Orchestrator, &status, &inst.LastSeq)
	if err != nil {
		return Instance{}, err
	}
	inst.Status = Outcome(status)
	return inst, nil
}

// ListInstances returns every journaled instance ordered by ID.
func (s *Store) ListInstances(ctx context.Context) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, orchestrator, status, last_seq
		FROM instances
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	instances := []Instance{}
	for rows.Next() {
		var (
			inst   Instance
			status string
		)
		if err := rows.Scan(&inst.ID, &inst.Orchestrator, &status, &inst.LastSeq); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		inst.Status = Outcome(status)
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return instances, nil
}

// NextSeq returns the seq the next pass of an instance should use.
func (s *Store) NextSeq(ctx context.Context, instanceID string) (int64, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM passes WHERE instance_id = ?`, instanceID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return last.Int64 + 1, nil
}
