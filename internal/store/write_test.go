package store

import (
	"context"
	"testing"
)

func TestWritePass_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := createTestPass(t, "inst-1", 1, OutcomeSuspended)
	inserted, err := s.WritePass(ctx, "hello", p)
	if err != nil {
		t.Fatalf("WritePass() failed: %v", err)
	}
	if !inserted {
		t.Error("first WritePass() should insert")
	}

	got, err := s.ReadPass(ctx, "inst-1", 1)
	if err != nil {
		t.Fatalf("ReadPass() failed: %v", err)
	}
	if got.ID != p.ID || got.ResultHash != p.ResultHash || string(got.Payload) != string(p.Payload) {
		t.Errorf("ReadPass() = %+v, want %+v", got, p)
	}
	if got.Outcome != OutcomeSuspended {
		t.Errorf("Outcome = %q, want suspended", got.Outcome)
	}
}

func TestWritePass_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := createTestPass(t, "inst-1", 1, OutcomeCompleted)
	if _, err := s.WritePass(ctx, "hello", p); err != nil {
		t.Fatalf("first WritePass() failed: %v", err)
	}

	inserted, err := s.WritePass(ctx, "hello", p)
	if err != nil {
		t.Fatalf("second WritePass() failed: %v", err)
	}
	if inserted {
		t.Error("duplicate WritePass() should not insert")
	}

	passes, err := s.ReadPasses(ctx, "inst-1")
	if err != nil {
		t.Fatalf("ReadPasses() failed: %v", err)
	}
	if len(passes) != 1 {
		t.Errorf("len(passes) = %d, want 1", len(passes))
	}
}

func TestWritePass_SameSeqDifferentPayload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestPass(t, "inst-1", 2, OutcomeSuspended)
	if _, err := s.WritePass(ctx, "hello", first); err != nil {
		t.Fatalf("WritePass() failed: %v", err)
	}

	other := createTestPass(t, "inst-1", 1, OutcomeSuspended)
	other.Seq = 2
	other.ID = "different"
	inserted, err := s.WritePass(ctx, "hello", other)
	if err != nil {
		t.Fatalf("WritePass() failed: %v", err)
	}
	if inserted {
		t.Error("a second pass at the same seq should be ignored")
	}

	got, err := s.ReadPass(ctx, "inst-1", 2)
	if err != nil {
		t.Fatalf("ReadPass() failed: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("ReadPass().ID = %q, want original %q", got.ID, first.ID)
	}
}

func TestWritePass_UpdatesInstanceStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for seq, outcome := range []Outcome{OutcomeSuspended, OutcomeSuspended, OutcomeCompleted} {
		if _, err := s.WritePass(ctx, "hello", createTestPass(t, "inst-1", int64(seq+1), outcome)); err != nil {
			t.Fatalf("WritePass(%d) failed: %v", seq+1, err)
		}
	}

	inst, err := s.ReadInstance(ctx, "inst-1")
	if err != nil {
		t.Fatalf("ReadInstance() failed: %v", err)
	}
	want := Instance{ID: "inst-1", Orchestrator: "hello", Status: OutcomeCompleted, LastSeq: 3}
	if inst != want {
		t.Errorf("ReadInstance() = %+v, want %+v", inst, want)
	}
}

func TestWritePass_OlderPassKeepsStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.WritePass(ctx, "hello", createTestPass(t, "inst-1", 2, OutcomeFailed)); err != nil {
		t.Fatalf("WritePass() failed: %v", err)
	}
	if _, err := s.WritePass(ctx, "hello", createTestPass(t, "inst-1", 1, OutcomeSuspended)); err != nil {
		t.Fatalf("WritePass() failed: %v", err)
	}

	inst, err := s.ReadInstance(ctx, "inst-1")
	if err != nil {
		t.Fatalf("ReadInstance() failed: %v", err)
	}
	if inst.Status != OutcomeFailed || inst.LastSeq != 2 {
		t.Errorf("ReadInstance() = %+v, want failed at seq 2", inst)
	}
}

func TestDeleteInstance(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"inst-1", "inst-2"} {
		if _, err := s.WritePass(ctx, "hello", createTestPass(t, id, 1, OutcomeCompleted)); err != nil {
			t.Fatalf("WritePass() failed: %v", err)
		}
	}

	if err := s.DeleteInstance(ctx, "inst-1"); err != nil {
		t.Fatalf("DeleteInstance() failed: %v", err)
	}

	instances, err := s.ListInstances(ctx)
	if err != nil {
		t.Fatalf("ListInstances() failed: %v", err)
	}
	if len(instances) != 1 || instances[0].ID != "inst-2" {
		t.Errorf("ListInstances() = %+v, want only inst-2", instances)
	}
	passes, err := s.ReadPasses(ctx, "inst-1")
	if err != nil {
		t.Fatalf("ReadPasses() failed: %v", err)
	}
	if len(passes) != 0 {
		t.Errorf("len(passes) = %d after delete, want 0", len(passes))
	}
}
