package conversation

import "testing"

func TestTracker_BeginStepEnd(t *testing.T) {
	tr := NewTracker()

	if _, ok := tr.Step(1); ok {
		t.Fatalf("expected no step for fresh user")
	}

	tr.Begin(1, "auth:await_email", nil)
	step, ok := tr.Step(1)
	if !ok || step != "auth:await_email" {
		t.Fatalf("Step = %q, %v", step, ok)
	}

	tr.End(1)
	if _, ok := tr.Step(1); ok {
		t.Fatalf("expected no step after End")
	}
	// Ending an absent entry is a no-op.
	tr.End(1)
}

func TestTracker_BeginOverwritesPriorFlow(t *testing.T) {
	tr := NewTracker()

	tr.Begin(1, "auth:await_password", map[string]string{"email": "a@example.com"})
	tr.Begin(1, "store:await_quantity", map[string]string{"product_id": "7"})

	step, _ := tr.Step(1)
	if step != "store:await_quantity" {
		t.Fatalf("Step = %q, want store:await_quantity", step)
	}
	if got := tr.Field(1, "email"); got != "" {
		t.Fatalf("expected prior flow fields discarded, got email=%q", got)
	}
	if got := tr.Field(1, "product_id"); got != "7" {
		t.Fatalf("Field(product_id) = %q, want 7", got)
	}
}

func TestTracker_AdvanceKeepsFields(t *testing.T) {
	tr := NewTracker()

	tr.Begin(1, "support:await_subject", nil)
	tr.SetField(1, "subject", "Server down")
	tr.Advance(1, "support:await_message")

	step, ok := tr.Step(1)
	if !ok || step != "support:await_message" {
		t.Fatalf("Step = %q, %v", step, ok)
	}
	if got := tr.Field(1, "subject"); got != "Server down" {
		t.Fatalf("Field(subject) = %q, want Server down", got)
	}
}

func TestTracker_InModule(t *testing.T) {
	tr := NewTracker()
	tr.Begin(1, "servers:await_command", nil)

	if !tr.InModule(1, "servers") {
		t.Fatalf("expected InModule(servers) = true")
	}
	if tr.InModule(1, "store") {
		t.Fatalf("expected InModule(store) = false")
	}
	if tr.InModule(2, "servers") {
		t.Fatalf("expected InModule for unknown user = false")
	}
}

func TestTracker_UsersAreIndependent(t *testing.T) {
	tr := NewTracker()

	tr.Begin(1, "account:await_coupon", nil)
	tr.Begin(2, "auth:await_email", nil)
	tr.End(1)

	if _, ok := tr.Step(1); ok {
		t.Fatalf("user 1 should have no step")
	}
	if step, ok := tr.Step(2); !ok || step != "auth:await_email" {
		t.Fatalf("user 2 step = %q, %v", step, ok)
	}
}
