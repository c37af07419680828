package transcribe

import (
	"context"
	"testing"
	"time"
)

func TestGate_CooldownRejectsUntilExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	g := NewGate(0, 0, time.Minute)
	g.now = func() time.Time { return now }

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("fresh gate should admit: %v", err)
	}

	g.Trip()
	if err := g.Acquire(context.Background()); KindOf(err) != KindQuotaExceeded {
		t.Fatalf("expected quota_exceeded during cooldown, got %v", err)
	}

	now = now.Add(30 * time.Second)
	g.Trip() // must not extend the cooldown
	now = now.Add(31 * time.Second)
	if err := g.Acquire(context.Background()); err != nil {
		t.Errorf("expected gate to reopen after the cooldown, got %v", err)
	}
}

func TestGate_NilAdmitsEverything(t *testing.T) {
	var g *Gate
	g.Trip()
	if err := g.Acquire(context.Background()); err != nil {
		t.Errorf("nil gate should admit, got %v", err)
	}
}

func TestGate_RateLimitHonoursContext(t *testing.T) {
	g := NewGate(0.001, 1, time.Minute)
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("first token should be available: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Acquire(ctx)
	if KindOf(err) != KindCanceled {
		t.Errorf("expected canceled while waiting for a token, got %v", err)
	}
}

func TestGateRegistry_KeyedByCredential(t *testing.T) {
	r := NewGateRegistry(0, 0, time.Minute)

	a1, err := r.For("key-a")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := r.For("key-a")
	b, _ := r.For("key-b")

	if a1 != a2 {
		t.Error("same credential must share a gate")
	}
	if a1 == b {
		t.Error("different credentials must not share a gate")
	}
	if _, ok := r.gates["key-a"]; ok {
		t.Error("credentials must not be stored in the clear")
	}

	a1.Trip()
	if err := b.Acquire(context.Background()); err != nil {
		t.Errorf("tripping one credential must not block another: %v", err)
	}

	if _, err := r.For(""); err == nil {
		t.Error("expected error for empty credential")
	}
}
