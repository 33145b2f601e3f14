package oauthstate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)

	state, err := m.Issue(ctx)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	ok, err := m.Consume(ctx, state)
	if err != nil || !ok {
		t.Fatalf("expected first consume to succeed, got %v %v", ok, err)
	}
	if ok, _ := m.Consume(ctx, state); ok {
		t.Fatal("expected second consume to fail")
	}
	if ok, _ := m.Consume(ctx, "forged"); ok {
		t.Fatal("expected unknown state to fail")
	}
}

func TestMemoryStateExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	clock := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	state, _ := m.Issue(ctx)
	clock = clock.Add(2 * time.Minute)
	if ok, _ := m.Consume(ctx, state); ok {
		t.Fatal("expected expired state to fail")
	}
}
