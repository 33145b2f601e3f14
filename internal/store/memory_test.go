package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"meetsched/internal/models"
)

func TestMemoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	alice := &models.Employee{Name: "Alice Uwase", Email: "Alice@Example.com", EncryptedToken: "sealed"}
	if err := m.Create(ctx, alice); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if alice.ID == "" || alice.CreatedAt.IsZero() {
		t.Fatal("expected id and created_at to be assigned")
	}
	if alice.Email != "alice@example.com" {
		t.Fatalf("expected email stored lower-cased, got %q", alice.Email)
	}

	byName, err := m.FindByName(ctx, " alice uwase ")
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if byName.ID != alice.ID {
		t.Fatalf("expected %s, got %s", alice.ID, byName.ID)
	}

	byEmail, err := m.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if byEmail.Email != "alice@example.com" {
		t.Fatalf("expected lower-cased email, got %q", byEmail.Email)
	}
	if byEmail.EncryptedToken != "sealed" {
		t.Fatalf("unexpected token %q", byEmail.EncryptedToken)
	}
}

func TestMemoryNotFoundAndDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.FindByName(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := m.Create(ctx, &models.Employee{Name: "A", Email: "a@example.com"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := m.Create(ctx, &models.Employee{Name: "B", Email: "A@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMemoryListOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	_ = m.Create(ctx, &models.Employee{Name: "Second", Email: "b@example.com", CreatedAt: base.Add(time.Hour)})
	_ = m.Create(ctx, &models.Employee{Name: "First", Email: "a@example.com", CreatedAt: base})

	list, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "First" || list[1].Name != "Second" {
		t.Fatalf("unexpected order %+v", list)
	}
}
