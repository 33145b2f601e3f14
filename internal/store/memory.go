package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetsched/internal/models"
)

// Memory is a process-local Store used when no database is configured.
type Memory struct {
	mu        sync.RWMutex
	employees map[string]models.Employee // keyed by lower-cased email
}

func NewMemory() *Memory {
	return &Memory{employees: map[string]models.Employee{}}
}

func (m *Memory) Create(_ context.Context, e *models.Employee) error {
	key := strings.ToLower(strings.TrimSpace(e.Email))
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.employees[key]; exists {
		return ErrDuplicate
	}
	e.Email = key
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.employees[key] = *e
	return nil
}

func (m *Memory) FindByName(_ context.Context, name string) (models.Employee, error) {
	name = strings.TrimSpace(name)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		found models.Employee
		ok    bool
	)
	for _, e := range m.employees {
		if !strings.EqualFold(e.Name, name) {
			continue
		}
		// Oldest record wins, matching the Postgres ordering.
		if !ok || e.CreatedAt.Before(found.CreatedAt) {
			found, ok = e, true
		}
	}
	if !ok {
		return models.Employee{}, ErrNotFound
	}
	return found, nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return models.Employee{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) List(_ context.Context) ([]models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
