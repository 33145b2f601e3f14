// Package store persists employee identities and their encrypted refresh tokens.
package store

import (
	"context"
	"errors"

	"meetsched/internal/models"
)

var (
	ErrNotFound  = errors.New("employee not found")
	ErrDuplicate = errors.New("employee email already exists")
)

// Store is the identity lookup used by the scheduler.
type Store interface {
	Create(ctx context.Context, e *models.Employee) error
	FindByName(ctx context.Context, name string) (models.Employee, error)
	FindByEmail(ctx context.Context, email string) (models.Employee, error)
	List(ctx context.Context) ([]models.Employee, error)
	Ping(ctx context.Context) error
}
