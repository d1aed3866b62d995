// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/docportal/internal/model"
)

// UserRepository is the credential store consulted at login and whenever a
// user's access label has to be re-derived.
type UserRepository interface {
	// GetByUsername loads a user by username. Returns errs.ErrNotFound when absent.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
