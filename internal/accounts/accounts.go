// Package accounts is the boundary to the user-account store.
//
// The abuse engine only needs two things from it: flipping a user's status
// to suspended as an enforcement side effect, and reading the status back.
// Account CRUD lives in the surrounding application.
package accounts

import (
	"context"
	"errors"
)

// Account statuses the abuse engine cares about.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// ErrNotFound is returned when the user does not exist in the account store.
var ErrNotFound = errors.New("accounts: user not found")

// Store reads and enforces account status.
type Store interface {
	// Suspend sets the user's status to suspended. Idempotent: suspending
	// an already-suspended account is a no-op, not an error.
	Suspend(ctx context.Context, userID string) error
	// Status returns the user's current status.
	Status(ctx context.Context, userID string) (string, error)
}
