//go:build integration

package accounts

import (
	"context"
	"testing"

	"github.com/jgreer/markhound/internal/testutil"
)

func TestPostgres_SuspendIsIdempotent(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO users (id, plan, status) VALUES ('u1', 'basic', 'active')`); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	store := NewPostgresStore(db)

	if err := store.Suspend(ctx, "u1"); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	// Second suspension affects zero rows but is not an error.
	if err := store.Suspend(ctx, "u1"); err != nil {
		t.Fatalf("re-Suspend failed: %v", err)
	}

	status, err := store.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status != StatusSuspended {
		t.Errorf("got status %q, want suspended", status)
	}
}

func TestPostgres_SuspendUnknownUser(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	if err := store.Suspend(context.Background(), "ghost"); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
