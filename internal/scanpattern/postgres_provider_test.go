//go:build integration

package scanpattern

import (
	"context"
	"testing"

	"github.com/jgreer/markhound/internal/testutil"
)

func TestPostgres_ActivityCounts(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	seed := `
		INSERT INTO scan_sessions (id, user_id, status, started_at) VALUES
		('s1', 'u1', 'active',    NOW() - INTERVAL '10 minutes'),
		('s2', 'u1', 'completed', NOW() - INTERVAL '30 minutes'),
		('s3', 'u1', 'completed', NOW() - INTERVAL '5 hours'),
		('s4', 'u1', 'completed', NOW() - INTERVAL '30 hours'),
		('s5', 'u2', 'active',    NOW() - INTERVAL '1 minute')`
	if _, err := db.ExecContext(ctx, seed); err != nil {
		t.Fatalf("seed sessions: %v", err)
	}

	provider := NewPostgresProvider(db)
	activity, err := provider.Activity(ctx, "u1")
	if err != nil {
		t.Fatalf("Activity failed: %v", err)
	}

	if activity.LastHour != 2 {
		t.Errorf("lastHour = %d, want 2", activity.LastHour)
	}
	if activity.Last24h != 3 {
		t.Errorf("last24h = %d, want 3", activity.Last24h)
	}
	if activity.ActiveSessions != 1 {
		t.Errorf("activeSessions = %d, want 1", activity.ActiveSessions)
	}
}
