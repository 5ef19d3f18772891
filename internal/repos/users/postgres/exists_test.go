package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/pgtestutil"
	"github.com/fastprodman/pulsecards/internal/repos/users"
)

func TestUsers_EnsureAndExists(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = repo.Exists(ctx, tx, "u-1")
	if !errors.Is(err, users.ErrUserNotFound) {
		t.Fatalf("before ensure: want ErrUserNotFound, got %v", err)
	}

	// Ensure twice: second call is a no-op.
	for range 2 {
		err = repo.Ensure(ctx, tx, "u-1")
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}

	err = repo.Exists(ctx, tx, "u-1")
	if err != nil {
		t.Fatalf("after ensure: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	p, err := repo.GetProgress(ctx, "u-1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}

	if p.Level != 1 || p.XP != 0 || p.LevelUpNotification {
		t.Fatalf("fresh user progress: got %+v", p)
	}
}
