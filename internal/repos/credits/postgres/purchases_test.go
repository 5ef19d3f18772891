package credits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/pgtestutil"
	"github.com/fastprodman/pulsecards/internal/repos/credits"
)

func TestPurchases_InsertLockTransition(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	pgtestutil.SeedUser(t, db, "p-1", 0)

	repo := NewPurchases(db)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := repo.Insert(ctx, tx, credits.Purchase{
		UserID: "p-1", PackageID: "small", Amount: 50, CostCents: 499, PaymentIntentID: "pi_1",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if p.Status != credits.PurchasePending {
		t.Fatalf("new purchase status: want pending, got %s", p.Status)
	}

	locked, err := repo.LockByPaymentIntent(ctx, tx, "pi_1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if locked.ID != p.ID || locked.Amount != 50 {
		t.Fatalf("locked purchase mismatch: %+v", locked)
	}

	ok, err := repo.Transition(ctx, tx, p.ID, credits.PurchasePending, credits.PurchaseCompleted)
	if err != nil || !ok {
		t.Fatalf("pending->completed: ok=%v err=%v", ok, err)
	}

	// One-way: a completed purchase never moves again.
	ok, err = repo.Transition(ctx, tx, p.ID, credits.PurchasePending, credits.PurchaseFailed)
	if err != nil || ok {
		t.Fatalf("second transition: ok=%v err=%v", ok, err)
	}

	_, err = repo.LockByPaymentIntent(ctx, tx, "pi_missing")
	if !errors.Is(err, credits.ErrPurchaseNotFound) {
		t.Fatalf("missing intent: want ErrPurchaseNotFound, got %v", err)
	}
}

func TestPurchases_DuplicateIntent(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	pgtestutil.SeedUser(t, db, "p-2", 0)

	repo := NewPurchases(db)
	ctx := t.Context()

	for i, wantErr := range []error{nil, credits.ErrDuplicatePurchase} {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}

		_, err = repo.Insert(ctx, tx, credits.Purchase{
			UserID: "p-2", PackageID: "small", Amount: 50, CostCents: 499, PaymentIntentID: "pi_dup",
		})
		if !errors.Is(err, wantErr) {
			_ = tx.Rollback()
			t.Fatalf("insert #%d: want %v, got %v", i, wantErr, err)
		}

		if err != nil {
			_ = tx.Rollback()
			continue
		}

		err = tx.Commit()
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
}
