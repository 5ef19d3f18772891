package credits

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/fastprodman/pulsecards/internal/infra/metrics"
	"github.com/fastprodman/pulsecards/internal/repos/counters"
	"golang.org/x/sync/errgroup"
)

const reconcileWorkers = 8

// Report compares the stored balance with the sum of the user's ledger.
type Report struct {
	UserID    string `json:"userId"`
	Balance   int64  `json:"balance"`
	LedgerSum int64  `json:"ledgerSum"`
}

func (r Report) Consistent() bool {
	return r.Balance == r.LedgerSum
}

// Reconcile checks one user's ledger against the balance row and rewrites
// the mirror from Postgres. A mismatch is returned in the report, not as an error.
func (s *Service) Reconcile(ctx context.Context, userID string) (Report, error) {
	r := Report{UserID: userID}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return Report{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b, err := s.balances.Get(ctx, tx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile %s: %w", userID, err)
	}

	r.Balance = b.Credits

	r.LedgerSum, err = s.ledger.Sum(ctx, tx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile %s: %w", userID, err)
	}

	if !r.Consistent() {
		metrics.LedgerMismatches.Inc()
		s.log.Error("ledger mismatch",
			"user_id", userID, "balance", r.Balance, "ledger_sum", r.LedgerSum)
	}

	// versioned, so a snapshot older than the mirror is ignored
	s.cacheBalance(ctx, userID, b)

	return r, nil
}

// ReconcileAll reconciles every account and returns the inconsistent ones.
func (s *Service) ReconcileAll(ctx context.Context) ([]Report, error) {
	var (
		mu         sync.Mutex
		mismatches []Report
	)

	checked, err := s.forEachAccount(ctx, func(ctx context.Context, userID string) error {
		r, err := s.Reconcile(ctx, userID)
		if err != nil {
			return err
		}

		if !r.Consistent() {
			mu.Lock()
			mismatches = append(mismatches, r)
			mu.Unlock()
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile all: %w", err)
	}

	slices.SortFunc(mismatches, func(a, b Report) int { return strings.Compare(a.UserID, b.UserID) })

	s.log.Info("reconciliation finished", "accounts", checked, "mismatches", len(mismatches))

	return mismatches, nil
}

// RebuildCache rewrites every mirrored balance from Postgres, replacing
// whatever version the mirror held.
func (s *Service) RebuildCache(ctx context.Context) (int, error) {
	n, err := s.forEachAccount(ctx, func(ctx context.Context, userID string) error {
		b, err := s.balances.Get(ctx, s.db, userID)
		if err != nil {
			return err
		}

		err = s.cache.DeleteBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("cache %s: %w", userID, err)
		}

		_, err = s.cache.SetBalance(ctx, userID, counters.CachedBalance{Credits: b.Credits, Version: b.Version})
		if err != nil {
			return fmt.Errorf("cache %s: %w", userID, err)
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rebuild cache: %w", err)
	}

	return n, nil
}

func (s *Service) forEachAccount(ctx context.Context, fn func(context.Context, string) error) (int, error) {
	ids, err := s.balances.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileWorkers)

	for _, id := range ids {
		g.Go(func() error { return fn(gctx, id) })
	}

	err = g.Wait()
	if err != nil {
		return 0, err
	}

	return len(ids), nil
}
