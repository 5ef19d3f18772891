package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/metrics"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/payments"
	"github.com/fastprodman/pulsecards/internal/repos/counters"
	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
	pgcredits "github.com/fastprodman/pulsecards/internal/repos/credits/postgres"
	"github.com/fastprodman/pulsecards/internal/repos/users"
	pgusers "github.com/fastprodman/pulsecards/internal/repos/users/postgres"
)

// Service is the only writer of credit balances. Postgres holds the balance
// and its ledger; the counter store keeps a versioned mirror that is
// refreshed after every commit and dropped whenever a write fails.
type Service struct {
	db        *sql.DB
	users     users.Users
	balances  creditsrepo.Balances
	ledger    creditsrepo.Ledger
	purchases creditsrepo.Purchases
	cache     counters.Store
	gateway   payments.Gateway
	cfg       config.EconomyConfig
	log       *slog.Logger
}

func New(db *sql.DB, cache counters.Store, gateway payments.Gateway, cfg config.EconomyConfig) *Service {
	return &Service{
		db:        db,
		users:     pgusers.New(db),
		balances:  pgcredits.NewBalances(db),
		ledger:    pgcredits.NewLedger(db),
		purchases: pgcredits.NewPurchases(db),
		cache:     cache,
		gateway:   gateway,
		cfg:       cfg,
		log:       logging.Component("credits"),
	}
}

// GetCredits serves the mirror when it has the user and falls back to
// Postgres otherwise, creating the account with the default grant.
func (s *Service) GetCredits(ctx context.Context, userID string) (int64, error) {
	cached, err := s.cache.GetBalance(ctx, userID)
	if err == nil {
		return cached.Credits, nil
	}
	if !errors.Is(err, counters.ErrMiss) {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		s.log.Warn("balance cache read failed", "user_id", userID, logging.Err(err))
	}

	b, err := s.loadBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get credits: %w", err)
	}

	s.cacheBalance(ctx, userID, b)

	return b.Credits, nil
}

// HasEnoughCredits gates spending, so it reads Postgres and never the mirror.
func (s *Service) HasEnoughCredits(ctx context.Context, userID string, amount int64) (bool, error) {
	b, err := s.loadBalance(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("has enough credits: %w", err)
	}

	return b.Credits >= amount, nil
}

// loadBalance reads the stored balance, opening the account on first use.
func (s *Service) loadBalance(ctx context.Context, userID string) (creditsrepo.Balance, error) {
	b, err := s.balances.Get(ctx, s.db, userID)
	if !errors.Is(err, creditsrepo.ErrBalanceNotFound) {
		return b, err
	}

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, terr := s.ensureAccount(ctx, tx, userID)
		if terr != nil {
			return terr
		}

		b, terr = s.balances.Get(ctx, tx, userID)
		return terr
	})

	return b, err
}

// UseCredits debits amount as USAGE. It reports false without touching
// anything when the balance is short.
func (s *Service) UseCredits(ctx context.Context, userID string, amount int64, description string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	_, err := s.applyOne(ctx, creditsrepo.Entry{
		UserID:      userID,
		Amount:      -amount,
		Type:        creditsrepo.TxUsage,
		Description: description,
	})
	if errors.Is(err, ErrInsufficientCredits) {
		metrics.CreditOperations.WithLabelValues(string(creditsrepo.TxUsage), "insufficient").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("use credits: %w", err)
	}

	return true, nil
}

// AddCredits credits amount and returns the new balance.
func (s *Service) AddCredits(
	ctx context.Context, userID string, amount int64, typ creditsrepo.TxType, description string,
) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := s.applyOne(ctx, creditsrepo.Entry{
		UserID:      userID,
		Amount:      amount,
		Type:        typ,
		Description: description,
	})
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}

	return balance, nil
}

// ChargeGeneration takes the fixed image generation price.
func (s *Service) ChargeGeneration(ctx context.Context, userID string) (bool, error) {
	return s.UseCredits(ctx, userID, s.cfg.GenerationCost, "image generation")
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]creditsrepo.Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	entries, err := s.ledger.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return entries, nil
}

// applyOne runs a single ledger entry in its own transaction and keeps the
// mirror in step with the outcome.
func (s *Service) applyOne(ctx context.Context, e creditsrepo.Entry) (int64, error) {
	var balance int64

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var aerr error
		balance, aerr = s.Apply(ctx, tx, e)
		return aerr
	}, pgutils.WithLockTimeout(s.cfg.LockWaitTimeout))
	if err != nil {
		s.InvalidateBalance(context.WithoutCancel(ctx), e.UserID)
		metrics.CreditOperations.WithLabelValues(string(e.Type), "failed").Inc()

		if pgutils.IsContention(err) {
			return 0, fmt.Errorf("%w: %w", ErrTransactionInProgress, err)
		}

		return 0, err
	}

	metrics.CreditOperations.WithLabelValues(string(e.Type), "applied").Inc()
	s.RefreshBalance(ctx, e.UserID)

	return balance, nil
}
