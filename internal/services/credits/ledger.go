package credits

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
)

// Apply is the single durable mutation: lock the balance row, check
// sufficiency for debits, move the balance and append the ledger row.
// It must run inside the caller's transaction.
func (s *Service) Apply(ctx context.Context, tx *sql.Tx, e creditsrepo.Entry) (int64, error) {
	if !e.Type.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidType, e.Type)
	}
	if e.Amount == 0 {
		return 0, ErrInvalidAmount
	}

	_, err := s.ensureAccount(ctx, tx, e.UserID)
	if err != nil {
		return 0, err
	}

	current, err := s.balances.LockAndGet(ctx, tx, e.UserID)
	if err != nil {
		return 0, fmt.Errorf("lock balance: %w", err)
	}

	var balance int64
	if e.Amount < 0 {
		if current < -e.Amount {
			return 0, ErrInsufficientCredits
		}

		balance, err = s.balances.Decrease(ctx, tx, e.UserID, -e.Amount)
	} else {
		balance, err = s.balances.Increase(ctx, tx, e.UserID, e.Amount)
	}
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}

	_, err = s.ledger.Append(ctx, tx, e)
	if err != nil {
		return 0, fmt.Errorf("append ledger: %w", err)
	}

	return balance, nil
}

// LockAccounts locks the balance rows of all users in id order, so two
// transfers between the same pair never wait on each other crosswise.
func (s *Service) LockAccounts(ctx context.Context, tx *sql.Tx, userIDs ...string) (map[string]int64, error) {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		_, err := s.ensureAccount(ctx, tx, id)
		if err != nil {
			return nil, err
		}

		balance, err := s.balances.LockAndGet(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lock balance %s: %w", id, err)
		}

		out[id] = balance
	}

	return out, nil
}

// ensureAccount creates the user and balance rows on first use. A new
// balance starts at the configured default, granted through the ledger.
func (s *Service) ensureAccount(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	err := s.users.Ensure(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	created, err := s.balances.Create(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if !created {
		b, gerr := s.balances.Get(ctx, tx, userID)
		return b.Credits, gerr
	}
	if s.cfg.DefaultBalance <= 0 {
		return 0, nil
	}

	balance, err := s.balances.Increase(ctx, tx, userID, s.cfg.DefaultBalance)
	if err != nil {
		return 0, fmt.Errorf("grant default balance: %w", err)
	}

	_, err = s.ledger.Append(ctx, tx, creditsrepo.Entry{
		UserID:      userID,
		Amount:      s.cfg.DefaultBalance,
		Type:        creditsrepo.TxSystem,
		Description: "initial balance",
	})
	if err != nil {
		return 0, fmt.Errorf("record default balance: %w", err)
	}

	return balance, nil
}
