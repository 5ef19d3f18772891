package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/fastprodman/pulsecards/internal/infra/metrics"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/payments"
	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
)

type PurchaseIntent struct {
	PurchaseID      string `json:"purchaseId"`
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Amount          int64  `json:"amount"`
	CostCents       int64  `json:"costCents"`
}

type CompletedPurchase struct {
	Purchase creditsrepo.Purchase
	// Credited is false when an earlier call already completed the purchase.
	Credited bool
	Balance  int64
}

func (s *Service) CreatePurchaseIntent(ctx context.Context, userID, packageID string) (PurchaseIntent, error) {
	p, ok := findPackage(packageID)
	if !ok {
		return PurchaseIntent{}, fmt.Errorf("%w: %q", ErrInvalidPackage, packageID)
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, p.CostCents, map[string]string{
		"userId":    userID,
		"packageId": p.ID,
		"credits":   strconv.FormatInt(p.Credits, 10),
	})
	if err != nil {
		return PurchaseIntent{}, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	var purchase creditsrepo.Purchase

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, terr := s.ensureAccount(ctx, tx, userID)
		if terr != nil {
			return terr
		}

		purchase, terr = s.purchases.Insert(ctx, tx, creditsrepo.Purchase{
			UserID:          userID,
			PackageID:       p.ID,
			Amount:          p.Credits,
			CostCents:       p.CostCents,
			PaymentIntentID: intent.ID,
		})
		return terr
	})
	if err != nil {
		return PurchaseIntent{}, fmt.Errorf("record purchase: %w", err)
	}

	s.log.Info("purchase intent created",
		"user_id", userID, "package_id", p.ID, "purchase_id", purchase.ID, "payment_intent_id", intent.ID)

	return PurchaseIntent{
		PurchaseID:      purchase.ID.String(),
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          p.Credits,
		CostCents:       p.CostCents,
	}, nil
}

// CompletePurchase credits a purchase whose payment succeeded. Repeated
// calls for the same intent credit once.
func (s *Service) CompletePurchase(ctx context.Context, paymentIntentID string) (CompletedPurchase, error) {
	intent, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID)
	if errors.Is(err, payments.ErrIntentNotFound) {
		return CompletedPurchase{}, ErrPurchaseNotFound
	}
	if err != nil {
		return CompletedPurchase{}, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	switch intent.Status {
	case payments.StatusSucceeded:
	case payments.StatusCanceled:
		err = s.failPurchase(ctx, paymentIntentID)
		if err != nil {
			return CompletedPurchase{}, err
		}

		return CompletedPurchase{}, fmt.Errorf("%w: payment canceled", ErrPaymentFailed)
	default:
		return CompletedPurchase{}, fmt.Errorf("%w: payment status %s", ErrPaymentFailed, intent.Status)
	}

	var out CompletedPurchase

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, terr := s.purchases.LockByPaymentIntent(ctx, tx, paymentIntentID)
		if terr != nil {
			return terr
		}

		out.Purchase = p

		switch p.Status {
		case creditsrepo.PurchaseCompleted:
			b, gerr := s.balances.Get(ctx, tx, p.UserID)
			out.Balance = b.Credits
			return gerr
		case creditsrepo.PurchaseFailed:
			return fmt.Errorf("%w: purchase already failed", ErrPaymentFailed)
		}

		ok, terr := s.purchases.Transition(ctx, tx, p.ID, creditsrepo.PurchasePending, creditsrepo.PurchaseCompleted)
		if terr != nil {
			return terr
		}
		if !ok {
			return fmt.Errorf("purchase %s changed status concurrently", p.ID)
		}

		out.Balance, terr = s.Apply(ctx, tx, creditsrepo.Entry{
			UserID:      p.UserID,
			Amount:      p.Amount,
			Type:        creditsrepo.TxPurchase,
			Description: "credit package " + p.PackageID,
			Metadata: map[string]any{
				"purchaseId":      p.ID.String(),
				"paymentIntentId": paymentIntentID,
				"costCents":       p.CostCents,
			},
		})
		if terr != nil {
			return terr
		}

		out.Purchase.Status = creditsrepo.PurchaseCompleted
		out.Credited = true

		return nil
	}, pgutils.WithLockTimeout(s.cfg.LockWaitTimeout))
	if err != nil {
		if out.Purchase.UserID != "" {
			s.InvalidateBalance(context.WithoutCancel(ctx), out.Purchase.UserID)
		}
		if pgutils.IsContention(err) {
			return CompletedPurchase{}, fmt.Errorf("%w: %w", ErrTransactionInProgress, err)
		}

		return CompletedPurchase{}, fmt.Errorf("complete purchase: %w", err)
	}

	if out.Credited {
		metrics.CreditOperations.WithLabelValues(string(creditsrepo.TxPurchase), "applied").Inc()
		s.log.Info("purchase completed",
			"user_id", out.Purchase.UserID, "purchase_id", out.Purchase.ID, "credits", out.Purchase.Amount)
	}

	s.RefreshBalance(ctx, out.Purchase.UserID)

	return out, nil
}

func (s *Service) failPurchase(ctx context.Context, paymentIntentID string) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, terr := s.purchases.LockByPaymentIntent(ctx, tx, paymentIntentID)
		if terr != nil {
			return terr
		}

		_, terr = s.purchases.Transition(ctx, tx, p.ID, creditsrepo.PurchasePending, creditsrepo.PurchaseFailed)
		return terr
	})
	if err != nil {
		return fmt.Errorf("fail purchase: %w", err)
	}

	return nil
}
