package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/metrics"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/counters"
	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
	"github.com/fastprodman/pulsecards/internal/repos/referrals"
	pgreferrals "github.com/fastprodman/pulsecards/internal/repos/referrals/postgres"
	"github.com/fastprodman/pulsecards/internal/repos/users"
	pgusers "github.com/fastprodman/pulsecards/internal/repos/users/postgres"
	"github.com/fastprodman/pulsecards/internal/services/credits"
)

var (
	ErrInvalidCode     = errors.New("invalid referral code")
	ErrSelfReferral    = errors.New("cannot use your own referral code")
	ErrAlreadyReferred = referrals.ErrAlreadyReferred
)

const codeAttempts = 5

type Service struct {
	db           *sql.DB
	users        users.Users
	referrals    referrals.Referrals
	cache        counters.Store
	credits      *credits.Service
	welcomeBonus int64
	lockWait     time.Duration
	log          *slog.Logger
}

func New(db *sql.DB, cache counters.Store, creditsSvc *credits.Service, cfg config.EconomyConfig) *Service {
	return &Service{
		db:           db,
		users:        pgusers.New(db),
		referrals:    pgreferrals.New(db),
		cache:        cache,
		credits:      creditsSvc,
		welcomeBonus: cfg.WelcomeBonus,
		lockWait:     cfg.LockWaitTimeout,
		log:          logging.Component("referral"),
	}
}

// Result describes a redeemed code.
type Result struct {
	ReferralID    string `json:"referralId"`
	ReferrerID    string `json:"referrerId"`
	ReferralCount int    `json:"referralCount"`
	ReferrerBonus int64  `json:"referrerBonus"`
	WelcomeBonus  int64  `json:"creditsAwarded"`
}

// GenerateCode returns the user's code, minting one on first call.
func (s *Service) GenerateCode(ctx context.Context, userID string) (string, error) {
	code, err := s.cache.ReferralCode(ctx, userID)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, counters.ErrMiss) {
		metrics.CacheErrors.WithLabelValues("referral_code").Inc()
		s.log.Warn("referral cache read failed", "user_id", userID, logging.Err(err))
	}

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.users.Ensure(ctx, tx, userID)
	})
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	code, err = s.users.GetReferralCode(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	for attempt := 0; code == "" && attempt < codeAttempts; attempt++ {
		candidate, gerr := newCode()
		if gerr != nil {
			return "", fmt.Errorf("generate code: %w", gerr)
		}

		stored, serr := s.users.SetReferralCode(ctx, userID, candidate)
		if pgutils.IsUniqueViolation(serr) {
			continue
		}
		if serr != nil {
			return "", fmt.Errorf("generate code: %w", serr)
		}

		if stored {
			code = candidate
			break
		}

		// a concurrent call stored one first
		code, err = s.users.GetReferralCode(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
	}

	if code == "" {
		return "", fmt.Errorf("generate code: no free code after %d attempts", codeAttempts)
	}

	s.mirrorCode(ctx, userID, code)

	return code, nil
}

// UseCode redeems code for newUserID: the referrer gets the tier bonus for
// its new lifetime count, the new user gets the welcome bonus.
func (s *Service) UseCode(ctx context.Context, code, newUserID string) (Result, error) {
	code = normalizeCode(code)
	if code == "" {
		return Result{}, ErrInvalidCode
	}

	referrerID, err := s.resolve(ctx, code)
	if err != nil {
		return Result{}, err
	}

	if referrerID == newUserID {
		return Result{}, ErrSelfReferral
	}

	var res Result

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		terr := s.users.Ensure(ctx, tx, newUserID)
		if terr != nil {
			return terr
		}

		terr = s.users.LockForReferral(ctx, tx, referrerID)
		if terr != nil {
			return terr
		}

		_, terr = s.credits.LockAccounts(ctx, tx, referrerID, newUserID)
		if terr != nil {
			return terr
		}

		ref, terr := s.referrals.Insert(ctx, tx, referrals.Referral{
			ReferrerID: referrerID,
			RefereeID:  newUserID,
			Code:       code,
		})
		if terr != nil {
			return terr
		}

		count, terr := s.users.IncrementReferralCount(ctx, tx, referrerID)
		if terr != nil {
			return terr
		}

		bonus := TierBonus(count)

		_, terr = s.credits.Apply(ctx, tx, creditsrepo.Entry{
			UserID:      referrerID,
			Amount:      bonus,
			Type:        creditsrepo.TxReferral,
			Description: "referral bonus",
			Metadata:    map[string]any{"referralId": ref.ID.String(), "referralCount": count},
		})
		if terr != nil {
			return terr
		}

		_, terr = s.referrals.InsertBonus(ctx, tx, referrals.Bonus{
			ReferralID: ref.ID, UserID: referrerID, Amount: bonus, Type: referrals.BonusReferrer,
		})
		if terr != nil {
			return terr
		}

		_, terr = s.credits.Apply(ctx, tx, creditsrepo.Entry{
			UserID:      newUserID,
			Amount:      s.welcomeBonus,
			Type:        creditsrepo.TxBonus,
			Description: "referral welcome bonus",
			Metadata:    map[string]any{"referralId": ref.ID.String()},
		})
		if terr != nil {
			return terr
		}

		_, terr = s.referrals.InsertBonus(ctx, tx, referrals.Bonus{
			ReferralID: ref.ID, UserID: newUserID, Amount: s.welcomeBonus, Type: referrals.BonusWelcome,
		})
		if terr != nil {
			return terr
		}

		res = Result{
			ReferralID:    ref.ID.String(),
			ReferrerID:    referrerID,
			ReferralCount: count,
			ReferrerBonus: bonus,
			WelcomeBonus:  s.welcomeBonus,
		}

		return nil
	}, pgutils.WithLockTimeout(s.lockWait))
	if err != nil {
		s.credits.InvalidateBalance(context.WithoutCancel(ctx), referrerID, newUserID)

		if pgutils.IsContention(err) {
			return Result{}, fmt.Errorf("%w: %w", credits.ErrTransactionInProgress, err)
		}

		return Result{}, fmt.Errorf("use referral code: %w", err)
	}

	s.credits.RefreshBalance(ctx, referrerID, newUserID)

	s.log.Info("referral redeemed",
		"referrer_id", referrerID, "referee_id", newUserID,
		"referral_count", res.ReferralCount, "bonus", res.ReferrerBonus)

	return res, nil
}

func (s *Service) resolve(ctx context.Context, code string) (string, error) {
	referrerID, err := s.cache.ReferrerByCode(ctx, code)
	if err == nil {
		return referrerID, nil
	}
	if !errors.Is(err, counters.ErrMiss) {
		metrics.CacheErrors.WithLabelValues("referral_owner").Inc()
		s.log.Warn("referral cache read failed", "code", code, logging.Err(err))
	}

	referrerID, err = s.users.FindByReferralCode(ctx, code)
	if errors.Is(err, users.ErrUserNotFound) {
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", fmt.Errorf("resolve code: %w", err)
	}

	s.mirrorCode(ctx, referrerID, code)

	return referrerID, nil
}

func (s *Service) mirrorCode(ctx context.Context, userID, code string) {
	err := s.cache.SetReferralCode(ctx, userID, code)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("referral_set").Inc()
		s.log.Warn("referral cache write failed", "user_id", userID, logging.Err(err))
	}
}
