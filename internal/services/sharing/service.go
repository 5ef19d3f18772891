package sharing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/repos/counters"
	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
	"github.com/fastprodman/pulsecards/internal/services/credits"
)

var ErrInvalidTarget = errors.New("invalid share target")

const maxTargetLen = 64

// ActionRecorder is notified of every accepted share.
type ActionRecorder interface {
	RecordAction(ctx context.Context, userID, action string) error
}

type Service struct {
	cache   counters.Store
	credits *credits.Service
	actions ActionRecorder
	reward  int64
	limit   int64
	now     func() time.Time
	log     *slog.Logger
}

// New builds the service. actions may be nil.
func New(cache counters.Store, creditsSvc *credits.Service, actions ActionRecorder, cfg config.EconomyConfig) *Service {
	return &Service{
		cache:   cache,
		credits: creditsSvc,
		actions: actions,
		reward:  cfg.ShareReward,
		limit:   cfg.ShareDailyLimit,
		now:     time.Now,
		log:     logging.Component("sharing"),
	}
}

type Result struct {
	Rewarded       bool  `json:"rewarded"`
	CreditsAwarded int64 `json:"creditsAwarded"`
	SharesToday    int64 `json:"sharesToday"`
	Remaining      int64 `json:"remaining"`
}

// RecordShare counts a share for today (UTC) and pays the share reward
// while the user is under the daily limit.
func (s *Service) RecordShare(ctx context.Context, userID, target string) (Result, error) {
	target = strings.TrimSpace(target)
	if target == "" || len(target) > maxTargetLen {
		return Result{}, ErrInvalidTarget
	}

	day := s.now().UTC()
	key := "share:" + userID

	n, err := s.cache.IncrDaily(ctx, key, day)
	if err != nil {
		return Result{}, fmt.Errorf("count share: %w", err)
	}

	res := Result{SharesToday: n, Remaining: max(s.limit-n, 0)}

	if n <= s.limit && s.reward > 0 {
		_, err = s.credits.AddCredits(ctx, userID, s.reward, creditsrepo.TxBonus, "share reward: "+target)
		if err != nil {
			derr := s.cache.DecrDaily(context.WithoutCancel(ctx), key, day)
			if derr != nil {
				s.log.Error("share counter rollback failed", "user_id", userID, logging.Err(derr))
			}

			return Result{}, fmt.Errorf("share reward: %w", err)
		}

		res.Rewarded = true
		res.CreditsAwarded = s.reward
	}

	if s.actions != nil {
		err = s.actions.RecordAction(ctx, userID, "share")
		if err != nil {
			s.log.Warn("share challenge progress failed", "user_id", userID, logging.Err(err))
		}
	}

	return res, nil
}
