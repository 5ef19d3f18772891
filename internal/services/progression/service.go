package progression

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
	"github.com/fastprodman/pulsecards/internal/repos/rewards"
	pgrewards "github.com/fastprodman/pulsecards/internal/repos/rewards/postgres"
	"github.com/fastprodman/pulsecards/internal/repos/users"
	pgusers "github.com/fastprodman/pulsecards/internal/repos/users/postgres"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/google/uuid"
)

var (
	ErrInvalidAmount  = errors.New("xp amount must be between 1 and 1000000")
	ErrRewardNotFound = rewards.ErrRewardNotFound
	ErrAlreadyClaimed = rewards.ErrAlreadyClaimed
)

const (
	maxReasonLen = 200
	maxAward     = 1_000_000
)

type Service struct {
	db       *sql.DB
	users    users.Users
	rewards  rewards.Rewards
	credits  *credits.Service
	lockWait time.Duration
	log      *slog.Logger
}

func New(db *sql.DB, creditsSvc *credits.Service, cfg config.EconomyConfig) *Service {
	return &Service{
		db:       db,
		users:    pgusers.New(db),
		rewards:  pgrewards.New(db),
		credits:  creditsSvc,
		lockWait: cfg.LockWaitTimeout,
		log:      logging.Component("progression"),
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}

type Award struct {
	XP            int64
	TotalXPEarned int64
	Level         int
	PreviousLevel int
	LeveledUp     bool
	NextLevelXP   int64
	NewRewards    []rewards.Reward
}

// AwardXP adds XP and, on a level up, unlocks the milestones defined for
// the new level. Concurrent awards for one user serialise on the user row.
func (s *Service) AwardXP(ctx context.Context, userID string, amount int64, reason string) (Award, error) {
	if amount <= 0 || amount > maxAward {
		return Award{}, ErrInvalidAmount
	}

	reason = truncate(strings.TrimSpace(reason), maxReasonLen)
	if reason == "" {
		reason = "unspecified"
	}

	var out Award

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		terr := s.users.Ensure(ctx, tx, userID)
		if terr != nil {
			return terr
		}

		p, terr := s.users.LockProgress(ctx, tx, userID)
		if terr != nil {
			return terr
		}

		out.PreviousLevel = p.Level

		if p.XP > math.MaxInt64-amount || p.TotalXPEarned > math.MaxInt64-amount {
			return ErrInvalidAmount
		}

		p.XP += amount
		p.TotalXPEarned += amount
		p.Level = max(p.Level, LevelForXP(p.XP))

		out.LeveledUp = p.Level > out.PreviousLevel
		if out.LeveledUp {
			p.LevelUpNotification = true

			milestones, merr := s.rewards.MilestonesForLevel(ctx, tx, p.Level)
			if merr != nil {
				return merr
			}

			for _, m := range milestones {
				r, created, gerr := s.rewards.Grant(ctx, tx, userID, m)
				if gerr != nil {
					return gerr
				}
				if created {
					out.NewRewards = append(out.NewRewards, r)
				}
			}
		}

		terr = s.users.UpdateProgress(ctx, tx, p)
		if terr != nil {
			return terr
		}

		terr = s.rewards.RecordXP(ctx, tx, userID, amount, reason)
		if terr != nil {
			return terr
		}

		out.XP = p.XP
		out.TotalXPEarned = p.TotalXPEarned
		out.Level = p.Level
		out.NextLevelXP = XPForLevel(p.Level + 1)

		return nil
	}, pgutils.WithLockTimeout(s.lockWait))
	if err != nil {
		return Award{}, fmt.Errorf("award xp: %w", err)
	}

	if out.LeveledUp {
		s.log.Info("level up",
			"user_id", userID, "from", out.PreviousLevel, "to", out.Level, "rewards", len(out.NewRewards))
	}

	return out, nil
}

type Claim struct {
	Reward         rewards.Reward
	CreditsAwarded int64
}

// ClaimReward claims an unlocked reward once, paying its credits if any.
func (s *Service) ClaimReward(ctx context.Context, rewardID uuid.UUID, userID string) (Claim, error) {
	var out Claim

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, terr := s.users.LockProgress(ctx, tx, userID)
		if errors.Is(terr, users.ErrUserNotFound) {
			return ErrRewardNotFound
		}
		if terr != nil {
			return terr
		}

		r, terr := s.rewards.LockForUser(ctx, tx, rewardID, userID)
		if terr != nil {
			return terr
		}
		if r.Claimed {
			return ErrAlreadyClaimed
		}

		out.Reward, terr = s.rewards.MarkClaimed(ctx, tx, r.ID)
		if terr != nil {
			return terr
		}

		if credit := r.Milestone.RewardCredits; credit > 0 {
			_, terr = s.credits.Apply(ctx, tx, creditsrepo.Entry{
				UserID:      userID,
				Amount:      credit,
				Type:        creditsrepo.TxBonus,
				Description: "level reward: " + r.Milestone.Title,
				Metadata:    map[string]any{"rewardId": r.ID.String(), "level": r.Milestone.Level},
			})
			if terr != nil {
				return terr
			}

			out.CreditsAwarded = credit
		}

		left, terr := s.rewards.CountUnclaimed(ctx, tx, userID)
		if terr != nil {
			return terr
		}
		if left == 0 {
			return s.users.SetLevelUpNotification(ctx, tx, userID, false)
		}

		return nil
	}, pgutils.WithLockTimeout(s.lockWait))
	if err != nil {
		if pgutils.IsContention(err) {
			return Claim{}, fmt.Errorf("%w: %w", credits.ErrTransactionInProgress, err)
		}

		return Claim{}, fmt.Errorf("claim reward: %w", err)
	}

	if out.CreditsAwarded > 0 {
		s.credits.RefreshBalance(ctx, userID)
	}

	return out, nil
}

type Summary struct {
	Level               int
	XP                  int64
	TotalXPEarned       int64
	CurrentLevelXP      int64
	NextLevelXP         int64
	ProgressPercent     int
	LevelUpNotification bool
	UnclaimedRewards    []rewards.Reward
}

func (s *Service) Progress(ctx context.Context, userID string) (Summary, error) {
	p, err := s.users.GetProgress(ctx, userID)
	if errors.Is(err, users.ErrUserNotFound) {
		p = users.Progress{UserID: userID, Level: 1}
	} else if err != nil {
		return Summary{}, fmt.Errorf("progress: %w", err)
	}

	all, err := s.rewards.ListForUser(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("progress: %w", err)
	}

	out := Summary{
		Level:               p.Level,
		XP:                  p.XP,
		TotalXPEarned:       p.TotalXPEarned,
		CurrentLevelXP:      XPForLevel(p.Level),
		NextLevelXP:         XPForLevel(p.Level + 1),
		LevelUpNotification: p.LevelUpNotification,
	}

	if span := out.NextLevelXP - out.CurrentLevelXP; span > 0 {
		pct := (p.XP - out.CurrentLevelXP) * 100 / span
		out.ProgressPercent = int(min(max(pct, 0), 100))
	}

	for _, r := range all {
		if !r.Claimed {
			out.UnclaimedRewards = append(out.UnclaimedRewards, r)
		}
	}

	return out, nil
}
