package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/challenges"
	pgchallenges "github.com/fastprodman/pulsecards/internal/repos/challenges/postgres"
	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
	"github.com/fastprodman/pulsecards/internal/repos/users"
	pgusers "github.com/fastprodman/pulsecards/internal/repos/users/postgres"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/google/uuid"
)

var (
	ErrChallengeNotFound = challenges.ErrChallengeNotFound
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrInvalidIncrement  = errors.New("increment must be positive")
)

type Service struct {
	db         *sql.DB
	challenges challenges.Challenges
	users      users.Users
	credits    *credits.Service
	lockWait   time.Duration
	now        func() time.Time
	log        *slog.Logger
}

func New(db *sql.DB, creditsSvc *credits.Service, cfg config.EconomyConfig) *Service {
	return &Service{
		db:         db,
		challenges: pgchallenges.New(db),
		users:      pgusers.New(db),
		credits:    creditsSvc,
		lockWait:   cfg.LockWaitTimeout,
		now:        time.Now,
		log:        logging.Component("challenges"),
	}
}

// EnsureDay creates the catalog challenges for day. Safe to call repeatedly;
// it reports how many rows were new.
func (s *Service) EnsureDay(ctx context.Context, day time.Time) (int, error) {
	created := 0

	for _, c := range forDay(day) {
		ok, err := s.challenges.InsertIfAbsent(ctx, c)
		if err != nil {
			return created, fmt.Errorf("ensure day: %w", err)
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		s.log.Info("daily challenges created", "day", day.UTC().Format(time.DateOnly), "count", created)
	}

	return created, nil
}

type Status struct {
	Challenge   challenges.Challenge
	Progress    int
	Completed   bool
	CompletedAt *time.Time
}

// Today lists the current UTC day's challenges with userID's progress.
func (s *Service) Today(ctx context.Context, userID string) ([]Status, error) {
	list, err := s.today(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}

	progress, err := s.challenges.ProgressForUser(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("today: %w", err)
	}

	out := make([]Status, 0, len(list))
	for _, c := range list {
		p := progress[c.ID]
		out = append(out, Status{
			Challenge:   c,
			Progress:    p.Progress,
			Completed:   p.Completed,
			CompletedAt: p.CompletedAt,
		})
	}

	return out, nil
}

func (s *Service) today(ctx context.Context) ([]challenges.Challenge, error) {
	day := s.now().UTC()

	list, err := s.challenges.ListForDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("today: %w", err)
	}
	if len(list) > 0 {
		return list, nil
	}

	// the scheduler has not rolled the day over yet
	_, err = s.EnsureDay(ctx, day)
	if err != nil {
		return nil, err
	}

	list, err = s.challenges.ListForDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("today: %w", err)
	}

	return list, nil
}

type Result struct {
	Status
	RequiredCount  int
	JustCompleted  bool
	CreditsAwarded int64
}

// RecordProgress adds increment to the user's progress. Completion is
// rewarded exactly once; progress past the requirement is clamped.
func (s *Service) RecordProgress(ctx context.Context, userID string, challengeID uuid.UUID, increment int) (Result, error) {
	if increment <= 0 {
		return Result{}, ErrInvalidIncrement
	}

	var out Result

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		c, terr := s.challenges.Get(ctx, tx, challengeID)
		if terr != nil {
			return terr
		}

		now := s.now()
		if !now.Before(c.ExpiresAt) {
			return ErrChallengeExpired
		}

		terr = s.users.Ensure(ctx, tx, userID)
		if terr != nil {
			return terr
		}

		p, terr := s.challenges.LockProgress(ctx, tx, userID, challengeID)
		if terr != nil {
			return terr
		}

		out.Challenge = c
		out.RequiredCount = c.RequiredCount

		if !p.Completed {
			p.Progress = min(p.Progress+increment, c.RequiredCount)

			if p.Progress >= c.RequiredCount {
				p.Completed = true
				p.CompletedAt = &now
				out.JustCompleted = true
			}

			terr = s.challenges.SaveProgress(ctx, tx, p)
			if terr != nil {
				return terr
			}
		}

		out.Progress = p.Progress
		out.Completed = p.Completed
		out.CompletedAt = p.CompletedAt

		if !out.JustCompleted || c.CreditReward == 0 {
			return nil
		}

		_, terr = s.credits.Apply(ctx, tx, creditsrepo.Entry{
			UserID:      userID,
			Amount:      c.CreditReward,
			Type:        creditsrepo.TxBonus,
			Description: "daily challenge: " + c.Title,
			Metadata:    map[string]any{"challengeId": c.ID.String(), "action": c.Action},
		})
		if terr != nil {
			return terr
		}

		out.CreditsAwarded = c.CreditReward

		return nil
	}, pgutils.WithLockTimeout(s.lockWait))
	if err != nil {
		if pgutils.IsContention(err) {
			return Result{}, fmt.Errorf("%w: %w", credits.ErrTransactionInProgress, err)
		}

		return Result{}, fmt.Errorf("record progress: %w", err)
	}

	if out.CreditsAwarded > 0 {
		s.credits.RefreshBalance(ctx, userID)
		s.log.Info("challenge completed",
			"user_id", userID, "challenge_id", challengeID, "credits", out.CreditsAwarded)
	}

	return out, nil
}

// RecordAction advances today's challenge for action by one, if there is
// one. Unknown actions are ignored.
func (s *Service) RecordAction(ctx context.Context, userID, action string) error {
	list, err := s.today(ctx)
	if err != nil {
		return err
	}

	for _, c := range list {
		if c.Action != action {
			continue
		}

		_, err = s.RecordProgress(ctx, userID, c.ID, 1)
		if err != nil {
			return fmt.Errorf("record %s: %w", action, err)
		}
	}

	return nil
}
