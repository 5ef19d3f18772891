package credits

import (
	"context"

	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/metrics"
	"github.com/fastprodman/pulsecards/internal/repos/counters"
	creditsrepo "github.com/fastprodman/pulsecards/internal/repos/credits"
)

// RefreshBalance mirrors the committed balances of userIDs. Call it after
// commit: the mirror only accepts a version newer than the one it holds, so
// refreshes that land out of order never bring back an older balance.
func (s *Service) RefreshBalance(ctx context.Context, userIDs ...string) {
	for _, id := range userIDs {
		b, err := s.balances.Get(ctx, s.db, id)
		if err != nil {
			s.log.Warn("balance refresh failed", "user_id", id, logging.Err(err))
			s.InvalidateBalance(ctx, id)
			continue
		}

		s.cacheBalance(ctx, id, b)
	}
}

// cacheBalance drops the key when the write fails so readers fall back to
// Postgres instead of a stale value.
func (s *Service) cacheBalance(ctx context.Context, userID string, b creditsrepo.Balance) {
	_, err := s.cache.SetBalance(ctx, userID, counters.CachedBalance{Credits: b.Credits, Version: b.Version})
	if err == nil {
		return
	}

	metrics.CacheErrors.WithLabelValues("set").Inc()
	s.log.Warn("balance cache write failed", "user_id", userID, logging.Err(err))
	s.InvalidateBalance(ctx, userID)
}

func (s *Service) InvalidateBalance(ctx context.Context, userIDs ...string) {
	err := s.cache.DeleteBalance(ctx, userIDs...)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("delete").Inc()
		s.log.Error("balance cache invalidation failed", "user_ids", userIDs, logging.Err(err))
	}
}
