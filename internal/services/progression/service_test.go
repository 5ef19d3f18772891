package progression

import (
	"database/sql"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/pgtestutil"
	"github.com/fastprodman/pulsecards/internal/infra/redistestutil"
	"github.com/fastprodman/pulsecards/internal/payments"
	rediscounters "github.com/fastprodman/pulsecards/internal/repos/counters/redis"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)
	t.Cleanup(cleanup)

	rdb, _ := redistestutil.NewClient(t)

	cfg := config.EconomyConfig{
		DefaultBalance:  10,
		LockWaitTimeout: 3 * time.Second,
	}

	creditsSvc := credits.New(db, rediscounters.New(rdb), payments.NewSandbox(), cfg)

	return New(db, creditsSvc, cfg), db
}

func TestService_AwardXP_FirstLevelUp(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := t.Context()
	pgtestutil.SeedUser(t, db, "alice", 0)

	award, err := svc.AwardXP(ctx, "alice", 100, "first mint")
	require.NoError(t, err)

	assert.True(t, award.LeveledUp)
	assert.Equal(t, 1, award.PreviousLevel)
	assert.Equal(t, 2, award.Level)
	assert.Equal(t, int64(100), award.XP)
	assert.Equal(t, int64(400), award.NextLevelXP)
	require.Len(t, award.NewRewards, 1)
	assert.Equal(t, 2, award.NewRewards[0].Milestone.Level)
	assert.False(t, award.NewRewards[0].Claimed)

	sum, err := svc.Progress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Level)
	assert.True(t, sum.LevelUpNotification)
	assert.Equal(t, int64(100), sum.CurrentLevelXP)
	assert.Equal(t, 0, sum.ProgressPercent)
	require.Len(t, sum.UnclaimedRewards, 1)
}

func TestService_AwardXP_NoLevelUp(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := t.Context()
	pgtestutil.SeedUser(t, db, "alice", 0)

	award, err := svc.AwardXP(ctx, "alice", 40, "share")
	require.NoError(t, err)
	assert.False(t, award.LeveledUp)
	assert.Equal(t, 1, award.Level)
	assert.Empty(t, award.NewRewards)

	sum, err := svc.Progress(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, sum.LevelUpNotification)
	assert.Equal(t, 40, sum.ProgressPercent)
	assert.Empty(t, sum.UnclaimedRewards)

	_, err = svc.AwardXP(ctx, "alice", 0, "nothing")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestService_AwardXP_SkippedLevelsGrantOnlyNewLevel(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	pgtestutil.SeedUser(t, db, "alice", 0)

	// 0 -> 400 XP jumps from level 1 to 3.
	award, err := svc.AwardXP(t.Context(), "alice", 400, "bulk")
	require.NoError(t, err)
	assert.Equal(t, 3, award.Level)
	require.Len(t, award.NewRewards, 1)
	assert.Equal(t, 3, award.NewRewards[0].Milestone.Level)
}

func TestService_AwardXP_CreatesUnknownUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	award, err := svc.AwardXP(t.Context(), "newcomer", 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), award.XP)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "quest", n: 10, want: "quest"},
		{name: "ascii cut", in: "abcdef", n: 3, want: "abc"},
		{name: "two byte rune straddles", in: "ab\u00e9", n: 3, want: "ab"},
		{name: "three byte rune straddles", in: "a\u20ac", n: 2, want: "a"},
		{name: "rune ends at limit", in: "\u00e9x", n: 2, want: "\u00e9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestService_AwardXP_LongMultibyteReason(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)

	reason := strings.Repeat("a", maxReasonLen-1) + "\u00e9 and more"

	_, err := svc.AwardXP(t.Context(), "poet", 5, reason)
	require.NoError(t, err)

	var stored string
	require.NoError(t, db.QueryRow(`SELECT reason FROM xp_events WHERE user_id = 'poet'`).Scan(&stored))
	assert.Equal(t, strings.Repeat("a", maxReasonLen-1), stored)
}

func TestService_AwardXP_RejectsOversizedAmounts(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := t.Context()

	_, err := svc.AwardXP(ctx, "greedy", maxAward+1, "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.AwardXP(ctx, "greedy", 1, "")
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE users SET xp_points = $1 WHERE id = 'greedy'`, int64(math.MaxInt64-10))
	require.NoError(t, err)

	_, err = svc.AwardXP(ctx, "greedy", 20, "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	var xp int64
	require.NoError(t, db.QueryRow(`SELECT xp_points FROM users WHERE id = 'greedy'`).Scan(&xp))
	assert.Equal(t, int64(math.MaxInt64-10), xp)
}

func TestService_ClaimReward(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := t.Context()
	pgtestutil.SeedUser(t, db, "alice", 10)
	pgtestutil.SeedUser(t, db, "mallory", 0)

	award, err := svc.AwardXP(ctx, "alice", 100, "mint")
	require.NoError(t, err)
	require.Len(t, award.NewRewards, 1)
	rewardID := award.NewRewards[0].ID

	_, err = svc.ClaimReward(ctx, rewardID, "mallory")
	require.ErrorIs(t, err, ErrRewardNotFound)

	_, err = svc.ClaimReward(ctx, uuid.New(), "alice")
	require.ErrorIs(t, err, ErrRewardNotFound)

	claim, err := svc.ClaimReward(ctx, rewardID, "alice")
	require.NoError(t, err)
	assert.True(t, claim.Reward.Claimed)
	assert.Equal(t, int64(5), claim.CreditsAwarded)

	assert.Equal(t, int64(15), pgtestutil.Balance(t, db, "alice"))
	assert.Equal(t, int64(15), pgtestutil.LedgerSum(t, db, "alice"))

	_, err = svc.ClaimReward(ctx, rewardID, "alice")
	require.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.Equal(t, int64(15), pgtestutil.Balance(t, db, "alice"))

	sum, err := svc.Progress(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, sum.LevelUpNotification)
	assert.Empty(t, sum.UnclaimedRewards)
}

func TestService_ClaimReward_KeepsNotificationWhileRewardsRemain(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := t.Context()
	pgtestutil.SeedUser(t, db, "alice", 0)

	// level 5 unlocks two milestones
	award, err := svc.AwardXP(ctx, "alice", 1600, "bulk")
	require.NoError(t, err)
	require.Equal(t, 5, award.Level)
	require.Len(t, award.NewRewards, 2)

	_, err = svc.ClaimReward(ctx, award.NewRewards[0].ID, "alice")
	require.NoError(t, err)

	sum, err := svc.Progress(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, sum.LevelUpNotification)
	assert.Len(t, sum.UnclaimedRewards, 1)

	_, err = svc.ClaimReward(ctx, award.NewRewards[1].ID, "alice")
	require.NoError(t, err)

	sum, err = svc.Progress(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, sum.LevelUpNotification)
	assert.Equal(t, int64(25), pgtestutil.Balance(t, db, "alice"))
}

func TestService_ClaimReward_ConcurrentClaimsPayOnce(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := t.Context()
	pgtestutil.SeedUser(t, db, "alice", 0)

	award, err := svc.AwardXP(ctx, "alice", 100, "mint")
	require.NoError(t, err)
	rewardID := award.NewRewards[0].ID

	const n = 6

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, cerr := svc.ClaimReward(ctx, rewardID, "alice")
			if cerr == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, int64(5), pgtestutil.Balance(t, db, "alice"))
}

func TestService_AwardXP_Concurrent(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	pgtestutil.SeedUser(t, db, "alice", 0)

	const n = 10

	var wg sync.WaitGroup
	errs := make(chan error, n)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := svc.AwardXP(t.Context(), "alice", 10, "tick")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	sum, err := svc.Progress(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), sum.XP)
	assert.Equal(t, 2, sum.Level)
	assert.Len(t, sum.UnclaimedRewards, 1)
}

func TestService_Progress_UnknownUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	sum, err := svc.Progress(t.Context(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Level)
	assert.Equal(t, int64(100), sum.NextLevelXP)
}
