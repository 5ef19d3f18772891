package referral

import (
	"database/sql"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/pgtestutil"
	"github.com/fastprodman/pulsecards/internal/infra/redistestutil"
	"github.com/fastprodman/pulsecards/internal/payments"
	rediscounters "github.com/fastprodman/pulsecards/internal/repos/counters/redis"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *sql.DB, *miniredis.Miniredis) {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)
	t.Cleanup(cleanup)

	rdb, mr := redistestutil.NewClient(t)
	store := rediscounters.New(rdb)

	cfg := config.EconomyConfig{
		DefaultBalance:  10,
		WelcomeBonus:    5,
		LockWaitTimeout: 3 * time.Second,
	}

	creditsSvc := credits.New(db, store, payments.NewSandbox(), cfg)

	return New(db, store, creditsSvc, cfg), db, mr
}

func TestService_GenerateCode_Idempotent(t *testing.T) {
	t.Parallel()

	svc, _, mr := newTestService(t)
	ctx := t.Context()

	code, err := svc.GenerateCode(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, code, codeLength)

	mr.FlushAll()

	again, err := svc.GenerateCode(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, code, again)

	owner, err := mr.Get("referral:owner:" + code)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestService_UseCode_Errors(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := t.Context()

	code, err := svc.GenerateCode(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.UseCode(ctx, "NOPE2345", "bob")
	require.ErrorIs(t, err, ErrInvalidCode)

	_, err = svc.UseCode(ctx, "  ", "bob")
	require.ErrorIs(t, err, ErrInvalidCode)

	_, err = svc.UseCode(ctx, code, "alice")
	require.ErrorIs(t, err, ErrSelfReferral)

	_, err = svc.UseCode(ctx, code, "bob")
	require.NoError(t, err)

	_, err = svc.UseCode(ctx, code, "bob")
	require.ErrorIs(t, err, ErrAlreadyReferred)
}

func TestService_UseCode_CreditsBothSides(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, db, "alice", 0)

	code, err := svc.GenerateCode(ctx, "alice")
	require.NoError(t, err)

	res, err := svc.UseCode(ctx, code, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.ReferrerID)
	assert.Equal(t, 1, res.ReferralCount)
	assert.Equal(t, int64(5), res.ReferrerBonus)
	assert.Equal(t, int64(5), res.WelcomeBonus)

	assert.Equal(t, int64(5), pgtestutil.Balance(t, db, "alice"))
	// default grant plus welcome bonus
	assert.Equal(t, int64(15), pgtestutil.Balance(t, db, "bob"))

	for _, id := range []string{"alice", "bob"} {
		assert.Equal(t, pgtestutil.Balance(t, db, id), pgtestutil.LedgerSum(t, db, id), id)
	}

	var bonuses int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM referral_bonuses`).Scan(&bonuses))
	assert.Equal(t, 2, bonuses)
}

func TestService_UseCode_SixthReferralPaysSecondTier(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, db, "alice", 0)

	code, err := svc.GenerateCode(ctx, "alice")
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE users SET referral_count = 5 WHERE id = 'alice'`)
	require.NoError(t, err)

	res, err := svc.UseCode(ctx, code, "sixth")
	require.NoError(t, err)
	assert.Equal(t, 6, res.ReferralCount)
	assert.Equal(t, int64(7), res.ReferrerBonus)
	assert.Equal(t, int64(7), pgtestutil.Balance(t, db, "alice"))
}
