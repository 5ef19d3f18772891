package marketplace

import (
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/pgtestutil"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/infra/redistestutil"
	"github.com/fastprodman/pulsecards/internal/payments"
	rediscounters "github.com/fastprodman/pulsecards/internal/repos/counters/redis"
	"github.com/fastprodman/pulsecards/internal/repos/listings"
	"github.com/fastprodman/pulsecards/internal/services/cardpool"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db    *sql.DB
	mr    *miniredis.Miniredis
	cards *cardpool.Service
	svc   *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)
	t.Cleanup(cleanup)

	rdb, mr := redistestutil.NewClient(t)
	store := rediscounters.New(rdb)

	cfg := config.EconomyConfig{
		ListingLockTTL:  10 * time.Second,
		LockWaitTimeout: 5 * time.Second,
	}

	creditsSvc := credits.New(db, store, payments.NewSandbox(), cfg)
	cardsSvc := cardpool.New(db, cfg.LockWaitTimeout)

	return fixture{db: db, mr: mr, cards: cardsSvc, svc: New(db, creditsSvc, cardsSvc, cfg)}
}

// packOf builds a pack for owner holding n freshly minted cards.
func (f fixture) packOf(t *testing.T, owner string, n int) (uuid.UUID, []uuid.UUID) {
	t.Helper()

	ids := pgtestutil.SeedCards(t, f.db, owner, n)

	p, err := f.cards.CreatePack(t.Context(), owner, "pack of "+owner, "")
	require.NoError(t, err)

	_, err = f.cards.AddCardsToPack(t.Context(), p.ID, owner, ids)
	require.NoError(t, err)

	return p.ID, ids
}

func TestPurchaseListing_TransfersEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, f.db, "seller", 20)
	pgtestutil.SeedUser(t, f.db, "buyer", 150)

	packID, cardIDs := f.packOf(t, "seller", 10)

	l, err := f.svc.CreateListing(ctx, "seller", packID, 100)
	require.NoError(t, err)
	assert.Equal(t, listings.StatusActive, l.Status)

	txn, err := f.svc.PurchaseListing(ctx, l.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, listings.TxCompleted, txn.Status)
	assert.Equal(t, int64(100), txn.Amount)

	assert.Equal(t, int64(50), pgtestutil.Balance(t, f.db, "buyer"))
	assert.Equal(t, int64(120), pgtestutil.Balance(t, f.db, "seller"))
	for _, u := range []string{"buyer", "seller"} {
		assert.Equal(t, pgtestutil.Balance(t, f.db, u), pgtestutil.LedgerSum(t, f.db, u), u)
	}

	got, err := f.svc.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, listings.StatusSold, got.Status)
	assert.NotNil(t, got.SoldAt)

	view, err := f.cards.GetPack(ctx, packID)
	require.NoError(t, err)
	assert.Equal(t, "buyer", view.Pack.UserID)
	assert.True(t, view.Pack.Delivered())
	assert.Len(t, view.Cards, 10)

	var owned int
	require.NoError(t, f.db.QueryRow(`
		SELECT count(*) FROM trading_cards WHERE user_id = 'buyer' AND id = ANY($1::uuid[])
	`, pgutils.UUIDArray(cardIDs)).Scan(&owned))
	assert.Equal(t, 10, owned)

	var pooled int
	require.NoError(t, f.db.QueryRow(`SELECT count(*) FROM global_card_pool`).Scan(&pooled))
	assert.Zero(t, pooled)

	// sold listings are terminal
	_, err = f.svc.PurchaseListing(ctx, l.ID, "buyer")
	require.ErrorIs(t, err, ErrListingUnavailable)

	_, err = f.svc.CancelListing(ctx, l.ID, "seller")
	require.ErrorIs(t, err, ErrListingNotFound)

	// the delivered pack goes back on sale only after its owner restocks it
	_, err = f.svc.CreateListing(ctx, "buyer", packID, 10)
	require.ErrorIs(t, err, ErrPackDelivered)

	require.NoError(t, f.cards.RestockPack(ctx, packID, "buyer"))

	relisted, err := f.svc.CreateListing(ctx, "buyer", packID, 120)
	require.NoError(t, err)
	assert.Equal(t, "buyer", relisted.SellerID)
	assert.Equal(t, listings.StatusActive, relisted.Status)
}

func TestCreateListing_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, f.db, "seller", 0)
	pgtestutil.SeedUser(t, f.db, "other", 0)

	full, _ := f.packOf(t, "seller", 10)
	partial, _ := f.packOf(t, "seller", 9)

	_, err := f.svc.CreateListing(ctx, "seller", full, 0)
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = f.svc.CreateListing(ctx, "seller", partial, 10)
	require.ErrorIs(t, err, ErrPackIncomplete)

	_, err = f.svc.CreateListing(ctx, "other", full, 10)
	require.ErrorIs(t, err, ErrNotPackOwner)

	first, err := f.svc.CreateListing(ctx, "seller", full, 10)
	require.NoError(t, err)

	_, err = f.svc.CreateListing(ctx, "seller", full, 12)
	require.ErrorIs(t, err, ErrAlreadyListed)

	_, err = f.svc.CancelListing(ctx, first.ID, "other")
	require.ErrorIs(t, err, ErrListingNotFound)

	cancelled, err := f.svc.CancelListing(ctx, first.ID, "seller")
	require.NoError(t, err)
	assert.Equal(t, listings.StatusCancelled, cancelled.Status)

	_, err = f.svc.PurchaseListing(ctx, first.ID, "other")
	require.ErrorIs(t, err, ErrListingUnavailable)

	_, err = f.svc.CreateListing(ctx, "seller", full, 12)
	require.NoError(t, err)

	active, err := f.svc.ListActive(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCreateListing_CustodyMismatchIsIntegrityError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	pgtestutil.SeedUser(t, f.db, "seller", 0)

	packID, ids := f.packOf(t, "seller", 10)

	// hand one card back without touching the pack entries
	tx, err := f.db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec(`UPDATE trading_cards SET user_id = 'seller' WHERE id = $1`, ids[3])
	require.NoError(t, err)
	_, err = tx.Exec(`DELETE FROM global_card_pool WHERE card_id = $1`, ids[3])
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = f.svc.CreateListing(t.Context(), "seller", packID, 10)
	require.ErrorIs(t, err, ErrIntegrity)
}

func TestPurchaseListing_Rejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, f.db, "seller", 0)
	pgtestutil.SeedUser(t, f.db, "poor", 50)

	packID, _ := f.packOf(t, "seller", 10)

	l, err := f.svc.CreateListing(ctx, "seller", packID, 100)
	require.NoError(t, err)

	_, err = f.svc.PurchaseListing(ctx, l.ID, "seller")
	require.ErrorIs(t, err, ErrSelfPurchase)

	_, err = f.svc.PurchaseListing(ctx, l.ID, "poor")
	require.ErrorIs(t, err, ErrInsufficientCredits)

	_, err = f.svc.PurchaseListing(ctx, uuid.New(), "poor")
	require.ErrorIs(t, err, ErrListingNotFound)

	got, err := f.svc.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, listings.StatusActive, got.Status)
	assert.Equal(t, int64(50), pgtestutil.Balance(t, f.db, "poor"))
}

func TestPurchaseListing_ChecksDurableBalance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, f.db, "seller", 0)
	pgtestutil.SeedUser(t, f.db, "buyer", 150)

	packID, _ := f.packOf(t, "seller", 10)

	l, err := f.svc.CreateListing(ctx, "seller", packID, 100)
	require.NoError(t, err)

	// mirror claims less than the buyer holds
	f.mr.HSet("credits:balance:buyer", "balance", "20", "version", "99")

	_, err = f.svc.PurchaseListing(ctx, l.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(50), pgtestutil.Balance(t, f.db, "buyer"))
}

func TestPurchaseListing_FailedTransferRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, f.db, "seller", 0)
	pgtestutil.SeedUser(t, f.db, "buyer", 150)

	packID, ids := f.packOf(t, "seller", 10)

	l, err := f.svc.CreateListing(ctx, "seller", packID, 100)
	require.NoError(t, err)

	tx, err := f.db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec(`UPDATE trading_cards SET user_id = 'seller' WHERE id = $1`, ids[0])
	require.NoError(t, err)
	_, err = tx.Exec(`DELETE FROM global_card_pool WHERE card_id = $1`, ids[0])
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = f.svc.PurchaseListing(ctx, l.ID, "buyer")
	require.ErrorIs(t, err, ErrIntegrity)

	assert.Equal(t, int64(150), pgtestutil.Balance(t, f.db, "buyer"))
	assert.Equal(t, int64(0), pgtestutil.Balance(t, f.db, "seller"))

	got, err := f.svc.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, listings.StatusActive, got.Status)

	var failed int
	require.NoError(t, f.db.QueryRow(
		`SELECT count(*) FROM marketplace_transactions WHERE listing_id = $1 AND status = 'failed'`, l.ID,
	).Scan(&failed))
	assert.Equal(t, 1, failed)

	view, err := f.cards.GetPack(ctx, packID)
	require.NoError(t, err)
	assert.Equal(t, "seller", view.Pack.UserID)
	assert.False(t, view.Pack.Delivered())
}

func TestPurchaseListing_ConcurrentBuyersExactlyOneWins(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := t.Context()

	const buyers = 8

	pgtestutil.SeedUser(t, f.db, "seller", 0)
	for i := range buyers {
		pgtestutil.SeedUser(t, f.db, buyerID(i), 150)
	}

	packID, _ := f.packOf(t, "seller", 10)

	l, err := f.svc.CreateListing(ctx, "seller", packID, 100)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		start   = make(chan struct{})
	)

	wg.Add(buyers)
	for i := range buyers {
		go func() {
			defer wg.Done()
			<-start

			_, perr := f.svc.PurchaseListing(ctx, l.ID, buyerID(i))
			if perr == nil {
				mu.Lock()
				winners = append(winners, buyerID(i))
				mu.Unlock()
				return
			}

			if !errors.Is(perr, ErrListingUnavailable) && !errors.Is(perr, ErrTransactionInProgress) {
				t.Errorf("buyer %d: unexpected error %v", i, perr)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)

	var total int64
	for i := range buyers {
		total += pgtestutil.Balance(t, f.db, buyerID(i))
	}
	assert.Equal(t, int64(buyers*150-100), total)
	assert.Equal(t, int64(100), pgtestutil.Balance(t, f.db, "seller"))

	view, err := f.cards.GetPack(ctx, packID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], view.Pack.UserID)
}

func TestReleaseExpiredLocks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, f.db, "seller", 0)
	pgtestutil.SeedUser(t, f.db, "ghost", 500)
	pgtestutil.SeedUser(t, f.db, "buyer", 500)

	packID, _ := f.packOf(t, "seller", 10)

	l, err := f.svc.CreateListing(ctx, "seller", packID, 100)
	require.NoError(t, err)

	// an attempt that crashed while holding the lock
	_, err = f.db.Exec(`
		UPDATE marketplace_listings
		SET status = 'LOCKED', lock_token = gen_random_uuid(), locked_until = now() - interval '1 second'
		WHERE id = $1
	`, l.ID)
	require.NoError(t, err)
	_, err = f.db.Exec(`
		INSERT INTO marketplace_transactions (listing_id, buyer_id, seller_id, amount, status)
		VALUES ($1, 'ghost', 'seller', 100, 'pending')
	`, l.ID)
	require.NoError(t, err)

	n, err := f.svc.ReleaseExpiredLocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, listings.StatusActive, got.Status)
	assert.False(t, got.LockToken.Valid)

	var pending int
	require.NoError(t, f.db.QueryRow(
		`SELECT count(*) FROM marketplace_transactions WHERE status = 'pending'`,
	).Scan(&pending))
	assert.Zero(t, pending)

	n, err = f.svc.ReleaseExpiredLocks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.PurchaseListing(ctx, l.ID, "buyer")
	require.NoError(t, err)
}

func buyerID(i int) string {
	return "buyer-" + string(rune('a'+i))
}
