package cardpool

import (
	"database/sql"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/pgtestutil"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/cards"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)
	t.Cleanup(cleanup)

	return New(db, 3*time.Second), db
}

func TestRollTemplate_StaysInRange(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	bases := map[string]int{}
	for _, rr := range rarities {
		bases[rr.name] = rr.base
	}

	for range 500 {
		got := rollTemplate(r, cards.Template{Name: "x"})

		base, ok := bases[got.Rarity]
		require.True(t, ok, "unknown rarity %q", got.Rarity)
		assert.Contains(t, elements, got.ElementalType)

		for _, v := range []int{got.Stats.Attack, got.Stats.Defense, got.Stats.Speed} {
			assert.GreaterOrEqual(t, v, base)
			assert.Less(t, v, base+statSpread)
		}
	}
}

func TestService_MintCard_OneTemplatePerImage(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := t.Context()

	_, err := svc.MintCard(ctx, "artist", MintRequest{ImageID: "img-1"})
	require.ErrorIs(t, err, ErrInvalidCard)

	first, err := svc.MintCard(ctx, "artist", MintRequest{ImageID: "img-1", Name: "Ember"})
	require.NoError(t, err)
	assert.True(t, first.Template.Valid())
	assert.Equal(t, cards.CustodyOwned, first.Card.Custody.Kind)

	second, err := svc.MintCard(ctx, "collector", MintRequest{ImageID: "img-1", Name: "Other name"})
	require.NoError(t, err)
	assert.Equal(t, first.Template.ID, second.Template.ID)
	assert.Equal(t, "Ember", second.Template.Name)
	assert.NotEqual(t, first.Card.ID, second.Card.ID)
	assert.Equal(t, "collector", second.Card.Custody.UserID)
}

func TestService_AddCardsToPack(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, db, "owner", 0)
	pgtestutil.SeedUser(t, db, "stranger", 0)
	ids := pgtestutil.SeedCards(t, db, "owner", 12)
	foreign := pgtestutil.SeedCards(t, db, "stranger", 1)

	pack, err := svc.CreatePack(ctx, "owner", "Fire deck", "")
	require.NoError(t, err)

	entries, err := svc.AddCardsToPack(ctx, pack.ID, "owner", ids[:4])
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position)
		assert.Equal(t, ids[i], e.CardID)
	}

	_, err = svc.AddCardsToPack(ctx, pack.ID, "owner", ids[4:11])
	require.ErrorIs(t, err, ErrPackFull)

	_, err = svc.AddCardsToPack(ctx, pack.ID, "owner", []uuid.UUID{ids[4], ids[4]})
	require.ErrorIs(t, err, ErrInvalidSelection)

	_, err = svc.AddCardsToPack(ctx, pack.ID, "owner", []uuid.UUID{ids[4], foreign[0]})
	require.ErrorIs(t, err, ErrCardsNotOwned)

	_, err = svc.AddCardsToPack(ctx, pack.ID, "owner", []uuid.UUID{ids[0]})
	require.ErrorIs(t, err, ErrCardInPack)

	_, err = svc.AddCardsToPack(ctx, pack.ID, "stranger", foreign)
	require.ErrorIs(t, err, ErrNotPackOwner)

	_, err = svc.AddCardsToPack(ctx, uuid.New(), "owner", ids[4:5])
	require.ErrorIs(t, err, ErrPackNotFound)

	_, err = svc.AddCardsToPack(ctx, pack.ID, "owner", ids[4:10])
	require.NoError(t, err)

	view, err := svc.GetPack(ctx, pack.ID)
	require.NoError(t, err)
	assert.True(t, view.Complete())
	for i, c := range view.Cards {
		assert.Equal(t, i+1, c.Position)
		assert.Equal(t, ids[i], c.CardID)
		assert.True(t, c.Template.Valid())
	}

	collection, err := svc.ListCards(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, collection, 12)

	inPack := 0
	for _, c := range collection {
		if c.InPack() {
			inPack++
			assert.Equal(t, pack.ID, c.Card.Custody.PackID)
		}
	}
	assert.Equal(t, 10, inPack)
}

func TestService_RemoveCardFromPack(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, db, "owner", 0)
	ids := pgtestutil.SeedCards(t, db, "owner", 3)

	pack, err := svc.CreatePack(ctx, "owner", "Trio", "")
	require.NoError(t, err)

	_, err = svc.AddCardsToPack(ctx, pack.ID, "owner", ids)
	require.NoError(t, err)

	err = svc.RemoveCardFromPack(ctx, pack.ID, "owner", ids[0])
	require.NoError(t, err)

	err = svc.RemoveCardFromPack(ctx, pack.ID, "owner", ids[0])
	require.ErrorIs(t, err, ErrCardNotInPack)

	view, err := svc.GetPack(ctx, pack.ID)
	require.NoError(t, err)
	require.Len(t, view.Cards, 2)
	assert.Equal(t, ids[1], view.Cards[0].CardID)
	assert.Equal(t, 1, view.Cards[0].Position)
	assert.Equal(t, 2, view.Cards[1].Position)

	var owner sql.NullString
	require.NoError(t, db.QueryRow(`SELECT user_id FROM trading_cards WHERE id = $1`, ids[0]).Scan(&owner))
	assert.Equal(t, "owner", owner.String)
}

func TestService_RestockPack(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := t.Context()

	pgtestutil.SeedUser(t, db, "owner", 0)
	pgtestutil.SeedUser(t, db, "buyer", 0)
	ids := pgtestutil.SeedCards(t, db, "owner", 3)

	pack, err := svc.CreatePack(ctx, "owner", "Trio", "")
	require.NoError(t, err)

	_, err = svc.AddCardsToPack(ctx, pack.ID, "owner", ids)
	require.NoError(t, err)

	err = svc.RestockPack(ctx, pack.ID, "owner")
	require.ErrorIs(t, err, ErrPackNotDelivered)

	// hand the pack and its cards to the buyer the way a sale does
	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec(`DELETE FROM global_card_pool WHERE pack_id = $1`, pack.ID)
	require.NoError(t, err)
	_, err = tx.Exec(`UPDATE trading_cards SET user_id = 'buyer' WHERE id = ANY($1::uuid[])`, pgutils.UUIDArray(ids))
	require.NoError(t, err)
	_, err = tx.Exec(`UPDATE card_packs SET user_id = 'buyer', delivered_at = now() WHERE id = $1`, pack.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = svc.AddCardsToPack(ctx, pack.ID, "buyer", ids[:1])
	require.ErrorIs(t, err, ErrPackDelivered)

	err = svc.RestockPack(ctx, pack.ID, "owner")
	require.ErrorIs(t, err, ErrNotPackOwner)

	other, err := svc.CreatePack(ctx, "buyer", "Other", "")
	require.NoError(t, err)
	_, err = svc.AddCardsToPack(ctx, other.ID, "buyer", ids[:1])
	require.NoError(t, err)

	err = svc.RestockPack(ctx, pack.ID, "buyer")
	require.ErrorIs(t, err, ErrCardInPack)

	require.NoError(t, svc.RemoveCardFromPack(ctx, other.ID, "buyer", ids[0]))
	require.NoError(t, svc.RestockPack(ctx, pack.ID, "buyer"))

	view, err := svc.GetPack(ctx, pack.ID)
	require.NoError(t, err)
	assert.False(t, view.Pack.Delivered())
	assert.Equal(t, "buyer", view.Pack.UserID)
	require.Len(t, view.Cards, 3)

	var pooled int
	require.NoError(t, db.QueryRow(
		`SELECT count(*) FROM global_card_pool WHERE pack_id = $1 AND original_owner_id = 'buyer'`, pack.ID,
	).Scan(&pooled))
	assert.Equal(t, 3, pooled)

	require.NoError(t, svc.RemoveCardFromPack(ctx, pack.ID, "buyer", ids[2]))
}

func TestService_CreatePack_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.CreatePack(t.Context(), "owner", "   ", "")
	require.ErrorIs(t, err, ErrInvalidPack)

	p, err := svc.CreatePack(t.Context(), "owner", "Fresh", "desc")
	require.NoError(t, err)

	list, err := svc.ListPacks(t.Context(), "owner")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}
