package credits

import (
	"errors"
	"testing"

	"github.com/fastprodman/pulsecards/internal/infra/pgtestutil"
	"github.com/fastprodman/pulsecards/internal/payments"
	"github.com/fastprodman/pulsecards/internal/payments/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestService_CompletePurchase_CreditsOnce(t *testing.T) {
	t.Parallel()

	sandbox := payments.NewSandbox()
	svc, db, mr := newTestService(t, sandbox)
	ctx := t.Context()

	intent, err := svc.CreatePurchaseIntent(ctx, "buyer", "basic")
	require.NoError(t, err)
	assert.Equal(t, int64(50), intent.Amount)
	assert.NotEmpty(t, intent.ClientSecret)

	_, err = svc.CompletePurchase(ctx, intent.PaymentIntentID)
	require.ErrorIs(t, err, ErrPaymentFailed, "unpaid intent must not complete")
	assert.Equal(t, int64(10), pgtestutil.Balance(t, db, "buyer"))

	require.NoError(t, sandbox.Settle(intent.PaymentIntentID, payments.StatusSucceeded))

	first, err := svc.CompletePurchase(ctx, intent.PaymentIntentID)
	require.NoError(t, err)
	assert.True(t, first.Credited)
	assert.Equal(t, int64(60), first.Balance)

	second, err := svc.CompletePurchase(ctx, intent.PaymentIntentID)
	require.NoError(t, err)
	assert.False(t, second.Credited)
	assert.Equal(t, int64(60), second.Balance)

	assert.Equal(t, int64(60), pgtestutil.Balance(t, db, "buyer"))
	assert.Equal(t, int64(60), pgtestutil.LedgerSum(t, db, "buyer"))
	assert.Equal(t, "60", mr.HGet("credits:balance:buyer", "balance"))
}

func TestService_CompletePurchase_CanceledMarksFailed(t *testing.T) {
	t.Parallel()

	sandbox := payments.NewSandbox()
	svc, db, _ := newTestService(t, sandbox)
	ctx := t.Context()

	intent, err := svc.CreatePurchaseIntent(ctx, "buyer", "starter")
	require.NoError(t, err)
	require.NoError(t, sandbox.Settle(intent.PaymentIntentID, payments.StatusCanceled))

	_, err = svc.CompletePurchase(ctx, intent.PaymentIntentID)
	require.ErrorIs(t, err, ErrPaymentFailed)

	var status string
	require.NoError(t, db.QueryRow(
		`SELECT status FROM credit_purchases WHERE payment_intent_id = $1`, intent.PaymentIntentID,
	).Scan(&status))
	assert.Equal(t, "failed", status)
	assert.Equal(t, int64(10), pgtestutil.LedgerSum(t, db, "buyer"))
}

func TestService_CompletePurchase_UnknownIntent(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, nil)

	_, err := svc.CompletePurchase(t.Context(), "pi_unknown")
	require.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestService_CreatePurchaseIntent_Errors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	gw := mock.NewMockGateway(ctrl)
	svc, db, _ := newTestService(t, gw)

	_, err := svc.CreatePurchaseIntent(t.Context(), "buyer", "mega")
	require.ErrorIs(t, err, ErrInvalidPackage)

	gw.EXPECT().
		CreatePaymentIntent(gomock.Any(), int64(799), gomock.Any()).
		Return(payments.Intent{}, errors.New("card declined"))

	_, err = svc.CreatePurchaseIntent(t.Context(), "buyer", "basic")
	require.ErrorIs(t, err, ErrPaymentFailed)
	assert.NotErrorIs(t, err, ErrInvalidPackage)

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM credit_purchases`).Scan(&n))
	assert.Zero(t, n)
}

func TestPackages_PricesFormatted(t *testing.T) {
	t.Parallel()

	var s Service
	pkgs := s.Packages()
	require.NotEmpty(t, pkgs)

	byID := map[string]Package{}
	for _, p := range pkgs {
		byID[p.ID] = p
	}

	assert.Equal(t, "7.99", byID["basic"].Price)
	assert.Equal(t, "1.99", byID["starter"].Price)

	pkgs[0].Credits = -1
	assert.NotEqual(t, int64(-1), s.Packages()[0].Credits)
}
