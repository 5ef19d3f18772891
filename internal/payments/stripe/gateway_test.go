package stripe

import (
	"testing"

	"github.com/fastprodman/pulsecards/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v76"
)

func TestToIntent(t *testing.T) {
	t.Parallel()

	got := toIntent(&stripe.PaymentIntent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret",
		Amount:       999,
		Status:       stripe.PaymentIntentStatusSucceeded,
		Metadata:     map[string]string{"purchaseId": "p1"},
	})

	assert.Equal(t, payments.Intent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret",
		AmountCents:  999,
		Status:       payments.StatusSucceeded,
		Metadata:     map[string]string{"purchaseId": "p1"},
	}, got)
}

func TestStatusValuesMatchStripe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, string(stripe.PaymentIntentStatusSucceeded), string(payments.StatusSucceeded))
	assert.Equal(t, string(stripe.PaymentIntentStatusCanceled), string(payments.StatusCanceled))
	assert.Equal(t, string(stripe.PaymentIntentStatusProcessing), string(payments.StatusProcessing))
	assert.Equal(t, string(stripe.PaymentIntentStatusRequiresPaymentMethod), string(payments.StatusRequiresPayment))
}
