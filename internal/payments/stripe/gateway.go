package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fastprodman/pulsecards/internal/payments"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var _ payments.Gateway = (*Gateway)(nil)

type Gateway struct {
	api      *client.API
	currency string
}

func New(secretKey, currency string) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &Gateway{api: api, currency: currency}
}

func (g *Gateway) CreatePaymentIntent(
	ctx context.Context, amountCents int64, metadata map[string]string,
) (payments.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return payments.Intent{}, fmt.Errorf("create payment intent: %w", err)
	}

	return toIntent(pi), nil
}

func (g *Gateway) GetPaymentIntent(ctx context.Context, id string) (payments.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return payments.Intent{}, payments.ErrIntentNotFound
		}

		return payments.Intent{}, fmt.Errorf("get payment intent: %w", err)
	}

	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) payments.Intent {
	return payments.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Status:       payments.Status(pi.Status),
		Metadata:     pi.Metadata,
	}
}
