package payments

import (
	"context"
	"errors"
)

//go:generate mockgen -source=gateway.go -destination=mock/gateway.go -package=mock

var ErrIntentNotFound = errors.New("payment intent not found")

type Status string

const (
	StatusRequiresPayment Status = "requires_payment_method"
	StatusProcessing      Status = "processing"
	StatusSucceeded       Status = "succeeded"
	StatusCanceled        Status = "canceled"
)

// Intent is the gateway's view of one payment.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Status       Status
	Metadata     map[string]string
}

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amountCents int64, metadata map[string]string) (Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (Intent, error)
}
