package payments

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"
)

var _ Gateway = (*Sandbox)(nil)

// Sandbox is an in-process gateway used when no Stripe key is configured.
// Intents are created pending and settled with Settle.
type Sandbox struct {
	mu      sync.Mutex
	intents map[string]Intent
	initial Status
}

type SandboxOption func(*Sandbox)

// AutoSettle creates every intent directly in status, for local runs
// without a payment front-end.
func AutoSettle(status Status) SandboxOption {
	return func(s *Sandbox) { s.initial = status }
}

func NewSandbox(opts ...SandboxOption) *Sandbox {
	s := &Sandbox{intents: make(map[string]Intent), initial: StatusRequiresPayment}
	for _, o := range opts {
		o(s)
	}

	return s
}

func (s *Sandbox) CreatePaymentIntent(
	_ context.Context, amountCents int64, metadata map[string]string,
) (Intent, error) {
	if amountCents <= 0 {
		return Intent{}, fmt.Errorf("amount must be positive, got %d", amountCents)
	}

	id := "pi_sandbox_" + uuid.NewString()
	in := Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  amountCents,
		Status:       s.initial,
		Metadata:     maps.Clone(metadata),
	}

	s.mu.Lock()
	s.intents[id] = in
	s.mu.Unlock()

	return in, nil
}

func (s *Sandbox) GetPaymentIntent(_ context.Context, id string) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.intents[id]
	if !ok {
		return Intent{}, ErrIntentNotFound
	}

	return in, nil
}

// Settle moves an intent to a terminal status.
func (s *Sandbox) Settle(id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.intents[id]
	if !ok {
		return ErrIntentNotFound
	}

	in.Status = status
	s.intents[id] = in

	return nil
}
