// Package stripegw implements the gateway seam using the Stripe API.
package stripegw

import (
	"context"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/xraph/dunning/gateway"
)

// Gateway submits charges through Stripe PaymentIntents and verifies
// webhook signatures.
type Gateway struct {
	apiKey        string
	webhookSecret string
}

// Compile-time interface checks.
var (
	_ gateway.Charger  = (*Gateway)(nil)
	_ gateway.Verifier = (*Gateway)(nil)
)

// New creates a Stripe gateway with the given API key and webhook secret.
func New(apiKey, webhookSecret string) *Gateway {
	stripe.Key = apiKey
	return &Gateway{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
	}
}

// Charge implements gateway.Charger. It confirms an off-session
// PaymentIntent against the stored payment method.
func (g *Gateway) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount.Amount),
		Currency:      stripe.String(req.Amount.Currency),
		PaymentMethod: stripe.String(req.Method),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return &gateway.ChargeResult{
				Success:       false,
				FailureReason: declineReason(stripeErr),
				ErrorCode:     string(stripeErr.Code),
			}, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, gateway.ErrTimeout
		}
		return nil, fmt.Errorf("stripegw: create payment intent: %w", err)
	}

	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		return &gateway.ChargeResult{
			Success:       true,
			TransactionID: pi.ID,
		}, nil
	}

	return &gateway.ChargeResult{
		Success:       false,
		TransactionID: pi.ID,
		FailureReason: "unknown",
		ErrorCode:     string(pi.Status),
	}, nil
}

// Verify implements gateway.Verifier using Stripe webhook signatures.
func (g *Gateway) Verify(payload []byte, signature string) error {
	if _, err := webhook.ConstructEvent(payload, signature, g.webhookSecret); err != nil {
		return fmt.Errorf("stripegw: webhook verification: %w", err)
	}
	return nil
}

// declineReason maps a Stripe error to a raw decline reason string for
// normalization by payment.ParseFailureReason.
func declineReason(err *stripe.Error) string {
	switch err.DeclineCode {
	case stripe.DeclineCodeInsufficientFunds:
		return "insufficient_funds"
	case stripe.DeclineCodeExpiredCard:
		return "card_expired"
	case stripe.DeclineCodeStolenCard, stripe.DeclineCodeLostCard:
		return "stolen_card"
	case stripe.DeclineCodeProcessingError:
		return "timeout"
	default:
		if err.Code == stripe.ErrorCodeExpiredCard {
			return "card_expired"
		}
		return "unknown"
	}
}
