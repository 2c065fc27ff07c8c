// Package gateway defines the narrow payment-gateway seam used by the
// recovery engine: charge submission and webhook signature verification.
// The gateway itself is an external collaborator.
package gateway

import (
	"context"
	"errors"

	"github.com/xraph/dunning/types"
)

// ErrTimeout reports that the gateway did not answer within the configured
// deadline. Callers route it through the normal failure path as a soft
// decline.
var ErrTimeout = errors.New("gateway: charge timed out")

// ChargeRequest describes one charge submission.
type ChargeRequest struct {
	// Method is the gateway-side payment method reference (e.g. a stored
	// card token).
	Method string
	Amount types.Money
	// IdempotencyKey dedupes redelivered charges gateway-side.
	IdempotencyKey string
	Metadata       map[string]string
}

// ChargeResult is the gateway's verdict on a charge.
type ChargeResult struct {
	Success bool
	// TransactionID is the gateway transaction reference, set on success.
	TransactionID string
	// FailureReason is the raw gateway decline reason, set on failure.
	// Normalize with payment.ParseFailureReason before acting on it.
	FailureReason string
	// ErrorCode is the raw gateway error code, never shown to customers.
	ErrorCode string
}

// Charger submits charges to the payment gateway.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// Verifier validates inbound webhook payload signatures.
type Verifier interface {
	Verify(payload []byte, signature string) error
}

// ChargerFunc is an adapter to use a plain function as a Charger.
type ChargerFunc func(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

// Charge implements Charger.
func (f ChargerFunc) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	return f(ctx, req)
}
