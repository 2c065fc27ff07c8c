// Package payment defines charge attempts and the failure-reason taxonomy
// that drives retry policy.
package payment

import (
	"time"

	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/types"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the payment can no longer change state.
// "failed" is deliberately non-terminal: it is the trigger for retry creation.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusRefunded || s == StatusCancelled
}

// Payment is a single charge attempt against a subscription.
// Immutable once terminal.
type Payment struct {
	types.Entity
	ID             id.PaymentID      `json:"id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	Amount         types.Money       `json:"amount"`
	Status         Status            `json:"status"`
	GatewayTxnID   string            `json:"gateway_txn_id,omitempty"`
	FailureReason  FailureReason     `json:"failure_reason,omitempty"`
	ErrorCode      string            `json:"error_code,omitempty"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	FailedAt       *time.Time        `json:"failed_at,omitempty"`
}

// MarkPaid records a successful charge.
func (p *Payment) MarkPaid(txnID string, now time.Time) {
	t := now.UTC()
	p.Status = StatusPaid
	p.GatewayTxnID = txnID
	p.PaidAt = &t
	p.TouchAt(now)
}

// MarkFailed records a failed charge with its reason.
func (p *Payment) MarkFailed(reason FailureReason, errorCode string, now time.Time) {
	t := now.UTC()
	p.Status = StatusFailed
	p.FailureReason = reason
	p.ErrorCode = errorCode
	p.FailedAt = &t
	p.TouchAt(now)
}
