package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/dunning/campaign"
	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/payment"
	"github.com/xraph/dunning/retry"
	"github.com/xraph/dunning/subscription"
	"github.com/xraph/dunning/types"
)

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:dunning_subscriptions"`

	ID                 string            `grove:"id,pk"`
	OwnerID            string            `grove:"owner_id"`
	Plan               string            `grove:"plan"`
	Status             string            `grove:"status"`
	BillingCycle       string            `grove:"billing_cycle"`
	AmountCents        int64             `grove:"amount_cents"`
	Currency           string            `grove:"currency"`
	PaymentMethod      string            `grove:"payment_method"`
	CurrentPeriodStart time.Time         `grove:"current_period_start"`
	CurrentPeriodEnd   time.Time         `grove:"current_period_end"`
	AutoRenew          bool              `grove:"auto_renew"`
	CancelledAt        *time.Time        `grove:"cancelled_at"`
	ExpiredAt          *time.Time        `grove:"expired_at"`
	Metadata           map[string]string `grove:"metadata,type:json"`
	CreatedAt          time.Time         `grove:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                 s.ID.String(),
		OwnerID:            s.OwnerID,
		Plan:               s.Plan,
		Status:             string(s.Status),
		BillingCycle:       string(s.BillingCycle),
		AmountCents:        s.Amount.Amount,
		Currency:           s.Amount.Currency,
		PaymentMethod:      s.PaymentMethod,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		AutoRenew:          s.AutoRenew,
		CancelledAt:        s.CancelledAt,
		ExpiredAt:          s.ExpiredAt,
		Metadata:           s.Metadata,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 subID,
		OwnerID:            m.OwnerID,
		Plan:               m.Plan,
		Status:             subscription.Status(m.Status),
		BillingCycle:       subscription.BillingCycle(m.BillingCycle),
		Amount:             types.Money{Amount: m.AmountCents, Currency: m.Currency},
		PaymentMethod:      m.PaymentMethod,
		CurrentPeriodStart: m.CurrentPeriodStart,
		CurrentPeriodEnd:   m.CurrentPeriodEnd,
		AutoRenew:          m.AutoRenew,
		CancelledAt:        m.CancelledAt,
		ExpiredAt:          m.ExpiredAt,
		Metadata:           m.Metadata,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:dunning_payments"`

	ID             string     `grove:"id,pk"`
	SubscriptionID string     `grove:"subscription_id"`
	AmountCents    int64      `grove:"amount_cents"`
	Currency       string     `grove:"currency"`
	Status         string     `grove:"status"`
	GatewayTxnID   string     `grove:"gateway_txn_id"`
	FailureReason  string     `grove:"failure_reason"`
	ErrorCode      string     `grove:"error_code"`
	PaidAt         *time.Time `grove:"paid_at"`
	FailedAt       *time.Time `grove:"failed_at"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:             p.ID.String(),
		SubscriptionID: p.SubscriptionID.String(),
		AmountCents:    p.Amount.Amount,
		Currency:       p.Amount.Currency,
		Status:         string(p.Status),
		GatewayTxnID:   p.GatewayTxnID,
		FailureReason:  string(p.FailureReason),
		ErrorCode:      p.ErrorCode,
		PaidAt:         p.PaidAt,
		FailedAt:       p.FailedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, err
	}

	return &payment.Payment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             payID,
		SubscriptionID: subID,
		Amount:         types.Money{Amount: m.AmountCents, Currency: m.Currency},
		Status:         payment.Status(m.Status),
		GatewayTxnID:   m.GatewayTxnID,
		FailureReason:  payment.FailureReason(m.FailureReason),
		ErrorCode:      m.ErrorCode,
		PaidAt:         m.PaidAt,
		FailedAt:       m.FailedAt,
	}, nil
}

// ==================== Retry models ====================

type retryModel struct {
	grove.BaseModel `grove:"table:dunning_retries"`

	ID                string     `grove:"id,pk"`
	SubscriptionID    string     `grove:"subscription_id"`
	PaymentID         string     `grove:"payment_id"`
	AttemptNumber     int        `grove:"attempt_number"`
	ScheduledAt       time.Time  `grove:"scheduled_at"`
	AttemptedAt       *time.Time `grove:"attempted_at"`
	Status            string     `grove:"status"`
	Method            string     `grove:"retry_method"`
	GracePeriodActive bool       `grove:"grace_period_active"`
	FailureReason     string     `grove:"failure_reason"`
	CreatedAt         time.Time  `grove:"created_at"`
	UpdatedAt         time.Time  `grove:"updated_at"`
}

func toRetryModel(a *retry.Attempt) *retryModel {
	return &retryModel{
		ID:                a.ID.String(),
		SubscriptionID:    a.SubscriptionID.String(),
		PaymentID:         a.PaymentID.String(),
		AttemptNumber:     a.AttemptNumber,
		ScheduledAt:       a.ScheduledAt,
		AttemptedAt:       a.AttemptedAt,
		Status:            string(a.Status),
		Method:            string(a.Method),
		GracePeriodActive: a.GracePeriodActive,
		FailureReason:     string(a.FailureReason),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func fromRetryModel(m *retryModel) (*retry.Attempt, error) {
	retryID, err := id.ParseRetryID(m.ID)
	if err != nil {
		return nil, err
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, err
	}
	payID, err := id.ParsePaymentID(m.PaymentID)
	if err != nil {
		return nil, err
	}

	return &retry.Attempt{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                retryID,
		SubscriptionID:    subID,
		PaymentID:         payID,
		AttemptNumber:     m.AttemptNumber,
		ScheduledAt:       m.ScheduledAt,
		AttemptedAt:       m.AttemptedAt,
		Status:            retry.Status(m.Status),
		Method:            retry.Method(m.Method),
		GracePeriodActive: m.GracePeriodActive,
		FailureReason:     payment.FailureReason(m.FailureReason),
	}, nil
}

// ==================== Campaign models ====================

type campaignModel struct {
	grove.BaseModel `grove:"table:dunning_campaigns"`

	ID                 string     `grove:"id,pk"`
	SubscriptionID     string     `grove:"subscription_id"`
	Type               string     `grove:"campaign_type"`
	CurrentStep        int        `grove:"current_step"`
	TotalSteps         int        `grove:"total_steps"`
	StartedAt          time.Time  `grove:"started_at"`
	NextActionDate     time.Time  `grove:"next_action_date"`
	LastStepAt         *time.Time `grove:"last_step_at"`
	CommunicationsSent int        `grove:"communications_sent"`
	ResponseReceived   bool       `grove:"response_received"`
	Status             string     `grove:"status"`
	Resolution         string     `grove:"resolution"`
	ResolvedAt         *time.Time `grove:"resolved_at"`
	CreatedAt          time.Time  `grove:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at"`
}

func toCampaignModel(c *campaign.Campaign) *campaignModel {
	return &campaignModel{
		ID:                 c.ID.String(),
		SubscriptionID:     c.SubscriptionID.String(),
		Type:               string(c.Type),
		CurrentStep:        c.CurrentStep,
		TotalSteps:         c.TotalSteps,
		StartedAt:          c.StartedAt,
		NextActionDate:     c.NextActionDate,
		LastStepAt:         c.LastStepAt,
		CommunicationsSent: c.CommunicationsSent,
		ResponseReceived:   c.ResponseReceived,
		Status:             string(c.Status),
		Resolution:         string(c.Resolution),
		ResolvedAt:         c.ResolvedAt,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func fromCampaignModel(m *campaignModel) (*campaign.Campaign, error) {
	campaignID, err := id.ParseCampaignID(m.ID)
	if err != nil {
		return nil, err
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, err
	}

	return &campaign.Campaign{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 campaignID,
		SubscriptionID:     subID,
		Type:               campaign.Type(m.Type),
		CurrentStep:        m.CurrentStep,
		TotalSteps:         m.TotalSteps,
		StartedAt:          m.StartedAt,
		NextActionDate:     m.NextActionDate,
		LastStepAt:         m.LastStepAt,
		CommunicationsSent: m.CommunicationsSent,
		ResponseReceived:   m.ResponseReceived,
		Status:             campaign.Status(m.Status),
		Resolution:         campaign.Resolution(m.Resolution),
		ResolvedAt:         m.ResolvedAt,
	}, nil
}
