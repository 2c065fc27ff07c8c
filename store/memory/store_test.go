package memory_test

import (
	"context"
	"errors"
	"testing"

	dunning "github.com/xraph/dunning"
	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/payment"
	"github.com/xraph/dunning/store/memory"
	"github.com/xraph/dunning/subscription"
	"github.com/xraph/dunning/types"
)

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	sub := &subscription.Subscription{
		ID:      id.NewSubscriptionID(),
		OwnerID: "cust_1",
		Amount:  types.USD(2999),
	}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if err := s.CreateSubscription(ctx, sub); !errors.Is(err, dunning.ErrAlreadyExists) {
		t.Fatalf("duplicate CreateSubscription = %v, want ErrAlreadyExists", err)
	}

	p := &payment.Payment{
		ID:             id.NewPaymentID(),
		SubscriptionID: sub.ID,
		Amount:         sub.Amount,
	}
	if err := s.CreatePayment(ctx, p); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if err := s.CreatePayment(ctx, p); !errors.Is(err, dunning.ErrAlreadyExists) {
		t.Fatalf("duplicate CreatePayment = %v, want ErrAlreadyExists", err)
	}
}
