package dunning_test

import (
	"context"
	"errors"
	"testing"
	"time"

	dunning "github.com/xraph/dunning"
	"github.com/xraph/dunning/campaign"
	"github.com/xraph/dunning/gateway"
	"github.com/xraph/dunning/notify"
	"github.com/xraph/dunning/payment"
	"github.com/xraph/dunning/retry"
	"github.com/xraph/dunning/store"
	"github.com/xraph/dunning/store/memory"
	"github.com/xraph/dunning/subscription"
	"github.com/xraph/dunning/timer"
	"github.com/xraph/dunning/types"
)

// stubGateway returns a canned verdict for every charge.
type stubGateway struct {
	result *gateway.ChargeResult
	err    error
	calls  int
}

func (g *stubGateway) Charge(_ context.Context, _ gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	g.calls++
	return g.result, g.err
}

func (g *stubGateway) decline(reason payment.FailureReason) {
	g.result = &gateway.ChargeResult{Success: false, FailureReason: string(reason), ErrorCode: "card_declined"}
	g.err = nil
}

func (g *stubGateway) succeed(txnID string) {
	g.result = &gateway.ChargeResult{Success: true, TransactionID: txnID}
	g.err = nil
}

// env wires an engine against the memory store with a fake clock. The
// background worker is never started; tests drive timers via Tick.
type env struct {
	eng   *dunning.Engine
	store *memory.Store
	clock *timer.Fake
	gw    *stubGateway
	sent  []notify.Notification
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store: memory.New(),
		clock: timer.NewFake(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		gw:    &stubGateway{},
	}
	e.gw.decline(payment.ReasonInsufficientFunds)
	e.eng = dunning.New(e.store,
		dunning.WithClock(e.clock),
		dunning.WithGateway(e.gw),
		dunning.WithDispatcher(notify.DispatcherFunc(func(_ context.Context, n notify.Notification) error {
			e.sent = append(e.sent, n)
			return nil
		})),
	)
	return e
}

func (e *env) createSubscription(t *testing.T) *subscription.Subscription {
	t.Helper()
	sub := &subscription.Subscription{
		OwnerID:       "cust_42",
		Plan:          "pro",
		BillingCycle:  subscription.CycleMonthly,
		Amount:        types.USD(2999),
		PaymentMethod: "pm_stored_card",
		AutoRenew:     true,
	}
	if err := e.eng.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	return sub
}

// failPayment creates a renewal payment and reports its failure.
func (e *env) failPayment(t *testing.T, sub *subscription.Subscription, reason payment.FailureReason) (*payment.Payment, *dunning.FailureResult) {
	t.Helper()
	p := &payment.Payment{SubscriptionID: sub.ID, Amount: sub.Amount}
	if err := e.eng.CreatePayment(context.Background(), p); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	res, err := e.eng.HandleFailure(context.Background(), p.ID, sub.ID, reason, "card_declined")
	if err != nil {
		t.Fatalf("HandleFailure: %v", err)
	}
	return p, res
}

// tickDays advances the clock one day at a time, firing due timers.
func (e *env) tickDays(t *testing.T, days int) {
	t.Helper()
	for i := 0; i < days; i++ {
		e.clock.Advance(24 * time.Hour)
		e.eng.Tick(context.Background())
	}
}

func TestHandleFailureSchedulesRetryAndCampaign(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)
	start := e.clock.Now()

	_, res := e.failPayment(t, sub, payment.ReasonInsufficientFunds)

	if res.RecommendedAction != dunning.ActionAwaitRetry {
		t.Fatalf("action = %q, want %q", res.RecommendedAction, dunning.ActionAwaitRetry)
	}
	if res.RetryID == nil {
		t.Fatal("no retry scheduled")
	}
	attempt, err := e.store.GetRetry(ctx, *res.RetryID)
	if err != nil {
		t.Fatalf("GetRetry: %v", err)
	}
	if attempt.AttemptNumber != 1 {
		t.Errorf("attempt number = %d, want 1", attempt.AttemptNumber)
	}
	if want := start.Add(24 * time.Hour); !attempt.ScheduledAt.Equal(want) {
		t.Errorf("scheduled at %v, want %v", attempt.ScheduledAt, want)
	}
	if attempt.Method != retry.MethodAutomatic {
		t.Errorf("method = %q, want automatic", attempt.Method)
	}
	if res.GracePeriodEnd == nil {
		t.Fatal("no grace period end")
	}
	if want := start.AddDate(0, 0, 14); !res.GracePeriodEnd.Equal(want) {
		t.Errorf("grace end = %v, want %v", res.GracePeriodEnd, want)
	}

	got, err := e.eng.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.Status != subscription.StatusPastDue {
		t.Errorf("subscription status = %q, want past_due", got.Status)
	}

	c, err := e.store.GetActiveCampaign(ctx, sub.ID)
	if err != nil {
		t.Fatalf("no active campaign: %v", err)
	}
	if c.CurrentStep != 0 {
		t.Errorf("campaign step = %d, want 0", c.CurrentStep)
	}
	if want := start.AddDate(0, 0, 1); !c.NextActionDate.Equal(want) {
		t.Errorf("first action at %v, want %v", c.NextActionDate, want)
	}
}

func TestHandleFailureIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)

	p, first := e.failPayment(t, sub, payment.ReasonInsufficientFunds)

	// Redelivered webhook for the same payment.
	second, err := e.eng.HandleFailure(ctx, p.ID, sub.ID, payment.ReasonInsufficientFunds, "card_declined")
	if err != nil {
		t.Fatalf("redelivered HandleFailure: %v", err)
	}
	if second.RetryID == nil || second.RetryID.String() != first.RetryID.String() {
		t.Fatalf("redelivery scheduled a new attempt: %v vs %v", second.RetryID, first.RetryID)
	}

	attempts, err := e.store.ListRetries(ctx, sub.ID)
	if err != nil {
		t.Fatalf("ListRetries: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}
}

func TestRetryFailureEscalatesSchedule(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)
	start := e.clock.Now()

	e.failPayment(t, sub, payment.ReasonInsufficientFunds)

	// Day 1: retry #1 fires and is declined again.
	e.tickDays(t, 1)

	if e.gw.calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", e.gw.calls)
	}
	next, err := e.store.GetScheduledRetry(ctx, sub.ID)
	if err != nil {
		t.Fatalf("no follow-up retry: %v", err)
	}
	if next.AttemptNumber != 2 {
		t.Errorf("attempt number = %d, want 2", next.AttemptNumber)
	}
	if want := start.AddDate(0, 0, 4); !next.ScheduledAt.Equal(want) {
		t.Errorf("retry #2 at %v, want day 4 (%v)", next.ScheduledAt, want)
	}

	got, _ := e.eng.GetSubscription(ctx, sub.ID)
	if got.Status != subscription.StatusPaymentFailed {
		t.Errorf("subscription status = %q, want payment_failed", got.Status)
	}
}

func TestHardDeclineStopsAfterSingleRetry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)
	e.gw.decline(payment.ReasonCardExpired)

	_, res := e.failPayment(t, sub, payment.ReasonCardExpired)
	if res.RecommendedAction != dunning.ActionAwaitRetry {
		t.Fatalf("hard decline should still get one retry, got %q", res.RecommendedAction)
	}

	// Retry #1 fires and is declined again; no further attempts.
	e.tickDays(t, 1)

	if _, err := e.store.GetScheduledRetry(ctx, sub.ID); err == nil {
		t.Fatal("hard decline scheduled a second retry")
	}
	attempts, _ := e.store.ListRetries(ctx, sub.ID)
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}
	if attempts[0].Status != retry.StatusFailed {
		t.Errorf("attempt status = %q, want failed", attempts[0].Status)
	}

	// The campaign keeps running independently of retry exhaustion.
	if _, err := e.store.GetActiveCampaign(ctx, sub.ID); err != nil {
		t.Errorf("campaign should stay active: %v", err)
	}
}

func TestRetrySuccessRecoversSubscription(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)

	p, _ := e.failPayment(t, sub, payment.ReasonInsufficientFunds)

	e.gw.succeed("txn_recovered_1")
	e.tickDays(t, 1)

	got, _ := e.eng.GetSubscription(ctx, sub.ID)
	if got.Status != subscription.StatusActive {
		t.Fatalf("subscription status = %q, want active", got.Status)
	}

	paid, _ := e.eng.GetPayment(ctx, p.ID)
	if paid.Status != payment.StatusPaid {
		t.Errorf("payment status = %q, want paid", paid.Status)
	}
	if paid.GatewayTxnID != "txn_recovered_1" {
		t.Errorf("txn id = %q", paid.GatewayTxnID)
	}

	attempts, _ := e.store.ListRetries(ctx, sub.ID)
	if len(attempts) != 1 || attempts[0].Status != retry.StatusSucceeded {
		t.Errorf("attempts = %+v, want one succeeded", attempts)
	}

	campaigns, _ := e.store.ListCampaigns(ctx, sub.ID)
	if len(campaigns) != 1 {
		t.Fatalf("campaigns = %d, want 1", len(campaigns))
	}
	if campaigns[0].Status != campaign.StatusResolved || campaigns[0].Resolution != campaign.ResolutionRecovered {
		t.Errorf("campaign = %s/%s, want resolved/recovered", campaigns[0].Status, campaigns[0].Resolution)
	}
}

func TestCampaignEscalationTimeline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)

	e.failPayment(t, sub, payment.ReasonInsufficientFunds)

	// Steps land on days 1, 5, 10 and 13. The first two are email-only,
	// the last two add SMS.
	e.tickDays(t, 1)
	if got := templates(e.sent); len(got) != 1 || got[0] != "payment_reminder" {
		t.Fatalf("day 1 notifications = %v", got)
	}

	e.tickDays(t, 4)
	if got := templates(e.sent); len(got) != 2 || got[1] != "payment_warning" {
		t.Fatalf("day 5 notifications = %v", got)
	}

	e.tickDays(t, 5)
	if got := templates(e.sent); len(got) != 4 || got[2] != "final_notice" || got[3] != "final_notice" {
		t.Fatalf("day 10 notifications = %v", got)
	}
	if e.sent[2].Channel != notify.ChannelEmail || e.sent[3].Channel != notify.ChannelSMS {
		t.Errorf("final notice channels = %s/%s, want email/sms", e.sent[2].Channel, e.sent[3].Channel)
	}

	e.tickDays(t, 3)
	if got := templates(e.sent); len(got) != 6 || got[5] != "suspension_notice" {
		t.Fatalf("day 13 notifications = %v", got)
	}

	c, err := e.store.GetActiveCampaign(ctx, sub.ID)
	if err != nil {
		t.Fatalf("campaign closed early: %v", err)
	}
	if c.CurrentStep != 4 || c.CommunicationsSent != 6 {
		t.Errorf("step = %d sent = %d, want 4/6", c.CurrentStep, c.CommunicationsSent)
	}
}

func TestCampaignExhaustionCancelsSubscription(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)

	e.failPayment(t, sub, payment.ReasonInsufficientFunds)

	// Every retry declines, no customer response: day 14 ends the grace
	// period and the campaign abandons.
	e.tickDays(t, 15)

	got, _ := e.eng.GetSubscription(ctx, sub.ID)
	if got.Status != subscription.StatusCancelled {
		t.Fatalf("subscription status = %q, want cancelled", got.Status)
	}

	campaigns, _ := e.store.ListCampaigns(ctx, sub.ID)
	if len(campaigns) != 1 {
		t.Fatalf("campaigns = %d, want 1", len(campaigns))
	}
	if campaigns[0].Status != campaign.StatusAbandoned || campaigns[0].Resolution != campaign.ResolutionAbandoned {
		t.Errorf("campaign = %s/%s, want abandoned/abandoned", campaigns[0].Status, campaigns[0].Resolution)
	}

	if _, err := e.store.GetScheduledRetry(ctx, sub.ID); err == nil {
		t.Error("cancelled subscription still has a pending retry")
	}

	status, err := e.eng.GetRetryStatus(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetRetryStatus: %v", err)
	}
	if status.Summary != "subscription cancelled after unsuccessful payment recovery" {
		t.Errorf("summary = %q", status.Summary)
	}
}

func TestCustomerResponseResolvesCampaign(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)

	e.failPayment(t, sub, payment.ReasonInsufficientFunds)
	e.tickDays(t, 5) // two steps sent, retries still declining

	if err := e.eng.RecordCustomerResponse(ctx, sub.ID); err != nil {
		t.Fatalf("RecordCustomerResponse: %v", err)
	}

	campaigns, _ := e.store.ListCampaigns(ctx, sub.ID)
	if len(campaigns) != 1 || campaigns[0].Status != campaign.StatusResolved {
		t.Fatalf("campaign not resolved: %+v", campaigns)
	}
	if !campaigns[0].ResponseReceived {
		t.Error("response flag not recorded")
	}

	// A response alone does not restore the subscription; only a
	// successful charge does.
	got, _ := e.eng.GetSubscription(ctx, sub.ID)
	if got.Status != subscription.StatusPaymentFailed {
		t.Errorf("subscription status = %q, want payment_failed", got.Status)
	}
}

func TestSecondPaymentFailureReturnsPendingRetry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)

	_, first := e.failPayment(t, sub, payment.ReasonInsufficientFunds)
	_, second := e.failPayment(t, sub, payment.ReasonInsufficientFunds)

	if second.RetryID == nil || second.RetryID.String() != first.RetryID.String() {
		t.Fatalf("second failure scheduled a duplicate retry: %v vs %v", second.RetryID, first.RetryID)
	}

	attempts, _ := e.store.ListRetries(ctx, sub.ID)
	scheduled := 0
	for _, a := range attempts {
		if a.Status == retry.StatusScheduled {
			scheduled++
		}
	}
	if scheduled != 1 {
		t.Errorf("scheduled attempts = %d, want 1", scheduled)
	}
}

func TestTriggerManualRetry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)

	e.failPayment(t, sub, payment.ReasonInsufficientFunds)

	e.gw.succeed("txn_manual_1")
	res, err := e.eng.TriggerManualRetry(ctx, sub.ID)
	if err != nil {
		t.Fatalf("TriggerManualRetry: %v", err)
	}
	if !res.Success {
		t.Fatal("manual retry did not succeed")
	}

	got, _ := e.eng.GetSubscription(ctx, sub.ID)
	if got.Status != subscription.StatusActive {
		t.Errorf("subscription status = %q, want active", got.Status)
	}

	attempts, _ := e.store.ListRetries(ctx, sub.ID)
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(attempts))
	}
	var manual *retry.Attempt
	for _, a := range attempts {
		if a.Method == retry.MethodManual {
			manual = a
		} else if a.Status != retry.StatusAbandoned {
			t.Errorf("pending automatic attempt not retired: %s", a.Status)
		}
	}
	if manual == nil || manual.Status != retry.StatusSucceeded {
		t.Fatalf("manual attempt = %+v, want succeeded", manual)
	}
}

func TestTriggerManualRetryOnHealthySubscription(t *testing.T) {
	e := newEnv(t)
	sub := e.createSubscription(t)

	if _, err := e.eng.TriggerManualRetry(context.Background(), sub.ID); err == nil {
		t.Fatal("manual retry on an active subscription should fail")
	}
}

func TestRetryStatusSummary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)

	status, err := e.eng.GetRetryStatus(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetRetryStatus: %v", err)
	}
	if status.Summary != "subscription in good standing" {
		t.Errorf("summary = %q", status.Summary)
	}

	e.failPayment(t, sub, payment.ReasonInsufficientFunds)

	status, _ = e.eng.GetRetryStatus(ctx, sub.ID)
	if status.Summary != "payment failed, retrying in 1 day" {
		t.Errorf("summary = %q", status.Summary)
	}
	if len(status.Attempts) != 1 || len(status.Campaigns) != 1 {
		t.Errorf("attempts/campaigns = %d/%d, want 1/1", len(status.Attempts), len(status.Campaigns))
	}
}

func TestExpireLapsedSubscriptions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	lapsing := &subscription.Subscription{
		OwnerID:      "cust_churned",
		Plan:         "basic",
		BillingCycle: subscription.CycleMonthly,
		Amount:       types.USD(999),
		AutoRenew:    false,
	}
	if err := e.eng.CreateSubscription(ctx, lapsing); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	renewing := e.createSubscription(t) // AutoRenew on

	e.clock.Advance(32 * 24 * time.Hour)

	n, err := e.eng.ExpireLapsedSubscriptions(ctx)
	if err != nil {
		t.Fatalf("ExpireLapsedSubscriptions: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	got, _ := e.eng.GetSubscription(ctx, lapsing.ID)
	if got.Status != subscription.StatusExpired {
		t.Errorf("lapsed subscription status = %q, want expired", got.Status)
	}
	got, _ = e.eng.GetSubscription(ctx, renewing.ID)
	if got.Status != subscription.StatusActive {
		t.Errorf("auto-renewing subscription status = %q, want active", got.Status)
	}
}

func templates(sent []notify.Notification) []string {
	out := make([]string, len(sent))
	for i, n := range sent {
		out[i] = n.TemplateID
	}
	return out
}

// unreliableStore fails a configurable number of campaign creates and
// otherwise delegates to the wrapped store.
type unreliableStore struct {
	store.Store
	campaignFailures int
}

func (s *unreliableStore) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	if s.campaignFailures > 0 {
		s.campaignFailures--
		return errors.New("store unavailable")
	}
	return s.Store.CreateCampaign(ctx, c)
}

func TestHandleFailureRedeliveryRepairsPartialState(t *testing.T) {
	mem := memory.New()
	flaky := &unreliableStore{Store: mem, campaignFailures: 1}
	gw := &stubGateway{}
	gw.decline(payment.ReasonInsufficientFunds)
	eng := dunning.New(flaky,
		dunning.WithClock(timer.NewFake(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))),
		dunning.WithGateway(gw),
	)
	ctx := context.Background()

	sub := &subscription.Subscription{
		OwnerID:       "cust_42",
		Plan:          "pro",
		BillingCycle:  subscription.CycleMonthly,
		Amount:        types.USD(2999),
		PaymentMethod: "pm_stored_card",
		AutoRenew:     true,
	}
	if err := eng.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	p := &payment.Payment{SubscriptionID: sub.ID, Amount: sub.Amount}
	if err := eng.CreatePayment(ctx, p); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	// First delivery dies between the retry write and the campaign write.
	if _, err := eng.HandleFailure(ctx, p.ID, sub.ID, payment.ReasonInsufficientFunds, "card_declined"); err == nil {
		t.Fatal("HandleFailure succeeded despite the campaign write failing")
	}

	// Redelivery finds the existing attempt and must repair the rest.
	res, err := eng.HandleFailure(ctx, p.ID, sub.ID, payment.ReasonInsufficientFunds, "card_declined")
	if err != nil {
		t.Fatalf("redelivered HandleFailure: %v", err)
	}
	if res.RetryID == nil {
		t.Fatal("redelivery returned no retry")
	}

	if _, err := mem.GetActiveCampaign(ctx, sub.ID); err != nil {
		t.Fatalf("no dunning campaign after redelivery: %v", err)
	}
	got, err := mem.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.Status != subscription.StatusPastDue {
		t.Fatalf("subscription status = %q, want %q", got.Status, subscription.StatusPastDue)
	}
}

func TestLateCampaignTimerConverges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := e.createSubscription(t)
	e.failPayment(t, sub, payment.ReasonInsufficientFunds)

	// The worker is down for three days, so the first step fires late.
	e.clock.Advance(3 * 24 * time.Hour)
	e.eng.Tick(ctx)

	c, err := e.store.GetActiveCampaign(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetActiveCampaign: %v", err)
	}
	if c.CurrentStep != 1 {
		t.Fatalf("step = %d after late delivery, want 1", c.CurrentStep)
	}

	// Three more days. The step-two timer is due by its original date,
	// but the gap since the late step one has not elapsed: the tick must
	// return and push the next action into the future.
	e.clock.Advance(3 * 24 * time.Hour)
	done := make(chan struct{})
	go func() {
		e.eng.Tick(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("tick did not return after a premature campaign timer")
	}

	c, err = e.store.GetActiveCampaign(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetActiveCampaign: %v", err)
	}
	if c.CurrentStep != 1 {
		t.Fatalf("step = %d, want 1 while the gap runs", c.CurrentStep)
	}
	if !c.NextActionDate.After(e.clock.Now()) {
		t.Fatalf("next action %v not after %v", c.NextActionDate, e.clock.Now())
	}

	// Once the full gap since the late step has passed, step two fires.
	e.tickDays(t, 1)
	c, err = e.store.GetActiveCampaign(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetActiveCampaign: %v", err)
	}
	if c.CurrentStep != 2 {
		t.Fatalf("step = %d after gap elapsed, want 2", c.CurrentStep)
	}
}
