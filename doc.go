// Package dunning provides a payment-failure recovery engine for Go applications.
//
// Dunning is designed as a library, not a service. Import it directly into your
// Go application and feed it gateway webhook events. It provides:
//
//   - Deterministic retry scheduling with decline-aware backoff
//   - Automated dunning campaigns with escalating customer notifications
//   - A strict subscription lifecycle state machine
//   - Pluggable payment gateway integration (Stripe built-in)
//   - Durable timers that survive process restarts
//   - Extensible plugin hooks for metrics and audit trails
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/dunning"
//	    "github.com/xraph/dunning/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	eng := dunning.New(store, dunning.WithGateway(stripegw.New(apiKey, webhookSecret)))
//
//	// Start the engine (begins the timer worker)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// When a renewal charge fails, report it and the engine takes over:
//
//	result, err := eng.HandleFailure(ctx, paymentID, payment.ReasonInsufficientFunds)
//
// Soft declines (insufficient funds, timeouts) are retried on a bounded
// backoff schedule; hard declines (expired or stolen cards) stop after a
// single retry and are flagged for manual review. In parallel, a dunning
// campaign escalates customer outreach from gentle reminders to a final
// suspension notice. Recovery ends when a retry succeeds, the customer
// responds, or the grace period lapses and the subscription is cancelled.
//
// All timers are persisted: on restart the engine reloads pending retries
// and campaign steps from the store and reschedules them.
//
// # Determinism
//
// The retry policy is a pure function of the attempt number and decline
// kind, and campaign step selection depends only on days elapsed since the
// campaign started. Given the same failure history, the engine always
// produces the same schedule, which makes recovery behavior testable with
// a fake clock.
//
// All monetary amounts use integer arithmetic in the smallest currency
// unit (cents for USD, pence for GBP, etc).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	sub_01h2xcejqtf2nbrexx3vqjhp41  // Subscription ID
//	pay_01h2xcejqtf2nbrexx3vqjhp41  // Payment ID
//	rty_01h455vb4pex5vsknk084sn02q  // Retry attempt ID
//	dun_01h455vb4pex5vsknk084sn02q  // Campaign ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package dunning
