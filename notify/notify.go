// Package notify defines the outbound customer communication seam.
//
// The engine treats notification delivery as fire-and-forget: send failures
// are logged and never fail the recovery pipeline.
package notify

import (
	"context"
	"log/slog"

	"github.com/xraph/dunning/id"
)

// Channel is a delivery channel for customer communications.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Notification is one outbound communication.
type Notification struct {
	ID         id.NotificationID `json:"id"`
	TemplateID string            `json:"template_id"`
	Channel    Channel           `json:"channel"`
	Recipient  string            `json:"recipient"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// Dispatcher delivers customer communications.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}

// DispatcherFunc is an adapter to use a plain function as a Dispatcher.
type DispatcherFunc func(ctx context.Context, n Notification) error

// Send implements Dispatcher.
func (f DispatcherFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogDispatcher is a Dispatcher that only logs. Useful in development and
// tests, and the default when no dispatcher is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a LogDispatcher with the given logger.
// A nil logger falls back to slog.Default().
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// Send implements Dispatcher.
func (d *LogDispatcher) Send(_ context.Context, n Notification) error {
	d.logger.Info("notification dispatched",
		"template", n.TemplateID,
		"channel", n.Channel,
		"recipient", n.Recipient,
	)
	return nil
}
