package notifier

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers a message over some channel. Implementations must be
// safe for concurrent use.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher runs sends fire-and-forget. Delivery failure is logged and
// never reaches the caller; money-state changes must not depend on it.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
}

func NewDispatcher(n Notifier, timeout time.Duration) *Dispatcher {
	return &Dispatcher{notifier: n, timeout: timeout}
}

// Dispatch delivers the message on a separate goroutine and returns
// immediately.
func (d *Dispatcher) Dispatch(msg Message) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic recovered in notifier dispatch",
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Send(ctx, msg); err != nil {
			slog.Error("notification delivery failed",
				"error", err,
				"to", msg.To,
				"subject", msg.Subject,
			)
		}
	}()
}

// Disabled is a Notifier that drops every message. Used when mail is not
// configured.
type Disabled struct{}

func (Disabled) Send(ctx context.Context, msg Message) error {
	slog.Info("mail disabled, dropping message", "to", msg.To, "subject", msg.Subject)
	return nil
}
