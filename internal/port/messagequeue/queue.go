// Package messagequeue defines the message queue port used to fan out chat events.
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects used by the gateway. Exchange and health subjects get a
// ".{tenant}" suffix.
const (
	SubjectExchange         = "hotelchat.exchanges"
	SubjectHealthCheck      = "hotelchat.health"
	SubjectTenantInvalidate = "hotelchat.tenants.invalidate"
)

// ExchangeSubject returns the per-tenant exchange subject.
func ExchangeSubject(tenant string) string {
	return SubjectExchange + "." + tenant
}

// HealthCheckSubject returns the per-tenant health-check subject.
func HealthCheckSubject(tenant string) string {
	return SubjectHealthCheck + "." + tenant
}
