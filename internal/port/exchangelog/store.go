// Package exchangelog defines the port for persisting answered chat turns.
package exchangelog

import (
	"context"

	"github.com/syltwerk/hotelchat/internal/domain/exchange"
)

// Sink receives exchange records. Implementations may fail; callers treat
// failures as non-fatal.
type Sink interface {
	Insert(ctx context.Context, rec *exchange.Record) error
}

// Store is a queryable exchange log that also keeps health-check results.
type Store interface {
	Sink
	ListExchanges(ctx context.Context, tenant string, f exchange.Filter) ([]exchange.Record, error)
	InsertHealthCheck(ctx context.Context, hc *exchange.HealthCheck) error
	ListHealthChecks(ctx context.Context, tenant string, limit int) ([]exchange.HealthCheck, error)
	Ping(ctx context.Context) error
	Close()
}
