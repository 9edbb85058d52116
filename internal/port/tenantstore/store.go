// Package tenantstore defines the port for resolving tenant configuration.
package tenantstore

import (
	"context"

	"github.com/syltwerk/hotelchat/internal/domain/tenant"
)

// Store resolves a tenant key to its configuration. Unknown keys return an
// error wrapping domain.ErrNotFound.
type Store interface {
	Lookup(ctx context.Context, key string) (*tenant.Config, error)
}

// Invalidator drops cached configuration for a tenant.
type Invalidator interface {
	Invalidate(ctx context.Context, key string)
}
