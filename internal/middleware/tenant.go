package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/syltwerk/hotelchat/internal/logger"
)

const (
	headerTenantID = "X-Tenant-ID"
	queryTenant    = "tenant"
)

type tenantCtxKey struct{}

// Tenant extracts the tenant key from the "tenant" query parameter, falling
// back to the X-Tenant-ID header, and stores it in the request context.
// A missing key is not rejected here; handlers answer it in-band.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.URL.Query().Get(queryTenant))
		if key == "" {
			key = strings.TrimSpace(r.Header.Get(headerTenantID))
		}
		ctx := context.WithValue(r.Context(), tenantCtxKey{}, key)
		if key != "" {
			ctx = logger.WithTenant(ctx, key)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantFromContext returns the tenant key stored in ctx, or "" if absent.
func TenantFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(tenantCtxKey{}).(string); ok {
		return key
	}
	return ""
}
