// Package middleware provides HTTP middleware for the chat gateway.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/syltwerk/hotelchat/internal/logger"
)

const headerRequestID = "X-Request-ID"

// acceptedRequestID bounds what a caller may supply; anything else is replaced.
var acceptedRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// RequestID is HTTP middleware that extracts X-Request-ID from the request
// header or generates a new one. The ID is stored in the context and set
// on the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !acceptedRequestID.MatchString(id) {
			id = generateID()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateID returns a random UUID in 32-char hex form.
func generateID() string {
	u := uuid.New()
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 32)
	for i, b := range u {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0f]
	}
	return string(out)
}
