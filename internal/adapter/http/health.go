package http

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connectivity reports the state of a long-lived connection.
type Connectivity interface {
	IsConnected() bool
}

// Health describes the dependencies reported by GET /health. Nil fields are
// reported as "disabled".
type Health struct {
	Store     Pinger
	Queue     Connectivity
	Telemetry string
	Timeout   time.Duration
}

type healthStatus struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	NATS      string `json:"nats"`
	Telemetry string `json:"telemetry"`
}

// Handler returns the /health handler. A failing store or a disconnected
// queue reports status "degraded" with 503.
func (h Health) Handler() http.HandlerFunc {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok", Store: "disabled", NATS: "disabled", Telemetry: h.Telemetry}
		if status.Telemetry == "" {
			status.Telemetry = "none"
		}

		if h.Store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			err := h.Store.Ping(ctx)
			cancel()
			if err != nil {
				status.Store = "unreachable"
				status.Status = "degraded"
			} else {
				status.Store = "ok"
			}
		}
		if h.Queue != nil {
			if h.Queue.IsConnected() {
				status.NATS = "connected"
			} else {
				status.NATS = "disconnected"
				status.Status = "degraded"
			}
		}

		code := http.StatusOK
		if status.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}
