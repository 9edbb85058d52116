package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "hotelchat"

// Metrics holds all gateway metric instruments.
type Metrics struct {
	ChatRequests     metric.Int64Counter
	ChatFailures     metric.Int64Counter
	UpstreamAttempts metric.Int64Counter
	UpstreamDuration metric.Float64Histogram
	LogFailures      metric.Int64Counter
	ContextChars     metric.Int64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ChatRequests, err = meter.Int64Counter("hotelchat.chat.requests",
		metric.WithDescription("Number of chat requests by tenant"))
	if err != nil {
		return nil, err
	}

	m.ChatFailures, err = meter.Int64Counter("hotelchat.chat.failures",
		metric.WithDescription("Number of failed chat requests by error code"))
	if err != nil {
		return nil, err
	}

	m.UpstreamAttempts, err = meter.Int64Counter("hotelchat.upstream.attempts",
		metric.WithDescription("Number of HTTP attempts made against the model API"))
	if err != nil {
		return nil, err
	}

	m.UpstreamDuration, err = meter.Float64Histogram("hotelchat.upstream.duration_seconds",
		metric.WithDescription("Wall-clock time of a model API call including retries"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.LogFailures, err = meter.Int64Counter("hotelchat.exchange_log.failures",
		metric.WithDescription("Number of exchange records a sink failed to store"))
	if err != nil {
		return nil, err
	}

	m.ContextChars, err = meter.Int64Histogram("hotelchat.context.chars",
		metric.WithDescription("Characters of knowledge context sent with a prompt"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
