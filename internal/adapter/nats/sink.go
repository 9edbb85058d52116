package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/syltwerk/hotelchat/internal/domain/exchange"
	"github.com/syltwerk/hotelchat/internal/port/messagequeue"
)

// publisher is the part of messagequeue.Queue the sink needs.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// ExchangeSink publishes answered chat turns to "hotelchat.exchanges.<tenant>"
// for downstream consumers such as analytics.
type ExchangeSink struct {
	pub publisher
}

// NewExchangeSink creates a sink publishing through pub.
func NewExchangeSink(pub publisher) *ExchangeSink {
	return &ExchangeSink{pub: pub}
}

// Name identifies the sink in log attributes.
func (s *ExchangeSink) Name() string { return "nats" }

// Insert publishes rec as JSON.
func (s *ExchangeSink) Insert(ctx context.Context, rec *exchange.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal exchange: %w", err)
	}
	return s.pub.Publish(ctx, messagequeue.ExchangeSubject(rec.Tenant), data)
}

// PublishHealthCheck publishes a probe result to "hotelchat.health.<tenant>".
func (s *ExchangeSink) PublishHealthCheck(ctx context.Context, hc *exchange.HealthCheck) error {
	data, err := json.Marshal(hc)
	if err != nil {
		return fmt.Errorf("marshal health check: %w", err)
	}
	return s.pub.Publish(ctx, messagequeue.HealthCheckSubject(hc.Tenant), data)
}
