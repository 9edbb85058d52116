package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	hcotel "github.com/syltwerk/hotelchat/internal/adapter/otel"
	"github.com/syltwerk/hotelchat/internal/domain/exchange"
	"github.com/syltwerk/hotelchat/internal/port/exchangelog"
)

// ExchangeLogger writes answered turns to every configured sink.
// A failing sink never affects the response or the other sinks.
type ExchangeLogger struct {
	sinks   []exchangelog.Sink
	metrics *hcotel.Metrics
	now     func() time.Time
}

// NewExchangeLogger creates an ExchangeLogger. Nil sinks are skipped.
func NewExchangeLogger(metrics *hcotel.Metrics, sinks ...exchangelog.Sink) *ExchangeLogger {
	l := &ExchangeLogger{metrics: metrics, now: time.Now}
	for _, s := range sinks {
		if s != nil {
			l.sinks = append(l.sinks, s)
		}
	}
	return l
}

// SinkCount returns the number of configured sinks.
func (l *ExchangeLogger) SinkCount() int {
	return len(l.sinks)
}

// Log stores rec in all sinks concurrently and waits for them. It is a no-op
// when ctx is already done.
func (l *ExchangeLogger) Log(ctx context.Context, rec exchange.Record) {
	if len(l.sinks) == 0 {
		return
	}
	if ctx.Err() != nil {
		slog.DebugContext(ctx, "exchange log skipped, request cancelled")
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}

	ctx, span := hcotel.StartExchangeLogSpan(ctx, rec.Tenant, len(l.sinks))
	defer span.End()

	var g errgroup.Group
	for _, sink := range l.sinks {
		r := rec
		r.Messages = slices.Clone(rec.Messages)
		g.Go(func() error {
			if err := sink.Insert(ctx, &r); err != nil {
				slog.WarnContext(ctx, "exchange log sink failed", "sink", sinkName(sink), "error", err)
				if l.metrics != nil {
					l.metrics.LogFailures.Add(ctx, 1, metric.WithAttributes(
						attribute.String("tenant", rec.Tenant),
						attribute.String("sink", sinkName(sink)),
					))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

// sinkName returns a short name for log attributes.
func sinkName(s exchangelog.Sink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "sink"
}
