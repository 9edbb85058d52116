package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/syltwerk/hotelchat/internal/adapter/upstream"
	"github.com/syltwerk/hotelchat/internal/domain/chat"
	"github.com/syltwerk/hotelchat/internal/domain/errcode"
	"github.com/syltwerk/hotelchat/internal/domain/exchange"
	"github.com/syltwerk/hotelchat/internal/port/tenantstore"
)

const (
	healthCheckPrompt   = "Health check ping"
	healthCheckQuestion = "PING"
)

// HealthRecorder stores or forwards a probe result.
type HealthRecorder interface {
	InsertHealthCheck(ctx context.Context, hc *exchange.HealthCheck) error
}

// HealthRecorderFunc adapts a function to HealthRecorder.
type HealthRecorderFunc func(ctx context.Context, hc *exchange.HealthCheck) error

// InsertHealthCheck calls f.
func (f HealthRecorderFunc) InsertHealthCheck(ctx context.Context, hc *exchange.HealthCheck) error {
	return f(ctx, hc)
}

// HealthCheckService sends a synthetic question to a tenant's model API and
// records latency and outcome.
type HealthCheckService struct {
	tenants    tenantstore.Store
	client     Poster
	recorders  []HealthRecorder
	defaultURL string
	now        func() time.Time
}

// NewHealthCheckService creates a HealthCheckService. Nil recorders are skipped.
func NewHealthCheckService(tenants tenantstore.Store, client Poster, defaultURL string, recorders ...HealthRecorder) *HealthCheckService {
	s := &HealthCheckService{tenants: tenants, client: client, defaultURL: defaultURL, now: time.Now}
	for _, r := range recorders {
		if r != nil {
			s.recorders = append(s.recorders, r)
		}
	}
	return s
}

// Check probes the tenant's upstream with question ("PING" when blank).
// The returned error covers only an unknown tenant; upstream failures are
// reported through HealthCheck.Success and ErrorCode.
func (s *HealthCheckService) Check(ctx context.Context, tenantKey, question string) (*exchange.HealthCheck, error) {
	cfg, err := s.tenants.Lookup(ctx, tenantKey)
	if err != nil {
		return nil, fmt.Errorf("health check %s: %w", tenantKey, err)
	}

	question = strings.TrimSpace(question)
	if question == "" {
		question = healthCheckQuestion
	}
	payload, err := json.Marshal(upstreamRequest{
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: healthCheckPrompt},
			{Role: chat.RoleUser, Content: question},
		},
		ConversationID: chat.NewConversationID(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode health check payload: %w", err)
	}

	url := cfg.UpstreamURL
	if url == "" {
		url = s.defaultURL
	}

	start := s.now()
	res := s.client.PostJSON(ctx, url, payload, upstream.WithErrorLog(cfg.ErrorLogPath))
	hc := &exchange.HealthCheck{
		Tenant:          cfg.Key,
		StatusCode:      res.StatusCode,
		LatencyMS:       s.now().Sub(start).Milliseconds(),
		ErrorCode:       string(res.ErrorCode),
		ResponseExcerpt: upstream.Excerpt(res.Body),
		CreatedAt:       start.UTC(),
	}
	if res.Success {
		hc.Success, hc.ErrorCode = evaluateProbe(res.Body)
	}

	s.record(ctx, hc)
	return hc, nil
}

// evaluateProbe accepts a JSON object with an answer and no error field.
func evaluateProbe(body []byte) (bool, string) {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil || decoded == nil {
		return false, string(errcode.InvalidResponse)
	}
	_, hasAnswer := decoded["answer"]
	_, hasError := decoded["error"]
	if hasAnswer && !hasError {
		return true, ""
	}
	if code, ok := decoded["error_code"].(string); ok && code != "" {
		return false, code
	}
	return false, string(errcode.InvalidResponse)
}

func (s *HealthCheckService) record(ctx context.Context, hc *exchange.HealthCheck) {
	for _, r := range s.recorders {
		c := *hc
		if err := r.InsertHealthCheck(ctx, &c); err != nil {
			slog.WarnContext(ctx, "health check not recorded", "tenant", hc.Tenant, "error", err)
		}
	}
}
