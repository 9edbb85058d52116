package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/syltwerk/hotelchat/internal/adapter/upstream"
	"github.com/syltwerk/hotelchat/internal/domain/errcode"
	"github.com/syltwerk/hotelchat/internal/domain/exchange"
	"github.com/syltwerk/hotelchat/internal/domain/tenant"
)

type tenantMap map[string]*tenant.Config

func (m tenantMap) Lookup(_ context.Context, key string) (*tenant.Config, error) {
	cfg, ok := m[strings.ToLower(key)]
	if !ok {
		return nil, fmt.Errorf("lookup %q: %w", key, tenant.ErrMissing)
	}
	c := *cfg
	return &c, nil
}

type postCall struct {
	url     string
	payload []byte
}

// scriptedPoster returns res for every call and records what it was sent.
type scriptedPoster struct {
	mu       sync.Mutex
	res      upstream.Result
	calls    []postCall
	rejected []upstream.Result
}

func (p *scriptedPoster) PostJSON(_ context.Context, url string, payload []byte, _ ...upstream.CallOption) upstream.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, postCall{url: url, payload: payload})
	return p.res
}

func (p *scriptedPoster) LogRejected(_ context.Context, _ string, res upstream.Result, _ ...upstream.CallOption) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected = append(p.rejected, res)
}

func okBody(body string) upstream.Result {
	return upstream.Result{Success: true, StatusCode: 200, Attempts: 1, Body: []byte(body)}
}

func failed(code errcode.Code, status int) upstream.Result {
	return upstream.Result{StatusCode: status, Attempts: 3, ErrorCode: code}
}

// sentPayload decodes the only recorded call.
func (p *scriptedPoster) sentPayload(t *testing.T) upstreamRequest {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) != 1 {
		t.Fatalf("expected 1 upstream call, got %d", len(p.calls))
	}
	var req upstreamRequest
	if err := json.Unmarshal(p.calls[0].payload, &req); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	return req
}

type memorySink struct {
	mu      sync.Mutex
	name    string
	err     error
	records []exchange.Record
	checks  []exchange.HealthCheck
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Insert(_ context.Context, rec *exchange.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	rec.ID = int64(len(s.records) + 1)
	s.records = append(s.records, *rec)
	return nil
}

func (s *memorySink) InsertHealthCheck(_ context.Context, hc *exchange.HealthCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.checks = append(s.checks, *hc)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func aarnhoog() *tenant.Config {
	return &tenant.Config{
		Key:         "aarnhoog",
		HotelName:   "Hotel Aarnhoog",
		HotelURL:    "https://aarnhoog.example",
		FAQFile:     "data/faq.md",
		FAQText:     "Frühstück gibt es ab 7 Uhr im Wintergarten.\n\nParken kostet 10 Euro pro Nacht.\n\nDer Check-out ist bis 11 Uhr möglich.",
		PromptExtra: "Erwähne die Sauna.",
	}
}

func messagesOf(v ...map[string]any) []any {
	out := make([]any, len(v))
	for i, m := range v {
		out[i] = m
	}
	return out
}

func msg(role, content string) map[string]any {
	return map[string]any{"role": role, "content": content}
}

func isHexID(id string) bool {
	if len(id) != 32 {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

