package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	hcotel "github.com/syltwerk/hotelchat/internal/adapter/otel"
	"github.com/syltwerk/hotelchat/internal/adapter/upstream"
	"github.com/syltwerk/hotelchat/internal/config"
	"github.com/syltwerk/hotelchat/internal/domain/answer"
	"github.com/syltwerk/hotelchat/internal/domain/chat"
	"github.com/syltwerk/hotelchat/internal/domain/errcode"
	"github.com/syltwerk/hotelchat/internal/domain/exchange"
	"github.com/syltwerk/hotelchat/internal/domain/knowledge"
	"github.com/syltwerk/hotelchat/internal/domain/prompt"
	"github.com/syltwerk/hotelchat/internal/domain/tenant"
	"github.com/syltwerk/hotelchat/internal/logger"
	"github.com/syltwerk/hotelchat/internal/port/tenantstore"
)

// Poster delivers a JSON payload to the model API.
type Poster interface {
	PostJSON(ctx context.Context, url string, payload []byte, opts ...upstream.CallOption) upstream.Result
	LogRejected(ctx context.Context, url string, res upstream.Result, opts ...upstream.CallOption)
}

// ChatRequest is one visitor turn as received by the gateway.
type ChatRequest struct {
	TenantKey      string
	ConversationID string
	Input          chat.Input
}

// ChatResponse is the visitor-facing outcome. Exactly one of Answer and
// ErrorCode is set.
type ChatResponse struct {
	Answer         string
	Sources        []answer.Source
	ConversationID string
	ErrorCode      errcode.Code
	Error          string
	SupportHint    string
}

// Failed reports whether the response carries an error.
func (r *ChatResponse) Failed() bool {
	return r.ErrorCode != ""
}

// upstreamRequest is the body posted to the model API.
type upstreamRequest struct {
	Messages       []chat.Message `json:"messages"`
	ConversationID string         `json:"conversation_id"`
}

// ChatService runs the chat pipeline: tenant lookup, normalization, context
// selection, prompt assembly, upstream delivery, sanitizing and logging.
type ChatService struct {
	tenants    tenantstore.Store
	client     Poster
	exchanges  *ExchangeLogger
	metrics    *hcotel.Metrics
	limits     config.Chat
	defaultURL string
}

// NewChatService creates a ChatService. defaultURL is used for tenants
// without their own upstream_url. exchanges and metrics may be nil.
func NewChatService(tenants tenantstore.Store, client Poster, exchanges *ExchangeLogger, metrics *hcotel.Metrics, limits config.Chat, defaultURL string) *ChatService {
	return &ChatService{
		tenants:    tenants,
		client:     client,
		exchanges:  exchanges,
		metrics:    metrics,
		limits:     limits,
		defaultURL: defaultURL,
	}
}

// Ask answers one visitor turn. It never returns a Go error; failures are
// reported through ChatResponse.ErrorCode and always echo a conversation id.
func (s *ChatService) Ask(ctx context.Context, req ChatRequest) ChatResponse {
	convID, _ := chat.ResolveConversationID(req.ConversationID)
	ctx = logger.WithConversationID(ctx, convID)

	ctx, span := hcotel.StartChatSpan(ctx, req.TenantKey, convID)
	defer span.End()

	resp := s.ask(ctx, req, convID)

	s.record(ctx, req.TenantKey, resp.ErrorCode)
	if resp.Failed() {
		span.SetStatus(codes.Error, string(resp.ErrorCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return resp
}

func (s *ChatService) ask(ctx context.Context, req ChatRequest, convID string) ChatResponse {
	cfg, err := s.lookup(ctx, req.TenantKey)
	if err != nil {
		return failure(errcode.MissingTenant, convID)
	}
	ctx = logger.WithTenant(ctx, cfg.Key)

	norm, err := chat.Normalize(req.Input, chat.Options{
		MaxQuestionChars: s.limits.MaxQuestionChars,
		MaxHistoryDepth:  s.limits.MaxHistoryDepth,
	})
	if err != nil {
		return failure(errcode.MissingQuestion, convID)
	}

	knowledgeCtx := knowledge.PickRelevantContext(cfg.FAQText, norm.Question, s.limits.ContextBudget())
	if s.metrics != nil {
		s.metrics.ContextChars.Record(ctx, int64(len([]rune(knowledgeCtx))),
			metric.WithAttributes(attribute.String("tenant", cfg.Key)))
	}

	payload, err := json.Marshal(upstreamRequest{
		Messages: prompt.Build(prompt.Input{
			HotelName:    cfg.DisplayName(),
			PromptExtra:  cfg.PromptExtra,
			Context:      knowledgeCtx,
			Conversation: norm.Messages,
		}),
		ConversationID: convID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "encode upstream payload", "error", err)
		return failure(errcode.InitError, convID)
	}

	url := s.upstreamURL(cfg)
	logOpt := upstream.WithErrorLog(cfg.ErrorLogPath)
	res := s.client.PostJSON(ctx, url, payload, logOpt)
	if !res.Success {
		return failure(res.ErrorCode, convID)
	}

	text, sources, code := parseUpstream(res.Body)
	if code != "" {
		res.ErrorCode = code
		s.client.LogRejected(ctx, url, res, logOpt)
		return failure(code, convID)
	}
	if len(sources) == 0 {
		sources = cfg.Sources()
	}

	history := make([]chat.Message, 0, len(norm.Messages)+1)
	history = append(history, norm.Messages...)
	history = append(history, chat.Message{Role: chat.RoleAssistant, Content: text})
	if s.exchanges != nil {
		s.exchanges.Log(ctx, exchange.Record{
			Tenant:         cfg.Key,
			ConversationID: convID,
			Question:       norm.Question,
			Answer:         text,
			Messages:       history,
			Attempts:       res.Attempts,
		})
	}

	return ChatResponse{Answer: text, Sources: sources, ConversationID: convID}
}

func (s *ChatService) lookup(ctx context.Context, key string) (*tenant.Config, error) {
	if strings.TrimSpace(key) == "" {
		return nil, tenant.ErrMissing
	}
	cfg, err := s.tenants.Lookup(ctx, key)
	if err != nil {
		if errors.Is(err, tenant.ErrMissing) {
			slog.InfoContext(ctx, "unknown tenant", "tenant", key)
		} else {
			slog.ErrorContext(ctx, "tenant lookup failed", "tenant", key, "error", err)
		}
		return nil, err
	}
	return cfg, nil
}

func (s *ChatService) upstreamURL(cfg *tenant.Config) string {
	if cfg.UpstreamURL != "" {
		return cfg.UpstreamURL
	}
	return s.defaultURL
}

func (s *ChatService) record(ctx context.Context, tenantKey string, code errcode.Code) {
	if s.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tenant", tenantKey))
	s.metrics.ChatRequests.Add(ctx, 1, attrs)
	if code != "" {
		s.metrics.ChatFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tenant", tenantKey),
			attribute.String("error_code", string(code)),
		))
	}
}

// parseUpstream validates a 2xx model API body. It returns the sanitized
// answer and filtered sources, or the error code describing why the body
// was rejected.
func parseUpstream(body []byte) (string, []answer.Source, errcode.Code) {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil || decoded == nil {
		return "", nil, errcode.MalformedResponse
	}
	if hasValue(decoded["error"]) {
		return "", nil, errcode.InvalidResponse
	}
	raw, ok := decoded["answer"].(string)
	if !ok {
		return "", nil, errcode.InvalidResponse
	}
	text := answer.Sanitize(raw)
	if text == "" {
		return "", nil, errcode.InvalidResponse
	}
	return text, answer.FilterSources(decoded["sources"]), ""
}

// hasValue reports whether a decoded JSON field is set to something other
// than null, false or a blank string.
func hasValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return t
	}
	return true
}

// failure builds the visitor-facing error response for code.
func failure(code errcode.Code, convID string) ChatResponse {
	return ChatResponse{
		Sources:        []answer.Source{},
		ConversationID: convID,
		ErrorCode:      code,
		Error:          errcode.Message(code),
		SupportHint:    errcode.SupportHint,
	}
}
