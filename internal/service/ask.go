package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"slices"

	"github.com/syltwerk/hotelchat/internal/adapter/openai"
	"github.com/syltwerk/hotelchat/internal/config"
	"github.com/syltwerk/hotelchat/internal/domain/answer"
	"github.com/syltwerk/hotelchat/internal/domain/chat"
	"github.com/syltwerk/hotelchat/internal/domain/errcode"
	"github.com/syltwerk/hotelchat/internal/domain/knowledge"
	"github.com/syltwerk/hotelchat/internal/domain/prompt"
	"github.com/syltwerk/hotelchat/internal/domain/tenant"
	"github.com/syltwerk/hotelchat/internal/logger"
	"github.com/syltwerk/hotelchat/internal/port/tenantstore"
)

// Completer produces a model answer for a message list.
type Completer interface {
	Complete(ctx context.Context, msgs []chat.Message) (string, error)
}

// AnswerService is the built-in model backend behind /api/ask. Tenants can
// point their upstream_url at it instead of an external service.
type AnswerService struct {
	tenants tenantstore.Store
	model   Completer
	limits  config.Chat
}

// NewAnswerService creates an AnswerService.
func NewAnswerService(tenants tenantstore.Store, model Completer, limits config.Chat) *AnswerService {
	return &AnswerService{tenants: tenants, model: model, limits: limits}
}

// Answer completes one turn. Requests whose messages already carry system
// instructions are forwarded as they are; plain questions get the hotel
// prompt built here.
func (s *AnswerService) Answer(ctx context.Context, req ChatRequest) ChatResponse {
	convID, _ := chat.ResolveConversationID(req.ConversationID)
	ctx = logger.WithConversationID(ctx, convID)

	if req.TenantKey == "" {
		return failure(errcode.MissingTenant, convID)
	}
	cfg, err := s.tenants.Lookup(ctx, req.TenantKey)
	if err != nil {
		if !errors.Is(err, tenant.ErrMissing) {
			slog.ErrorContext(ctx, "tenant lookup failed", "tenant", req.TenantKey, "error", err)
		}
		return failure(errcode.MissingTenant, convID)
	}
	ctx = logger.WithTenant(ctx, cfg.Key)

	// The history window applies to the conversation only, never to the
	// instructions a prepared prompt carries up front.
	norm, err := chat.Normalize(req.Input, chat.Options{MaxQuestionChars: s.limits.MaxQuestionChars})
	if err != nil {
		return failure(errcode.MissingQuestion, convID)
	}

	var msgs []chat.Message
	if hasSystemPrompt(norm.Messages) {
		instructions, conversation := splitInstructions(norm.Messages)
		msgs = slices.Concat(instructions, chat.Clamp(conversation, s.limits.MaxHistoryDepth))
	} else {
		msgs = prompt.Build(prompt.Input{
			HotelName:    cfg.DisplayName(),
			PromptExtra:  cfg.PromptExtra,
			Context:      knowledge.PickRelevantContext(cfg.FAQText, norm.Question, s.limits.ContextBudget()),
			Conversation: chat.Clamp(norm.Messages, s.limits.MaxHistoryDepth),
		})
	}

	text, err := s.model.Complete(ctx, msgs)
	if err != nil {
		code := completionCode(err)
		slog.WarnContext(ctx, "model completion failed", "error_code", code, "error", err)
		return failure(code, convID)
	}

	text = answer.StripScripts(text)
	if text == "" {
		return failure(errcode.InvalidResponse, convID)
	}
	return ChatResponse{Answer: text, Sources: cfg.Sources(), ConversationID: convID}
}

// splitInstructions separates the leading system messages from the conversation.
func splitInstructions(msgs []chat.Message) (instructions, conversation []chat.Message) {
	i := 0
	for i < len(msgs) && msgs[i].Role == chat.RoleSystem {
		i++
	}
	return msgs[:i], msgs[i:]
}

func hasSystemPrompt(msgs []chat.Message) bool {
	for _, m := range msgs {
		if m.Role == chat.RoleSystem {
			return true
		}
	}
	return false
}

// completionCode maps a model client error onto the gateway taxonomy.
func completionCode(err error) errcode.Code {
	if status := openai.StatusCode(err); status > 0 {
		return errcode.ForStatus(status)
	}
	var netErr net.Error
	switch {
	case errors.Is(err, openai.ErrNotConfigured):
		return errcode.InitError
	case errors.Is(err, openai.ErrNoAnswer):
		return errcode.InvalidResponse
	case errors.Is(err, context.DeadlineExceeded):
		return errcode.Timeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return errcode.Timeout
	case errors.As(err, &netErr):
		return errcode.ConnectionError
	}
	return errcode.TransportError
}
