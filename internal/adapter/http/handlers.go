package http

import (
	"log/slog"
	"net/http"

	"github.com/syltwerk/hotelchat/internal/domain/answer"
	"github.com/syltwerk/hotelchat/internal/domain/chat"
	"github.com/syltwerk/hotelchat/internal/domain/errcode"
	"github.com/syltwerk/hotelchat/internal/middleware"
	"github.com/syltwerk/hotelchat/internal/service"
)

// Handlers holds the services behind the API routes.
type Handlers struct {
	Chat      *service.ChatService
	Answers   *service.AnswerService // nil when the built-in model backend is disabled
	BodyLimit int64
}

// chatRequest mirrors the widget payload. Fields are loosely typed so that
// malformed entries are dropped during normalization instead of failing the
// whole request.
type chatRequest struct {
	Question       any `json:"question"`
	Messages       any `json:"messages"`
	History        any `json:"history"`
	ConversationID any `json:"conversation_id"`
}

type chatResponse struct {
	Answer         string          `json:"answer"`
	Sources        []answer.Source `json:"sources"`
	ConversationID string          `json:"conversation_id"`
}

type chatErrorResponse struct {
	Error          string          `json:"error"`
	ErrorCode      errcode.Code    `json:"error_code"`
	SupportHint    string          `json:"support_hint"`
	Sources        []answer.Source `json:"sources"`
	ConversationID string          `json:"conversation_id"`
}

// HandleChat handles POST /api/chat.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	writeChatResponse(w, h.Chat.Ask(r.Context(), req))
}

// HandleAsk handles POST /api/ask, the built-in model backend.
func (h *Handlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if h.Answers == nil {
		writeError(w, http.StatusNotFound, "model backend disabled")
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	writeChatResponse(w, h.Answers.Answer(r.Context(), req))
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request) (service.ChatRequest, bool) {
	body, ok, err := readJSON[chatRequest](w, r, h.BodyLimit)
	if !ok {
		return service.ChatRequest{}, false
	}
	if err != nil {
		// An unreadable body is an empty request; the pipeline answers it
		// with the usual input-error shape.
		slog.DebugContext(r.Context(), "request body ignored", "error", err)
	}
	convID, _ := body.ConversationID.(string)
	return service.ChatRequest{
		TenantKey:      middleware.TenantFromContext(r.Context()),
		ConversationID: convID,
		Input:          chat.InputFromJSON(body.Question, body.Messages, body.History),
	}, true
}

// writeChatResponse writes resp with status 200 in either the answer or the error shape.
func writeChatResponse(w http.ResponseWriter, resp service.ChatResponse) {
	if resp.Failed() {
		writeJSON(w, http.StatusOK, chatErrorResponse{
			Error:          resp.Error,
			ErrorCode:      resp.ErrorCode,
			SupportHint:    resp.SupportHint,
			Sources:        []answer.Source{},
			ConversationID: resp.ConversationID,
		})
		return
	}
	sources := resp.Sources
	if sources == nil {
		sources = []answer.Source{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:         resp.Answer,
		Sources:        sources,
		ConversationID: resp.ConversationID,
	})
}
