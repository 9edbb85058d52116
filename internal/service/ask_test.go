package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/syltwerk/hotelchat/internal/adapter/openai"
	"github.com/syltwerk/hotelchat/internal/config"
	"github.com/syltwerk/hotelchat/internal/domain/chat"
	"github.com/syltwerk/hotelchat/internal/domain/errcode"
	"github.com/syltwerk/hotelchat/internal/domain/prompt"
)

type fakeCompleter struct {
	answer string
	err    error
	got    []chat.Message
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []chat.Message) (string, error) {
	f.got = msgs
	return f.answer, f.err
}

func TestAnswerService_BuildsPromptForQuestion(t *testing.T) {
	model := &fakeCompleter{answer: "Ab 7 Uhr.<script>alert(1)</script>"}
	svc := NewAnswerService(tenantMap{"aarnhoog": aarnhoog()}, model, config.Defaults().Chat)

	resp := svc.Answer(context.Background(), ChatRequest{
		TenantKey:      "aarnhoog",
		ConversationID: "c1",
		Input:          chat.Input{Question: "Wann gibt es Frühstück?"},
	})

	if resp.Failed() {
		t.Fatalf("unexpected failure %s", resp.ErrorCode)
	}
	if resp.Answer != "Ab 7 Uhr." {
		t.Errorf("script not stripped: %q", resp.Answer)
	}
	if resp.ConversationID != "c1" {
		t.Errorf("conversation id %q", resp.ConversationID)
	}
	if len(resp.Sources) != 2 || resp.Sources[0].Title != "Hotel Website" || resp.Sources[1].URL != "/aarnhoog/faq" {
		t.Errorf("unexpected sources %+v", resp.Sources)
	}
	if len(model.got) != 3 || model.got[0].Content != prompt.BaseInstruction+" Erwähne die Sauna." {
		t.Fatalf("expected built prompt, got %+v", model.got)
	}
	if model.got[2].Content != "Wann gibt es Frühstück?" {
		t.Errorf("unexpected question %+v", model.got[2])
	}
}

func TestAnswerService_ForwardsPreparedPrompt(t *testing.T) {
	model := &fakeCompleter{answer: "Gern."}
	svc := NewAnswerService(tenantMap{"aarnhoog": aarnhoog()}, model, config.Defaults().Chat)

	resp := svc.Answer(context.Background(), ChatRequest{
		TenantKey: "aarnhoog",
		Input: chat.Input{Messages: messagesOf(
			msg("system", "Eigene Anweisung"),
			msg("user", "Danke!"),
		)},
	})

	if resp.Failed() {
		t.Fatalf("unexpected failure %s", resp.ErrorCode)
	}
	if len(model.got) != 2 || model.got[0].Content != "Eigene Anweisung" {
		t.Errorf("prepared prompt must be forwarded unchanged, got %+v", model.got)
	}
}

func TestAnswerService_PreparedPromptKeepsInstructionsOnLongConversation(t *testing.T) {
	limits := config.Defaults().Chat
	var conversation []chat.Message
	for i := range 25 {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		conversation = append(conversation, chat.Message{Role: role, Content: fmt.Sprintf("Nachricht %d", i)})
	}
	built := prompt.Build(prompt.Input{
		HotelName:    "Hotel Aarnhoog",
		Context:      "Frühstück ab 7 Uhr.",
		Conversation: conversation,
	})
	entries := make([]any, len(built))
	for i, m := range built {
		entries[i] = msg(string(m.Role), m.Content)
	}

	model := &fakeCompleter{answer: "Gern."}
	svc := NewAnswerService(tenantMap{"aarnhoog": aarnhoog()}, model, limits)
	resp := svc.Answer(context.Background(), ChatRequest{TenantKey: "aarnhoog", Input: chat.Input{Messages: entries}})

	if resp.Failed() {
		t.Fatalf("unexpected failure %s", resp.ErrorCode)
	}
	if len(model.got) != 2+limits.MaxHistoryDepth {
		t.Fatalf("sent %d messages, want %d", len(model.got), 2+limits.MaxHistoryDepth)
	}
	if model.got[0] != built[0] || model.got[1] != built[1] {
		t.Errorf("instructions lost: %+v, %+v", model.got[0], model.got[1])
	}
	if model.got[2] != conversation[len(conversation)-limits.MaxHistoryDepth] {
		t.Errorf("window starts at %+v", model.got[2])
	}
	if last := model.got[len(model.got)-1]; last != conversation[len(conversation)-1] {
		t.Errorf("last message %+v, want the final question", last)
	}
}

func TestAnswerService_Errors(t *testing.T) {
	tests := []struct {
		name   string
		tenant string
		answer string
		err    error
		want   errcode.Code
	}{
		{"missing tenant", "", "x", nil, errcode.MissingTenant},
		{"unknown tenant", "seeblick", "x", nil, errcode.MissingTenant},
		{"not configured", "aarnhoog", "", openai.ErrNotConfigured, errcode.InitError},
		{"no answer", "aarnhoog", "", openai.ErrNoAnswer, errcode.InvalidResponse},
		{"only script", "aarnhoog", "<script>x</script>", nil, errcode.InvalidResponse},
		{"rate limited", "aarnhoog", "", fmt.Errorf("chat completion: %w", &goopenai.APIError{HTTPStatusCode: 429, Message: "slow down"}), errcode.HTTP429},
		{"server error", "aarnhoog", "", fmt.Errorf("chat completion: %w", &goopenai.APIError{HTTPStatusCode: 502}), errcode.HTTP5xx},
		{"deadline", "aarnhoog", "", fmt.Errorf("chat completion: %w", context.DeadlineExceeded), errcode.Timeout},
		{"refused", "aarnhoog", "", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, errcode.ConnectionError},
		{"other", "aarnhoog", "", errors.New("boom"), errcode.TransportError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAnswerService(tenantMap{"aarnhoog": aarnhoog()}, &fakeCompleter{answer: tt.answer, err: tt.err}, config.Defaults().Chat)
			resp := svc.Answer(context.Background(), ChatRequest{TenantKey: tt.tenant, Input: chat.Input{Question: "Hallo?"}})
			if resp.ErrorCode != tt.want {
				t.Fatalf("error code = %s, want %s", resp.ErrorCode, tt.want)
			}
			if !isHexID(resp.ConversationID) {
				t.Errorf("expected generated conversation id, got %q", resp.ConversationID)
			}
		})
	}
}

func TestAnswerService_MissingQuestion(t *testing.T) {
	model := &fakeCompleter{answer: "x"}
	svc := NewAnswerService(tenantMap{"aarnhoog": aarnhoog()}, model, config.Defaults().Chat)

	resp := svc.Answer(context.Background(), ChatRequest{TenantKey: "aarnhoog"})
	if resp.ErrorCode != errcode.MissingQuestion {
		t.Fatalf("error code = %s", resp.ErrorCode)
	}
	if model.got != nil {
		t.Error("model must not be called without a question")
	}
}
