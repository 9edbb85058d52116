// Package chat defines conversation messages and the normalization applied
// to visitor input before it reaches the prompt.
package chat

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// legacyBotRole is accepted on input and mapped to RoleAssistant.
const legacyBotRole = "bot"

// ErrMissingQuestion is returned when no non-empty user question remains after normalization.
var ErrMissingQuestion = errors.New("missing question")

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Input is the raw visitor request. Messages and History hold decoded JSON
// arrays; a nil Messages slice means the field was absent.
type Input struct {
	Question string
	Messages []any
	History  []any
}

// Options carries the configured limits.
type Options struct {
	MaxQuestionChars int // Per user message, in runes; 0 disables truncation
	MaxHistoryDepth  int // Sliding window; 0 disables the clamp
}

// Normalized is the effective conversation sent upstream.
type Normalized struct {
	Messages []Message
	Question string
}

// InputFromJSON builds an Input from loosely typed decoded JSON values.
// Non-string questions are ignored and non-array message fields count as absent.
func InputFromJSON(question, messages, history any) Input {
	in := Input{}
	if q, ok := question.(string); ok {
		in.Question = q
	}
	if m, ok := messages.([]any); ok {
		in.Messages = m
	}
	if h, ok := history.([]any); ok {
		in.History = h
	}
	return in
}

// Normalize converts visitor input into a clean, bounded conversation whose
// last message is the user question.
func Normalize(in Input, opts Options) (Normalized, error) {
	question := truncateRunes(strings.TrimSpace(in.Question), opts.MaxQuestionChars)

	var msgs []Message
	if in.Messages == nil {
		if question == "" {
			return Normalized{}, ErrMissingQuestion
		}
		msgs = cleanEntries(in.History, opts)
		if opts.MaxHistoryDepth > 0 {
			msgs = tail(msgs, opts.MaxHistoryDepth-1)
		}
	} else {
		msgs = cleanEntries(in.Messages, opts)
		// The question field only fills in for a conversation without a user turn.
		if last := lastUserContent(msgs); last != "" {
			question = last
		}
		if question == "" {
			return Normalized{}, ErrMissingQuestion
		}
	}

	if n := len(msgs); n == 0 || msgs[n-1].Role != RoleUser || msgs[n-1].Content != question {
		msgs = append(msgs, Message{Role: RoleUser, Content: question})
	}

	return Normalized{
		Messages: Clamp(msgs, opts.MaxHistoryDepth),
		Question: question,
	}, nil
}

// cleanEntries drops malformed entries and applies role mapping and truncation.
func cleanEntries(entries []any, opts Options) []Message {
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		rawRole, ok := obj["role"].(string)
		if !ok {
			continue
		}
		role, ok := ParseRole(rawRole)
		if !ok {
			continue
		}
		content, ok := obj["content"].(string)
		if !ok {
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if role == RoleUser {
			content = truncateRunes(content, opts.MaxQuestionChars)
		}
		out = append(out, Message{Role: role, Content: content})
	}
	return out
}

// ParseRole maps an input role to a known Role. The legacy "bot" role maps to assistant.
func ParseRole(s string) (Role, bool) {
	switch r := strings.ToLower(strings.TrimSpace(s)); r {
	case string(RoleUser), string(RoleAssistant), string(RoleSystem):
		return Role(r), true
	case legacyBotRole:
		return RoleAssistant, true
	}
	return "", false
}

func lastUserContent(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// Clamp keeps the most recent depth messages. depth <= 0 disables the clamp.
func Clamp(msgs []Message, depth int) []Message {
	if depth <= 0 {
		return msgs
	}
	return tail(msgs, depth)
}

// tail returns the last n messages.
func tail(msgs []Message, n int) []Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// truncateRunes shortens s to at most limit code points.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidConversationID reports whether id is an acceptable client-supplied id.
func ValidConversationID(id string) bool {
	return conversationIDPattern.MatchString(id)
}

// ResolveConversationID returns id when it is valid, otherwise a fresh
// 32-character lowercase hex id. The boolean reports whether a new id was generated.
func ResolveConversationID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if ValidConversationID(id) {
		return id, false
	}
	return NewConversationID(), true
}

// NewConversationID returns a random 32-character lowercase hex id.
func NewConversationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
