// Package exchange defines the persisted record of a chat turn and of health-check probes.
package exchange

import (
	"strings"
	"time"

	"github.com/syltwerk/hotelchat/internal/domain/chat"
)

// Record is one answered chat turn.
type Record struct {
	ID             int64          `json:"id,omitempty"`
	Tenant         string         `json:"tenant"`
	ConversationID string         `json:"conversation_id"`
	Question       string         `json:"question"`
	Answer         string         `json:"answer"`
	Messages       []chat.Message `json:"messages"` // Conversation including the final answer
	Attempts       int            `json:"attempts"`
	CreatedAt      time.Time      `json:"created_at"`
}

// HealthCheck is the outcome of one synthetic probe against a tenant's upstream.
type HealthCheck struct {
	ID              int64     `json:"id,omitempty"`
	Tenant          string    `json:"tenant"`
	StatusCode      int       `json:"status_code"`
	LatencyMS       int64     `json:"latency_ms"`
	Success         bool      `json:"success"`
	ErrorCode       string    `json:"error_code,omitempty"`
	ResponseExcerpt string    `json:"response_excerpt,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

const (
	DefaultLimit = 100
	MinLimit     = 10
	MaxLimit     = 1000
)

// Filter narrows an exchange listing. Zero times are open bounds.
type Filter struct {
	Start time.Time
	End   time.Time
	Query string // Case-insensitive substring of question or answer
	Limit int
}

// Normalized returns f with the query trimmed and the limit clamped to
// [MinLimit, MaxLimit], defaulting to DefaultLimit when unset.
func (f Filter) Normalized() Filter {
	f.Query = strings.TrimSpace(f.Query)
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit < MinLimit:
		f.Limit = MinLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	return f
}
