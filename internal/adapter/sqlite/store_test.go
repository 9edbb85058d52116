package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/syltwerk/hotelchat/internal/domain/chat"
	"github.com/syltwerk/hotelchat/internal/domain/exchange"
	"github.com/syltwerk/hotelchat/internal/port/exchangelog"
)

var _ exchangelog.Store = (*Store)(nil)

// setupStore opens a fresh database in a temp dir with a controllable clock.
func setupStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "hotelchat.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(s.Close)

	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestStore_InsertAndListExchanges(t *testing.T) {
	s, clock := setupStore(t)
	ctx := context.Background()

	first := &exchange.Record{
		Tenant:         "seeblick",
		ConversationID: "conv1",
		Question:       "Wann gibt es Frühstück?",
		Answer:         "Von 7 bis 10 Uhr.",
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: "Wann gibt es Frühstück?"},
			{Role: chat.RoleAssistant, Content: "Von 7 bis 10 Uhr."},
		},
		Attempts: 1,
	}
	if err := s.Insert(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.ID == 0 || !first.CreatedAt.Equal(*clock) {
		t.Fatalf("expected id and created_at to be set, got %+v", first)
	}

	*clock = clock.Add(time.Hour)
	second := &exchange.Record{Tenant: "seeblick", ConversationID: "conv2", Question: "Parkplatz?", Answer: "Ja, in der Tiefgarage.", Attempts: 2}
	if err := s.Insert(ctx, second); err != nil {
		t.Fatalf("insert: %v", err)
	}
	other := &exchange.Record{Tenant: "bergblick", ConversationID: "conv3", Question: "Sauna?", Answer: "Ja.", Attempts: 1}
	if err := s.Insert(ctx, other); err != nil {
		t.Fatalf("insert: %v", err)
	}

	all, err := s.ListExchanges(ctx, "seeblick", exchange.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 exchanges for tenant, got %d", len(all))
	}
	if all[0].ID != second.ID || all[1].ID != first.ID {
		t.Errorf("expected newest first, got ids %d, %d", all[0].ID, all[1].ID)
	}
	if len(all[1].Messages) != 2 || all[1].Messages[1].Role != chat.RoleAssistant {
		t.Errorf("messages not round-tripped: %+v", all[1].Messages)
	}
	if all[0].Messages == nil || len(all[0].Messages) != 0 {
		t.Errorf("expected empty messages slice, got %#v", all[0].Messages)
	}
	if all[0].Attempts != 2 {
		t.Errorf("expected attempts 2, got %d", all[0].Attempts)
	}
}

func TestStore_ListExchangesFilter(t *testing.T) {
	s, clock := setupStore(t)
	ctx := context.Background()
	base := *clock

	questions := []string{"Frühstück?", "100% sicher?", "1000 Fragen", "Parkplatz?"}
	for i, q := range questions {
		*clock = base.Add(time.Duration(i) * time.Hour)
		if err := s.Insert(ctx, &exchange.Record{Tenant: "seeblick", ConversationID: "c", Question: q, Answer: "Antwort " + q, Attempts: 1}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter exchange.Filter
		want   []string
	}{
		{"all", exchange.Filter{}, []string{"Parkplatz?", "1000 Fragen", "100% sicher?", "Frühstück?"}},
		{"start bound", exchange.Filter{Start: base.Add(2 * time.Hour)}, []string{"Parkplatz?", "1000 Fragen"}},
		{"end bound", exchange.Filter{End: base.Add(time.Hour)}, []string{"100% sicher?", "Frühstück?"}},
		{"window", exchange.Filter{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)}, []string{"1000 Fragen", "100% sicher?"}},
		{"case-insensitive query", exchange.Filter{Query: "PARKPLATZ"}, []string{"Parkplatz?"}},
		{"query matches answer", exchange.Filter{Query: "antwort 1000"}, []string{"1000 Fragen"}},
		{"wildcard escaped", exchange.Filter{Query: "0%"}, []string{"100% sicher?"}},
		{"query trimmed", exchange.Filter{Query: "  Frühstück  "}, []string{"Frühstück?"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListExchanges(ctx, "seeblick", tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d results, got %d", len(tt.want), len(got))
			}
			for i, r := range got {
				if r.Question != tt.want[i] {
					t.Errorf("result %d = %q, want %q", i, r.Question, tt.want[i])
				}
			}
		})
	}
}

func TestStore_ListExchangesLimitClamped(t *testing.T) {
	s, clock := setupStore(t)
	ctx := context.Background()
	for i := range 15 {
		*clock = clock.Add(time.Second)
		if err := s.Insert(ctx, &exchange.Record{Tenant: "seeblick", ConversationID: "c", Question: "q", Answer: "a", Attempts: i + 1}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.ListExchanges(ctx, "seeblick", exchange.Filter{Limit: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != exchange.MinLimit {
		t.Errorf("expected limit clamped to %d, got %d", exchange.MinLimit, len(got))
	}
}

func TestStore_HealthChecks(t *testing.T) {
	s, clock := setupStore(t)
	ctx := context.Background()

	ok := &exchange.HealthCheck{Tenant: "seeblick", StatusCode: 200, LatencyMS: 120, Success: true}
	if err := s.InsertHealthCheck(ctx, ok); err != nil {
		t.Fatalf("insert: %v", err)
	}
	*clock = clock.Add(time.Minute)
	failed := &exchange.HealthCheck{Tenant: "seeblick", LatencyMS: 5003, ErrorCode: "API_CONNECTION_ERROR"}
	if err := s.InsertHealthCheck(ctx, failed); err != nil {
		t.Fatalf("insert: %v", err)
	}

	list, err := s.ListHealthChecks(ctx, "seeblick", 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 health checks, got %d", len(list))
	}
	if list[0].ID != failed.ID || list[0].Success || list[0].ErrorCode != "API_CONNECTION_ERROR" {
		t.Errorf("unexpected newest health check %+v", list[0])
	}
	if !list[1].Success || list[1].StatusCode != 200 || list[1].LatencyMS != 120 {
		t.Errorf("unexpected oldest health check %+v", list[1])
	}
	if !list[1].CreatedAt.Equal(clock.Add(-time.Minute)) {
		t.Errorf("created_at not round-tripped: %v", list[1].CreatedAt)
	}

	empty, err := s.ListHealthChecks(ctx, "bergblick", 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "m.db")

	if err := RunMigrations(ctx, path); err != nil {
		t.Fatalf("up: %v", err)
	}
	v, err := MigrationVersion(ctx, path)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}

	if err := RollbackMigrations(ctx, path, 1); err != nil {
		t.Fatalf("down: %v", err)
	}
	if v, _ := MigrationVersion(ctx, path); v != 1 {
		t.Errorf("expected version 1 after rollback, got %d", v)
	}

	// Re-running is idempotent.
	if err := RunMigrations(ctx, path); err != nil {
		t.Fatalf("second up: %v", err)
	}
	if err := RunMigrations(ctx, path); err != nil {
		t.Fatalf("third up: %v", err)
	}
}

func TestStore_Ping(t *testing.T) {
	s, _ := setupStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
