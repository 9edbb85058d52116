package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/syltwerk/hotelchat/internal/domain/chat"
	"github.com/syltwerk/hotelchat/internal/domain/exchange"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements exchangelog.Store on an SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path, applies pending migrations and returns a Store.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := RunMigrations(ctx, path); err != nil {
		return nil, err
	}
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// --- Exchanges ---

// Insert appends an answered chat turn and fills rec.ID and rec.CreatedAt.
func (s *Store) Insert(ctx context.Context, rec *exchange.Record) error {
	msgs := rec.Messages
	if msgs == nil {
		msgs = []chat.Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	created := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (tenant, conversation_id, question, answer, messages, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Tenant, rec.ConversationID, rec.Question, rec.Answer, string(raw), rec.Attempts, formatTime(created))
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert exchange id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = created.UTC()
	return nil
}

// ListExchanges returns a tenant's exchanges, newest first.
func (s *Store) ListExchanges(ctx context.Context, tenant string, f exchange.Filter) ([]exchange.Record, error) {
	f = f.Normalized()

	q := `SELECT id, tenant, conversation_id, question, answer, messages, attempts, created_at
		FROM exchanges WHERE tenant = ?`
	args := []any{tenant}
	if !f.Start.IsZero() {
		q += ` AND created_at >= ?`
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		q += ` AND created_at <= ?`
		args = append(args, formatTime(f.End))
	}
	if f.Query != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(f.Query)) + "%"
		q += ` AND (lower(question) LIKE ? ESCAPE '\' OR lower(answer) LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []exchange.Record{}
	for rows.Next() {
		var (
			r       exchange.Record
			msgs    string
			created string
		)
		if err := rows.Scan(&r.ID, &r.Tenant, &r.ConversationID, &r.Question, &r.Answer, &msgs, &r.Attempts, &created); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse created_at of exchange %d: %w", r.ID, err)
		}
		r.Messages = []chat.Message{}
		if err := json.Unmarshal([]byte(msgs), &r.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal messages of exchange %d: %w", r.ID, err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// --- Health checks ---

// InsertHealthCheck appends a probe result and fills hc.ID and hc.CreatedAt.
func (s *Store) InsertHealthCheck(ctx context.Context, hc *exchange.HealthCheck) error {
	created := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO health_checks (tenant, status_code, latency_ms, success, error_code, response_excerpt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hc.Tenant, hc.StatusCode, hc.LatencyMS, hc.Success, hc.ErrorCode, hc.ResponseExcerpt, formatTime(created))
	if err != nil {
		return fmt.Errorf("insert health check: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert health check id: %w", err)
	}
	hc.ID = id
	hc.CreatedAt = created.UTC()
	return nil
}

// ListHealthChecks returns a tenant's most recent probe results, newest first.
func (s *Store) ListHealthChecks(ctx context.Context, tenant string, limit int) ([]exchange.HealthCheck, error) {
	limit = exchange.Filter{Limit: limit}.Normalized().Limit

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant, status_code, latency_ms, success, error_code, response_excerpt, created_at
		 FROM health_checks WHERE tenant = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("list health checks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []exchange.HealthCheck{}
	for rows.Next() {
		var (
			hc      exchange.HealthCheck
			created string
		)
		if err := rows.Scan(&hc.ID, &hc.Tenant, &hc.StatusCode, &hc.LatencyMS, &hc.Success,
			&hc.ErrorCode, &hc.ResponseExcerpt, &created); err != nil {
			return nil, fmt.Errorf("scan health check: %w", err)
		}
		if hc.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse created_at of health check %d: %w", hc.ID, err)
		}
		result = append(result, hc)
	}
	return result, rows.Err()
}

// Name identifies the store in log attributes.
func (s *Store) Name() string { return "sqlite" }

// Ping checks that the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() {
	_ = s.db.Close()
}
