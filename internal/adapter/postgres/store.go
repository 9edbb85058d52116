package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/syltwerk/hotelchat/internal/domain/chat"
	"github.com/syltwerk/hotelchat/internal/domain/exchange"
)

// Store implements exchangelog.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Exchanges ---

// Insert appends an answered chat turn and fills rec.ID and rec.CreatedAt.
func (s *Store) Insert(ctx context.Context, rec *exchange.Record) error {
	msgs, err := json.Marshal(orEmpty(rec.Messages))
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	const q = `
		INSERT INTO exchanges (tenant, conversation_id, question, answer, messages, attempts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	if err := s.pool.QueryRow(ctx, q,
		rec.Tenant, rec.ConversationID, rec.Question, rec.Answer, msgs, rec.Attempts,
	).Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// ListExchanges returns a tenant's exchanges, newest first.
func (s *Store) ListExchanges(ctx context.Context, tenant string, f exchange.Filter) ([]exchange.Record, error) {
	f = f.Normalized()

	const q = `
		SELECT id, tenant, conversation_id, question, answer, messages, attempts, created_at
		FROM exchanges
		WHERE tenant = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		  AND ($4 = '' OR question ILIKE $5 OR answer ILIKE $5)
		ORDER BY created_at DESC, id DESC
		LIMIT $6`

	rows, err := s.pool.Query(ctx, q,
		tenant, nullTime(f.Start), nullTime(f.End), f.Query, containsPattern(f.Query), f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	result := []exchange.Record{}
	for rows.Next() {
		r, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanExchange(row scannable) (exchange.Record, error) {
	var (
		r    exchange.Record
		msgs []byte
	)
	if err := row.Scan(&r.ID, &r.Tenant, &r.ConversationID, &r.Question, &r.Answer, &msgs, &r.Attempts, &r.CreatedAt); err != nil {
		return r, fmt.Errorf("scan exchange: %w", err)
	}
	r.Messages = []chat.Message{}
	if len(msgs) > 0 {
		if err := json.Unmarshal(msgs, &r.Messages); err != nil {
			return r, fmt.Errorf("unmarshal messages of exchange %d: %w", r.ID, err)
		}
	}
	return r, nil
}

// --- Health checks ---

// InsertHealthCheck appends a probe result and fills hc.ID and hc.CreatedAt.
func (s *Store) InsertHealthCheck(ctx context.Context, hc *exchange.HealthCheck) error {
	const q = `
		INSERT INTO health_checks (tenant, status_code, latency_ms, success, error_code, response_excerpt)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	if err := s.pool.QueryRow(ctx, q,
		hc.Tenant, hc.StatusCode, hc.LatencyMS, hc.Success, hc.ErrorCode, hc.ResponseExcerpt,
	).Scan(&hc.ID, &hc.CreatedAt); err != nil {
		return fmt.Errorf("insert health check: %w", err)
	}
	return nil
}

// ListHealthChecks returns a tenant's most recent probe results, newest first.
func (s *Store) ListHealthChecks(ctx context.Context, tenant string, limit int) ([]exchange.HealthCheck, error) {
	limit = exchange.Filter{Limit: limit}.Normalized().Limit

	const q = `
		SELECT id, tenant, status_code, latency_ms, success, error_code, response_excerpt, created_at
		FROM health_checks
		WHERE tenant = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("list health checks: %w", err)
	}
	defer rows.Close()

	result := []exchange.HealthCheck{}
	for rows.Next() {
		var hc exchange.HealthCheck
		if err := rows.Scan(
			&hc.ID, &hc.Tenant, &hc.StatusCode, &hc.LatencyMS, &hc.Success,
			&hc.ErrorCode, &hc.ResponseExcerpt, &hc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan health check: %w", err)
		}
		result = append(result, hc)
	}
	return result, rows.Err()
}

// Name identifies the store in log attributes.
func (s *Store) Name() string { return "postgres" }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
