// Package tenantfs loads hotel configuration from a directory tree:
//
//	{dir}/{key}/tenant.yaml
//	{dir}/{key}/data/faq.md   (default FAQ location)
//
// Lookups are cached and invalidated on file changes.
package tenantfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syltwerk/hotelchat/internal/domain"
	"github.com/syltwerk/hotelchat/internal/domain/tenant"
	"github.com/syltwerk/hotelchat/internal/port/cache"
	"github.com/syltwerk/hotelchat/internal/port/messagequeue"
)

const (
	// ConfigFile is the per-tenant configuration file name.
	ConfigFile = "tenant.yaml"
	// DefaultFAQFile is used when tenant.yaml names no faq_file.
	DefaultFAQFile = "data/faq.md"

	cacheKeyPrefix = "tenant."
)

type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Store implements tenantstore.Store and tenantstore.Invalidator.
type Store struct {
	dir    string
	cache  cache.Cache
	ttl    time.Duration
	pub    publisher
	origin string
	logger *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithCache caches loaded configurations for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Store) { s.cache, s.ttl = c, ttl }
}

// WithBroadcast publishes invalidations so other instances drop their copies.
// origin identifies this instance; its own broadcasts are ignored on receipt.
func WithBroadcast(pub publisher, origin string) Option {
	return func(s *Store) { s.pub, s.origin = pub, origin }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store rooted at dir.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Lookup returns the configuration for key. Invalid and unknown keys return
// an error wrapping both tenant.ErrMissing and domain.ErrNotFound.
func (s *Store) Lookup(ctx context.Context, key string) (*tenant.Config, error) {
	key = normalizeKey(key)
	if !tenant.ValidKey(key) {
		return nil, fmt.Errorf("lookup tenant %q: %w: %w", key, tenant.ErrMissing, domain.ErrNotFound)
	}

	if cfg, ok := s.cached(ctx, key); ok {
		return cfg, nil
	}

	cfg, err := s.load(key)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(cfg); err == nil {
			if err := s.cache.Set(ctx, cacheKeyPrefix+key, data, s.ttl); err != nil {
				s.logger.WarnContext(ctx, "tenant cache set failed", "tenant", key, "error", err)
			}
		}
	}
	return cfg, nil
}

func (s *Store) cached(ctx context.Context, key string) (*tenant.Config, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, cacheKeyPrefix+key)
	if err != nil {
		s.logger.WarnContext(ctx, "tenant cache get failed", "tenant", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var cfg tenant.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.logger.WarnContext(ctx, "tenant cache entry corrupt", "tenant", key, "error", err)
		return nil, false
	}
	return &cfg, true
}

// load reads and validates a tenant directory.
func (s *Store) load(key string) (*tenant.Config, error) {
	base := filepath.Join(s.dir, key)
	raw, err := os.ReadFile(filepath.Join(base, ConfigFile)) //nolint:gosec // G304: key is validated against a strict pattern
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("lookup tenant %q: %w: %w", key, tenant.ErrMissing, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read tenant %q: %w", key, err)
	}

	var cfg tenant.Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse %s/%s: %w", domain.ErrValidation, key, ConfigFile, err)
	}
	cfg.Key = key
	if cfg.FAQFile == "" {
		cfg.FAQFile = DefaultFAQFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	faqPath := resolve(base, cfg.FAQFile)
	faq, err := os.ReadFile(faqPath) //nolint:gosec // G304: path comes from operator-owned tenant config
	switch {
	case err == nil:
		cfg.FAQText = string(faq)
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Warn("tenant faq file missing", "tenant", key, "path", faqPath)
	default:
		return nil, fmt.Errorf("read faq of tenant %q: %w", key, err)
	}

	if cfg.ErrorLogPath != "" {
		cfg.ErrorLogPath = resolve(base, cfg.ErrorLogPath)
	}
	return &cfg, nil
}

// resolve interprets p relative to base unless it is absolute.
func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Keys lists the tenants that have a configuration file, sorted.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read tenants dir: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !tenant.ValidKey(e.Name()) {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, e.Name(), ConfigFile)); err == nil {
			keys = append(keys, normalizeKey(e.Name()))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Invalidate drops the cached configuration for key and, when broadcasting
// is enabled, tells other instances to do the same.
func (s *Store) Invalidate(ctx context.Context, key string) {
	key = normalizeKey(key)
	s.drop(ctx, key)

	if s.pub == nil {
		return
	}
	data, err := json.Marshal(messagequeue.TenantInvalidatePayload{Tenant: key, Origin: s.origin})
	if err != nil {
		return
	}
	if err := s.pub.Publish(ctx, messagequeue.SubjectTenantInvalidate, data); err != nil {
		s.logger.WarnContext(ctx, "tenant invalidation broadcast failed", "tenant", key, "error", err)
	}
}

func (s *Store) drop(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKeyPrefix+key); err != nil {
		s.logger.WarnContext(ctx, "tenant cache delete failed", "tenant", key, "error", err)
	}
}

// HandleInvalidation is a messagequeue.Handler for SubjectTenantInvalidate.
// It drops the local copy without re-broadcasting.
func (s *Store) HandleInvalidation(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.TenantInvalidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode tenant invalidation: %w", err)
	}
	if p.Origin != "" && p.Origin == s.origin {
		return nil
	}
	s.drop(ctx, normalizeKey(p.Tenant))
	s.logger.DebugContext(ctx, "tenant cache invalidated remotely", "tenant", p.Tenant, "origin", p.Origin)
	return nil
}
