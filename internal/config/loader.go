package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "hotelchat.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "HOTELCHAT_PORT")
	setString(&cfg.Server.CORSOrigin, "HOTELCHAT_CORS_ORIGIN")
	setInt64(&cfg.Server.BodyLimit, "HOTELCHAT_BODY_LIMIT")
	setDuration(&cfg.Server.WriteTimeout, "HOTELCHAT_WRITE_TIMEOUT")

	setString(&cfg.Logging.Level, "HOTELCHAT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "HOTELCHAT_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "HOTELCHAT_LOG_ASYNC")

	// Chat limits
	setInt(&cfg.Chat.MaxQuestionChars, "HOTELCHAT_MAX_QUESTION_CHARS")
	setInt(&cfg.Chat.MaxContextChars, "HOTELCHAT_MAX_CONTEXT_CHARS")
	setInt(&cfg.Chat.ContextCharCap, "HOTELCHAT_CONTEXT_CHAR_CAP")
	setInt(&cfg.Chat.MaxHistoryDepth, "HOTELCHAT_MAX_HISTORY_DEPTH")

	// Upstream
	setString(&cfg.Upstream.URL, "HOTELCHAT_UPSTREAM_URL")
	setInt(&cfg.Upstream.MaxAttempts, "HOTELCHAT_UPSTREAM_MAX_ATTEMPTS")
	setDuration(&cfg.Upstream.ConnectTimeout, "HOTELCHAT_UPSTREAM_CONNECT_TIMEOUT")
	setDuration(&cfg.Upstream.Timeout, "HOTELCHAT_UPSTREAM_TIMEOUT")
	setDuration(&cfg.Upstream.BackoffInitial, "HOTELCHAT_UPSTREAM_BACKOFF_INITIAL")
	setFloat64(&cfg.Upstream.BackoffFactor, "HOTELCHAT_UPSTREAM_BACKOFF_FACTOR")
	setIntList(&cfg.Upstream.RetryStatusCodes, "HOTELCHAT_UPSTREAM_RETRY_CODES")
	setDuration(&cfg.Upstream.MaxElapsed, "HOTELCHAT_UPSTREAM_MAX_ELAPSED")
	setInt(&cfg.Upstream.MaxConcurrent, "HOTELCHAT_UPSTREAM_MAX_CONCURRENT")
	setString(&cfg.Upstream.ErrorLogPath, "HOTELCHAT_UPSTREAM_ERROR_LOG")

	setBool(&cfg.Breaker.Enabled, "HOTELCHAT_BREAKER_ENABLED")
	setInt(&cfg.Breaker.MaxFailures, "HOTELCHAT_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "HOTELCHAT_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "HOTELCHAT_RATE_RPS")
	setInt(&cfg.Rate.Burst, "HOTELCHAT_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "HOTELCHAT_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "HOTELCHAT_RATE_MAX_IDLE_TIME")

	// Tenants
	setString(&cfg.Tenants.Dir, "HOTELCHAT_TENANTS_DIR")
	setBool(&cfg.Tenants.Watch, "HOTELCHAT_TENANTS_WATCH")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "HOTELCHAT_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "HOTELCHAT_CACHE_TTL")
	setString(&cfg.Cache.L2Bucket, "HOTELCHAT_CACHE_L2_BUCKET")

	// Storage
	setString(&cfg.Store.Backend, "HOTELCHAT_STORE")
	setString(&cfg.SQLite.Path, "HOTELCHAT_SQLITE_PATH")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "HOTELCHAT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "HOTELCHAT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "HOTELCHAT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "HOTELCHAT_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "HOTELCHAT_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")

	// Built-in model backend
	setBool(&cfg.Model.Enabled, "HOTELCHAT_MODEL_ENABLED")
	setString(&cfg.Model.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Model.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Model.Name, "OPENAI_MODEL")
	setFloat32(&cfg.Model.Temperature, "HOTELCHAT_MODEL_TEMPERATURE")
	setDuration(&cfg.Model.Timeout, "HOTELCHAT_MODEL_TIMEOUT")

	// Telemetry
	setString(&cfg.Telemetry.TraceExporter, "HOTELCHAT_TRACE_EXPORTER")
	setString(&cfg.Telemetry.MetricExporter, "HOTELCHAT_METRIC_EXPORTER")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.OTLPInsecure, "HOTELCHAT_OTLP_INSECURE")
	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Chat.MaxQuestionChars < 1 {
		return errors.New("chat.max_question_chars must be >= 1")
	}
	if cfg.Chat.MaxContextChars < 0 {
		return errors.New("chat.max_context_chars must be >= 0")
	}
	if cfg.Chat.MaxHistoryDepth < 0 {
		return errors.New("chat.max_history_depth must be >= 0")
	}
	if cfg.Upstream.MaxAttempts < 1 {
		return errors.New("upstream.max_attempts must be >= 1")
	}
	if cfg.Upstream.BackoffFactor < 1 {
		return errors.New("upstream.backoff_factor must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Tenants.Dir == "" {
		return errors.New("tenants.dir is required")
	}
	switch cfg.Store.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			return errors.New("sqlite.path is required for the sqlite store")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres store")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "none":
	default:
		return fmt.Errorf("store.backend %q is not one of sqlite, postgres, none", cfg.Store.Backend)
	}
	if cfg.Model.Enabled && cfg.Model.Name == "" {
		return errors.New("model.name is required when the model backend is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setFloat32(dst *float32, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setIntList parses a comma-separated list. Any malformed entry leaves dst unchanged.
func setIntList(dst *[]int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return
		}
		out = append(out, n)
	}
	*dst = out
}
