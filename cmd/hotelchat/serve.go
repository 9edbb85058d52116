package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cfhttp "github.com/syltwerk/hotelchat/internal/adapter/http"
	hcnats "github.com/syltwerk/hotelchat/internal/adapter/nats"
	"github.com/syltwerk/hotelchat/internal/adapter/openai"
	hcotel "github.com/syltwerk/hotelchat/internal/adapter/otel"
	"github.com/syltwerk/hotelchat/internal/adapter/upstream"
	"github.com/syltwerk/hotelchat/internal/middleware"
	"github.com/syltwerk/hotelchat/internal/port/exchangelog"
	"github.com/syltwerk/hotelchat/internal/port/messagequeue"
	"github.com/syltwerk/hotelchat/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat gateway HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// --- Telemetry ---
	tel, err := hcotel.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := hcotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	queue, err := connectQueue(ctx, cfg)
	if err != nil {
		return err
	}
	if queue != nil {
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain failed", "error", err)
			}
		}()
	}

	tenants, closeCache, err := newTenantStore(ctx, cfg, queue)
	if err != nil {
		return err
	}
	defer closeCache()

	if queue != nil {
		unsubscribe, err := queue.Subscribe(ctx, messagequeue.SubjectTenantInvalidate, tenants.HandleInvalidation)
		if err != nil {
			return fmt.Errorf("tenant invalidation subscribe: %w", err)
		}
		defer unsubscribe()
	}

	if cfg.Tenants.Watch {
		go func() {
			if err := tenants.Watch(ctx); err != nil {
				slog.Error("tenant watcher stopped", "error", err)
			}
		}()
	}

	// --- Services ---
	var sinks []exchangelog.Sink
	if store != nil {
		sinks = append(sinks, store)
	}
	if queue != nil {
		sinks = append(sinks, hcnats.NewExchangeSink(queue))
	}

	client := newUpstreamClient(cfg, upstream.OptionsFromConfig(cfg.Upstream), metrics)
	chatSvc := service.NewChatService(tenants, client, service.NewExchangeLogger(metrics, sinks...), metrics, cfg.Chat, cfg.Upstream.URL)

	handlers := &cfhttp.Handlers{Chat: chatSvc, BodyLimit: cfg.Server.BodyLimit}
	if cfg.Model.Enabled {
		handlers.Answers = service.NewAnswerService(tenants, openai.New(cfg.Model), cfg.Chat)
		slog.Info("built-in model backend enabled", "model", cfg.Model.Name)
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	health := cfhttp.Health{
		Store:     store,
		Telemetry: cfg.Telemetry.TraceExporter + "/" + cfg.Telemetry.MetricExporter,
	}
	if queue != nil {
		health.Queue = queue
	}

	r := cfhttp.NewRouter(cfhttp.RouterConfig{
		CORSOrigin:     cfg.Server.CORSOrigin,
		RequestTimeout: requestTimeout(cfg.Server.WriteTimeout),
		ServiceName:    cfg.Telemetry.ServiceName,
		RateLimiter:    limiter,
		Health:         health,
		Metrics:        tel.MetricsHandler,
	}, handlers)

	// --- HTTP Server ---
	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "store", cfg.Store.Backend, "nats", queue != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-done:
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
