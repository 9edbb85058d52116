package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	hcnats "github.com/syltwerk/hotelchat/internal/adapter/nats"
	"github.com/syltwerk/hotelchat/internal/adapter/tenantfs"
	"github.com/syltwerk/hotelchat/internal/adapter/upstream"
	"github.com/syltwerk/hotelchat/internal/config"
	"github.com/syltwerk/hotelchat/internal/domain/exchange"
	"github.com/syltwerk/hotelchat/internal/service"
)

var errHealthCheckFailed = errors.New("health check failed")

var (
	hcTenant   string
	hcQuestion string
	hcAll      bool
)

var healthCheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe a tenant's upstream model endpoint and record the result",
	Long: `healthcheck sends a short probe conversation to the upstream endpoint of one
tenant (or all tenants with --all), prints the outcome and stores it in the
exchange log. The command exits non-zero if any probe fails.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !hcAll && hcTenant == "" {
			return errors.New("either --tenant or --all is required")
		}
		return runHealthCheck(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	healthCheckCmd.Flags().StringVar(&hcTenant, "tenant", "", "Tenant key to probe")
	healthCheckCmd.Flags().StringVar(&hcQuestion, "question", "", "Probe question (default: PING)")
	healthCheckCmd.Flags().BoolVar(&hcAll, "all", false, "Probe every tenant in the tenant directory")
	rootCmd.AddCommand(healthCheckCmd)
}

// probeOptions are fixed so a probe never waits on a production retry budget.
func probeOptions(cfg *config.Config) upstream.Options {
	return upstream.Options{
		MaxAttempts:    3,
		ConnectTimeout: 5 * time.Second,
		Timeout:        15 * time.Second,
		BackoffInitial: 200 * time.Millisecond,
		BackoffFactor:  2.0,
		ErrorLogPath:   cfg.Upstream.ErrorLogPath,
	}
}

func runHealthCheck(ctx context.Context, out io.Writer) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	if ctx == nil {
		ctx = context.Background()
	}

	var recorders []service.HealthRecorder

	// A missing database only costs the history; the probe still runs.
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Warn("health check results will not be stored", "error", err)
	}
	if store != nil {
		defer store.Close()
		recorders = append(recorders, store)
	}

	queue, err := connectQueue(ctx, cfg)
	if err != nil {
		slog.Warn("health check results will not be published", "error", err)
	}
	if queue != nil {
		defer func() { _ = queue.Close() }()
		recorders = append(recorders, service.HealthRecorderFunc(hcnats.NewExchangeSink(queue).PublishHealthCheck))
	}

	tenants := tenantfs.New(cfg.Tenants.Dir)
	keys := []string{hcTenant}
	if hcAll {
		if keys, err = tenants.Keys(); err != nil {
			return fmt.Errorf("list tenants: %w", err)
		}
	}

	svc := service.NewHealthCheckService(tenants, upstream.New(probeOptions(cfg)), cfg.Upstream.URL, recorders...)
	return probeAll(ctx, out, svc, keys, hcQuestion)
}

type prober interface {
	Check(ctx context.Context, tenantKey, question string) (*exchange.HealthCheck, error)
}

// probeAll checks every key, printing one line per tenant.
func probeAll(ctx context.Context, out io.Writer, svc prober, keys []string, question string) error {
	failed := 0
	for _, key := range keys {
		hc, err := svc.Check(ctx, key, question)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "FAIL %s: %v\n", key, err)
			continue
		}
		_, _ = fmt.Fprintln(out, formatResult(hc))
		if !hc.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d tenants", errHealthCheckFailed, failed, len(keys))
	}
	return nil
}

func formatResult(hc *exchange.HealthCheck) string {
	if hc.Success {
		return fmt.Sprintf("OK   %s: HTTP %d in %d ms", hc.Tenant, hc.StatusCode, hc.LatencyMS)
	}
	return fmt.Sprintf("FAIL %s: HTTP %d in %d ms (%s) %s", hc.Tenant, hc.StatusCode, hc.LatencyMS, hc.ErrorCode, hc.ResponseExcerpt)
}
