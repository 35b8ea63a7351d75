package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mstavrakis/rewrite-gateway/config"
	"github.com/mstavrakis/rewrite-gateway/internal/handler"
	"github.com/mstavrakis/rewrite-gateway/internal/healthcheck"
	"github.com/mstavrakis/rewrite-gateway/internal/httpserver"
	"github.com/mstavrakis/rewrite-gateway/internal/metrics"
	"github.com/mstavrakis/rewrite-gateway/internal/rewrite"
	"github.com/mstavrakis/rewrite-gateway/internal/upstream"
	"github.com/mstavrakis/rewrite-gateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	table, err := buildTable(cfg)
	if err != nil {
		log.Error("Failed to build rewrite table", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	upstreams := upstream.NewRegistry()
	if err := startProbes(ctx, cfg, table, upstreams, log, collector); err != nil {
		log.Error("Failed to start upstream probes", slog.Any("err", err))
		os.Exit(1)
	}

	mux, static := setupRouter(collector, cfg.Server.StaticDir)
	gateway := handler.NewGatewayHandler(log, table, upstreams, mux, static, collector)

	srv, err := httpserver.New(cfg.Server.Address, gateway)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Starting gateway",
		slog.String("address", cfg.Server.Address),
		slog.Int("rewrite_rules", table.Len()))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// buildTable compiles the configured rewrite rules into the immutable table
// evaluated per request. Compilation errors are startup faults.
func buildTable(cfg *config.Config) (*rewrite.Table, error) {
	rules := make([]*rewrite.Rule, 0, len(cfg.Rewrites))

	for _, rc := range cfg.Rewrites {
		rule, err := rewrite.CompileRule(rc.Source, rc.Destination, rewrite.Phase(rc.Phase))
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rewrite.NewTable(rules), nil
}

// startProbes registers every distinct destination origin and starts a
// reachability probe per upstream when probing is enabled.
func startProbes(
	ctx context.Context,
	cfg *config.Config,
	table *rewrite.Table,
	upstreams *upstream.Registry,
	log *slog.Logger,
	collector *metrics.Collector,
) error {
	if !cfg.UpstreamHealth.Enabled {
		return nil
	}

	interval, err := time.ParseDuration(cfg.UpstreamHealth.Interval)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, rule := range table.Rules() {
		origin := rule.Origin()
		if seen[origin.String()] {
			continue
		}
		seen[origin.String()] = true

		up := upstreams.Get(origin)
		go healthcheck.Probe(ctx, up, interval, cfg.UpstreamHealth.Path, log, collector.EventChannel())
	}

	return nil
}
