// Package main is the entry point for the nettriage service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"nettriage/internal/config"
	"nettriage/internal/logging"
	"nettriage/internal/pipeline"
	"nettriage/internal/topology"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Text)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"kafka_enabled", cfg.Kafka.Enabled,
		"rislive_enabled", cfg.RISLive.Enabled,
		"bin_seconds", cfg.Aggregator.BinSeconds,
		"correlation_window", cfg.Correlator.WindowSeconds,
		"topology_path", cfg.Topology.Path,
	)

	// Missing or broken topology degrades to an empty graph; alerts still
	// flow, just with unknown roles and conservative priorities.
	graph := topology.Load(cfg.Topology.Path)

	p, err := pipeline.New(cfg, graph, logger)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		slog.Error("failed to start pipeline", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	p.Stop()

	stats := p.Stats()
	slog.Info("shutdown complete",
		"bgp_updates", stats["bgp_updates"],
		"snmp_polls", stats["snmp_polls"],
		"anomalies", stats["anomalies"],
		"alerts", stats["alerts"],
	)
}
