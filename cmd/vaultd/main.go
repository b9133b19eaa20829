// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

// Package main is the entry point for the snapvault daemon.
//
// Snapvault protects an application's persistent state (a DuckDB
// relational store and a Badger layered index) with encrypted,
// manifest-driven backups and scheduled retention.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML file, env)
//  2. Logging: zerolog, JSON or console format
//  3. Key material: raw hex/base64 key or HKDF-derived from passphrase
//  4. Stores: DuckDB relational store and Badger layered index
//  5. Vault: component adapters, Prometheus metrics sink
//  6. Supervisor tree: backup scheduler, config watcher, metrics server
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (VAULT_PASSPHRASE, VAULT_BACKUP_DIR, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// Exactly one of VAULT_KEY (32 bytes, hex or base64) and VAULT_PASSPHRASE
// must be set.
//
// # Signal Handling
//
// The daemon shuts down gracefully on SIGINT and SIGTERM: the scheduler
// finishes or abandons its sleep, the stores are checkpointed and closed,
// and unstopped services are reported.
//
// # Example Usage
//
//	export VAULT_PASSPHRASE=correct-horse-battery-staple
//	export VAULT_BACKUP_DIR=/data/backups
//	export STORE_PATH=/data/snapvault.duckdb
//	export INDEX_DIR=/data/index
//	export BACKUP_INTERVAL=6h
//	./vaultd
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmorrow84/snapvault/internal/config"
	"github.com/jmorrow84/snapvault/internal/crypto"
	"github.com/jmorrow84/snapvault/internal/index"
	"github.com/jmorrow84/snapvault/internal/logging"
	"github.com/jmorrow84/snapvault/internal/metrics"
	"github.com/jmorrow84/snapvault/internal/store"
	"github.com/jmorrow84/snapvault/internal/supervisor"
	"github.com/jmorrow84/snapvault/internal/vault"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("backup_dir", cfg.Vault.BackupDir).
		Int("max_backups", cfg.Vault.MaxBackups).
		Bool("schedule_enabled", cfg.Schedule.Enabled).
		Dur("interval", cfg.Schedule.Interval).
		Msg("Configuration loaded")

	key, err := cfg.DecodeKey()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to decode key material")
	}
	cipher, err := crypto.New(key)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize cipher")
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open relational store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing relational store")
		}
	}()

	idx, err := index.Open(cfg.Index.Dir)
	if err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.Index.Dir).Msg("Failed to open memory index")
	}
	defer func() {
		if err := idx.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing memory index")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sink := metrics.NewPrometheusSink(registry)

	v, err := vault.New(vault.Config{
		Enabled:    cfg.Vault.Enabled,
		BackupDir:  cfg.Vault.BackupDir,
		MaxBackups: cfg.Vault.MaxBackups,
	}, cipher, sink,
		vault.NewStoreComponent(db, cipher),
		vault.NewIndexComponent(idx, cipher),
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize vault")
	}

	scheduler := vault.NewScheduler(v, vault.ScheduleConfig{
		Enabled:      cfg.Schedule.Enabled,
		Interval:     cfg.Schedule.Interval,
		PollInterval: cfg.Schedule.PollInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddBackupService(scheduler)

	if configPath := config.FindConfigFile(); configPath != "" {
		watcher := supervisor.NewConfigWatcher(configPath, func() {
			reloaded, err := config.Load()
			if err != nil {
				logging.Warn().Err(err).Msg("Config reload failed, keeping current schedule")
				return
			}
			scheduler.UpdateConfig(vault.ScheduleConfig{
				Enabled:      reloaded.Schedule.Enabled,
				Interval:     reloaded.Schedule.Interval,
				PollInterval: reloaded.Schedule.PollInterval,
			})
		})
		tree.AddOpsService(watcher)
		logging.Info().Str("path", configPath).Msg("Config watcher added")
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		tree.AddOpsService(supervisor.NewMetricsService(server, 10*time.Second))
		logging.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics server added")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor finishes.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Snapvault stopped gracefully")
}
