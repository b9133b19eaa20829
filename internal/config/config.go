// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

// Package config provides layered configuration management for Snapvault:
// built-in defaults, an optional YAML config file, and environment
// variables, in increasing order of precedence.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jmorrow84/snapvault/internal/crypto"
)

var (
	// ErrNoKeyMaterial is returned when the vault is enabled but neither a
	// raw key nor a passphrase is configured.
	ErrNoKeyMaterial = errors.New("vault requires either a key or a passphrase")

	// ErrAmbiguousKeyMaterial is returned when both a raw key and a
	// passphrase are configured.
	ErrAmbiguousKeyMaterial = errors.New("configure either a key or a passphrase, not both")

	// ErrInvalidKey is returned when the configured key does not decode to
	// 32 bytes.
	ErrInvalidKey = errors.New("vault key must decode to exactly 32 bytes (hex or base64)")
)

// Config is the root configuration for the snapvault service.
type Config struct {
	Vault    VaultConfig    `koanf:"vault"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Store    StoreConfig    `koanf:"store"`
	Index    IndexConfig    `koanf:"index"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// VaultConfig configures the backup vault itself.
type VaultConfig struct {
	// Enabled gates all mutating vault operations.
	Enabled bool `koanf:"enabled"`

	// BackupDir is the directory that holds one subdirectory per backup.
	BackupDir string `koanf:"backup_dir"`

	// MaxBackups bounds the retention window (oldest evicted first).
	MaxBackups int `koanf:"max_backups" validate:"min=1"`

	// Key is the 32-byte symmetric key, hex- or base64-encoded. Mutually
	// exclusive with Passphrase.
	Key string `koanf:"key"`

	// Passphrase derives the key via HKDF-SHA256 when Key is empty.
	Passphrase string `koanf:"passphrase"`
}

// ScheduleConfig configures the background backup scheduler. It is re-read
// by the scheduler every cycle, so changes take effect without a restart.
type ScheduleConfig struct {
	// Enabled turns the periodic loop on or off. The loop keeps running
	// while disabled, polling for reconfiguration.
	Enabled bool `koanf:"enabled"`

	// Interval is the sleep between scheduled backups.
	Interval time.Duration `koanf:"interval"`

	// PollInterval is the sleep used while the schedule is disabled.
	PollInterval time.Duration `koanf:"poll_interval"`
}

// StoreConfig locates the relational store.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// IndexConfig locates the layered memory index.
type IndexConfig struct {
	Dir string `koanf:"dir"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	// Enabled turns the /metrics HTTP listener on.
	Enabled bool `koanf:"enabled"`

	// Addr is the listen address, e.g. ":9090".
	Addr string `koanf:"addr"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all sensible default values. These
// are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Vault: VaultConfig{
			Enabled:    true,
			BackupDir:  "/data/backups",
			MaxBackups: 10,
		},
		Schedule: ScheduleConfig{
			Enabled:      true,
			Interval:     24 * time.Hour,
			PollInterval: time.Minute,
		},
		Store: StoreConfig{
			Path: "/data/snapvault.duckdb",
		},
		Index: IndexConfig{
			Dir: "/data/index",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if !c.Vault.Enabled {
		return nil // Remaining checks only matter for an enabled vault
	}

	if c.Vault.BackupDir == "" {
		return fmt.Errorf("vault.backup_dir is required when the vault is enabled")
	}
	if !filepath.IsAbs(c.Vault.BackupDir) {
		return fmt.Errorf("vault.backup_dir must be an absolute path, got: %s", c.Vault.BackupDir)
	}

	if c.Vault.Key == "" && c.Vault.Passphrase == "" {
		return ErrNoKeyMaterial
	}
	if c.Vault.Key != "" && c.Vault.Passphrase != "" {
		return ErrAmbiguousKeyMaterial
	}
	if c.Vault.Key != "" {
		if _, err := decodeRawKey(c.Vault.Key); err != nil {
			return err
		}
	}

	if c.Schedule.Enabled && c.Schedule.Interval < time.Second {
		return fmt.Errorf("schedule.interval must be at least 1s, got: %s", c.Schedule.Interval)
	}
	if c.Schedule.PollInterval < time.Millisecond {
		return fmt.Errorf("schedule.poll_interval must be at least 1ms, got: %s", c.Schedule.PollInterval)
	}

	return nil
}

// DecodeKey returns the 32-byte vault key, decoding the configured raw key
// or deriving one from the passphrase.
func (c *Config) DecodeKey() ([]byte, error) {
	if c.Vault.Key != "" {
		return decodeRawKey(c.Vault.Key)
	}
	if c.Vault.Passphrase == "" {
		return nil, ErrNoKeyMaterial
	}
	return crypto.DeriveKey(c.Vault.Passphrase)
}

// decodeRawKey accepts a hex- or base64-encoded 32-byte key.
func decodeRawKey(raw string) ([]byte, error) {
	if key, err := hex.DecodeString(raw); err == nil {
		if len(key) != crypto.KeySize {
			return nil, fmt.Errorf("%w: hex decoded to %d bytes", ErrInvalidKey, len(key))
		}
		return key, nil
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid hex or base64", ErrInvalidKey)
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("%w: base64 decoded to %d bytes", ErrInvalidKey, len(key))
	}
	return key, nil
}
