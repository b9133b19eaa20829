// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmorrow84/snapvault/internal/crypto"
	"github.com/jmorrow84/snapvault/internal/logging"
	"github.com/jmorrow84/snapvault/internal/metrics"
)

// Config holds the vault's operational settings.
type Config struct {
	// Enabled gates every vault operation. When false, create, restore
	// and delete return ErrDisabled and listing returns an empty slice.
	Enabled bool

	// BackupDir is the root directory holding one subdirectory per
	// backup.
	BackupDir string

	// MaxBackups is the count-based retention limit enforced after each
	// successful backup.
	MaxBackups int
}

// Vault orchestrates encrypted backup and restore across registered
// components.
type Vault struct {
	cfg        Config
	cipher     crypto.FileCipher
	sink       metrics.Sink
	components []Component

	// opMu serializes backup, restore and delete. Listing reads the
	// filesystem directly and takes no lock.
	opMu sync.Mutex
}

// New creates a vault over the given components. Components are captured
// and restored in registration order.
func New(cfg Config, cipher crypto.FileCipher, sink metrics.Sink, components ...Component) (*Vault, error) {
	if cipher == nil {
		return nil, fmt.Errorf("cipher is required")
	}
	if cfg.MaxBackups < 1 {
		return nil, fmt.Errorf("max_backups must be at least 1, got %d", cfg.MaxBackups)
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}

	seen := make(map[ComponentName]bool, len(components))
	for _, c := range components {
		if !KnownComponent(c.Name()) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, c.Name())
		}
		if seen[c.Name()] {
			return nil, fmt.Errorf("duplicate component: %s", c.Name())
		}
		seen[c.Name()] = true
	}

	if err := os.MkdirAll(cfg.BackupDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	return &Vault{
		cfg:        cfg,
		cipher:     cipher,
		sink:       sink,
		components: components,
	}, nil
}

// CreateBackup captures every registered component into a new backup
// directory, writes the encrypted manifest last, then enforces retention.
// A failure in any component removes the partial directory.
func (v *Vault) CreateBackup(ctx context.Context, description *string) (*Manifest, error) {
	if !v.cfg.Enabled {
		return nil, ErrDisabled
	}

	v.opMu.Lock()
	defer v.opMu.Unlock()

	start := time.Now()
	id := uuid.New().String()
	dir := filepath.Join(v.cfg.BackupDir, id)

	manifest, err := v.captureComponents(ctx, id, dir, description)
	if err != nil {
		os.RemoveAll(dir) //nolint:errcheck // Best effort cleanup of partial backup
		v.sink.ObserveOperation(metrics.OpBackup, metrics.StatusFailed, 0, time.Since(start))
		return nil, err
	}

	if err := writeManifest(manifest, dir, v.cipher); err != nil {
		os.RemoveAll(dir) //nolint:errcheck // Best effort cleanup of partial backup
		v.sink.ObserveOperation(metrics.OpBackup, metrics.StatusFailed, 0, time.Since(start))
		return nil, err
	}

	v.sink.ObserveOperation(metrics.OpBackup, metrics.StatusOK, int64(manifest.SizeBytes), time.Since(start)) //nolint:gosec // Sizes fit in int64
	logging.Info().
		Str("backup_id", id).
		Uint64("size_bytes", manifest.SizeBytes).
		Dur("duration", time.Since(start)).
		Msg("Backup completed")

	v.cleanupOldBackupsLocked()

	return manifest, nil
}

// captureComponents runs each component's backup into dir and assembles
// the manifest.
func (v *Vault) captureComponents(ctx context.Context, id, dir string, description *string) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	manifest := &Manifest{
		BackupID:    id,
		Timestamp:   time.Now().UTC(),
		Components:  make([]ComponentName, 0, len(v.components)),
		Description: description,
	}

	for _, c := range v.components {
		cStart := time.Now()
		n, err := c.Backup(ctx, dir)
		if err != nil {
			v.sink.ObserveComponent(metrics.OpBackup, string(c.Name()), metrics.StatusFailed, 0, time.Since(cStart))
			return nil, fmt.Errorf("component %s backup failed: %w", c.Name(), err)
		}
		v.sink.ObserveComponent(metrics.OpBackup, string(c.Name()), metrics.StatusOK, n, time.Since(cStart))

		manifest.Components = append(manifest.Components, c.Name())
		manifest.SizeBytes += uint64(n) //nolint:gosec // Byte counts are non-negative
	}

	return manifest, nil
}

// RestoreBackup replaces the live state of every component named in the
// backup's manifest, in registration order, then verifies each component
// with a trivial read.
func (v *Vault) RestoreBackup(ctx context.Context, id string) error {
	if !v.cfg.Enabled {
		return ErrDisabled
	}

	v.opMu.Lock()
	defer v.opMu.Unlock()

	start := time.Now()
	dir := filepath.Join(v.cfg.BackupDir, id)

	manifest, err := readManifest(dir, v.cipher)
	if err != nil {
		v.sink.ObserveOperation(metrics.OpRestore, metrics.StatusFailed, 0, time.Since(start))
		if os.IsNotExist(err) {
			return &NotFoundError{ID: id}
		}
		return err
	}

	wanted := make(map[ComponentName]bool, len(manifest.Components))
	for _, name := range manifest.Components {
		if !KnownComponent(name) {
			v.sink.ObserveOperation(metrics.OpRestore, metrics.StatusFailed, 0, time.Since(start))
			return fmt.Errorf("%w: %s", ErrUnknownComponent, name)
		}
		wanted[name] = true
	}

	// Restore in registration order regardless of manifest order. The
	// relational store must come back before anything that references it.
	for _, c := range v.components {
		if !wanted[c.Name()] {
			continue
		}
		cStart := time.Now()
		if err := c.Restore(ctx, dir); err != nil {
			v.sink.ObserveComponent(metrics.OpRestore, string(c.Name()), metrics.StatusFailed, 0, time.Since(cStart))
			v.sink.ObserveOperation(metrics.OpRestore, metrics.StatusFailed, 0, time.Since(start))
			return fmt.Errorf("component %s restore failed: %w", c.Name(), err)
		}
		v.sink.ObserveComponent(metrics.OpRestore, string(c.Name()), metrics.StatusOK, 0, time.Since(cStart))
	}

	if err := v.verifyRestoration(ctx, wanted); err != nil {
		v.sink.ObserveOperation(metrics.OpRestore, metrics.StatusFailed, 0, time.Since(start))
		return err
	}

	v.sink.ObserveOperation(metrics.OpRestore, metrics.StatusOK, int64(manifest.SizeBytes), time.Since(start)) //nolint:gosec // Sizes fit in int64
	logging.Info().
		Str("backup_id", id).
		Dur("duration", time.Since(start)).
		Msg("Restore completed")

	return nil
}

// verifyRestoration checks each restored component with a trivial read.
func (v *Vault) verifyRestoration(ctx context.Context, wanted map[ComponentName]bool) error {
	for _, c := range v.components {
		if !wanted[c.Name()] {
			continue
		}
		if err := c.Verify(ctx); err != nil {
			return fmt.Errorf("restoration verification failed for %s: %w", c.Name(), err)
		}
	}
	return nil
}

// ListBackups returns the manifests of all complete backups, newest
// first. Directories whose manifest cannot be read are logged and
// skipped, never fatal. A disabled vault lists nothing.
func (v *Vault) ListBackups() ([]*Manifest, error) {
	if !v.cfg.Enabled {
		return []*Manifest{}, nil
	}

	start := time.Now()
	manifests, err := v.listBackups()
	if err != nil {
		v.sink.ObserveOperation(metrics.OpList, metrics.StatusFailed, 0, time.Since(start))
		return nil, err
	}
	v.sink.ObserveOperation(metrics.OpList, metrics.StatusOK, 0, time.Since(start))

	return manifests, nil
}

// listBackups scans the backup directory without touching the metrics
// sink. The retention pass uses it directly.
func (v *Vault) listBackups() ([]*Manifest, error) {
	entries, err := os.ReadDir(v.cfg.BackupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Manifest{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	manifests := make([]*Manifest, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m, err := readManifest(filepath.Join(v.cfg.BackupDir, entry.Name()), v.cipher)
		if err != nil {
			logging.Warn().
				Str("backup_dir", entry.Name()).
				Err(err).
				Msg("Skipping unreadable backup")
			continue
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		if manifests[i].Timestamp.Equal(manifests[j].Timestamp) {
			return manifests[i].BackupID > manifests[j].BackupID
		}
		return manifests[i].Timestamp.After(manifests[j].Timestamp)
	})

	return manifests, nil
}

// DeleteBackup removes a backup directory and everything in it.
func (v *Vault) DeleteBackup(id string) error {
	if !v.cfg.Enabled {
		return ErrDisabled
	}

	v.opMu.Lock()
	defer v.opMu.Unlock()

	start := time.Now()
	dir := filepath.Join(v.cfg.BackupDir, id)

	if _, err := os.Stat(dir); err != nil {
		v.sink.ObserveOperation(metrics.OpDelete, metrics.StatusFailed, 0, time.Since(start))
		if os.IsNotExist(err) {
			return &NotFoundError{ID: id}
		}
		return fmt.Errorf("failed to stat backup directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		v.sink.ObserveOperation(metrics.OpDelete, metrics.StatusFailed, 0, time.Since(start))
		return fmt.Errorf("failed to delete backup: %w", err)
	}

	v.sink.ObserveOperation(metrics.OpDelete, metrics.StatusOK, 0, time.Since(start))
	logging.Info().Str("backup_id", id).Msg("Backup deleted")

	return nil
}

// cleanupOldBackupsLocked enforces the count-based retention limit. It is
// best effort: a backup that fails to delete is logged and left for the
// next pass, and a backup already gone counts as deleted.
func (v *Vault) cleanupOldBackupsLocked() {
	manifests, err := v.listBackups()
	if err != nil {
		logging.Warn().Err(err).Msg("Retention pass failed to list backups")
		return
	}

	if len(manifests) <= v.cfg.MaxBackups {
		return
	}

	evicted := 0
	for _, m := range manifests[v.cfg.MaxBackups:] {
		dir := filepath.Join(v.cfg.BackupDir, m.BackupID)
		if err := os.RemoveAll(dir); err != nil {
			logging.Warn().
				Str("backup_id", m.BackupID).
				Err(err).
				Msg("Retention failed to delete backup")
			continue
		}
		evicted++
		logging.Info().
			Str("backup_id", m.BackupID).
			Time("created_at", m.Timestamp).
			Msg("Backup evicted by retention")
	}

	if evicted > 0 {
		v.sink.AddRetentionEvictions(evicted)
	}
}
