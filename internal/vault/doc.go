// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

// Package vault provides encrypted backup and restore orchestration across
// the application's persistent components with count-based retention and
// scheduled execution.
//
// # Overview
//
// The vault package implements a complete backup solution with the
// following features:
//   - Per-component backup via a pluggable Component interface
//   - AES-256-GCM encryption of every artifact on disk
//   - Crash-safe completion semantics (manifest written last)
//   - Count-based retention with best-effort cleanup
//   - Interval scheduling with live reconfiguration
//
// # Architecture
//
// The backup system consists of several parts:
//
//	Vault     - Orchestrates backup, restore, list and delete operations
//	Component - A backupable subsystem (relational store, memory index)
//	Manifest  - Per-backup metadata, stored encrypted alongside artifacts
//	Scheduler - Runs backups at a configurable interval
//
// # Layout
//
// Each backup occupies its own directory under the backup root, named by
// the backup's UUID:
//
//	<backup_dir>/<uuid>/store.db.enc
//	<backup_dir>/<uuid>/index/<layer>/<file>.enc
//	<backup_dir>/<uuid>/manifest.json.enc
//
// The manifest is written after every component artifact. A directory
// without a readable manifest is an incomplete or corrupt backup and is
// skipped during listing; it is never restored.
//
// # Usage
//
// Basic usage:
//
//	cipher, err := crypto.New(key)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	v, err := vault.New(cfg, cipher, sink,
//		vault.NewStoreComponent(db, cipher),
//		vault.NewIndexComponent(idx, cipher),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	manifest, err := v.CreateBackup(ctx, nil)
//
// # Thread Safety
//
// Vault operations are safe for concurrent use. Mutating operations are
// serialized; listing takes no lock and reads the backup directory
// directly.
package vault
