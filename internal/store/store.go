// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

// Package store provides the relational-store collaborator the vault backs
// up and restores. The store is a single DuckDB database file; the vault
// treats its contents as an opaque byte stream and only needs the on-disk
// path, a WAL checkpoint before copying, and a trivial read to verify a
// restored file is structurally openable.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver

	"github.com/jmorrow84/snapvault/internal/logging"
)

const defaultOpTimeout = 30 * time.Second

// Store wraps a DuckDB database file.
type Store struct {
	mu   sync.Mutex
	conn *sql.DB
	path string
}

// Open opens (creating if necessary) the DuckDB database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}

	s := &Store{path: path}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) open() error {
	// Disable auto-install/auto-load to prevent hangs in restricted
	// network environments.
	connStr := s.path + "?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false"

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to ping store: %w", err)
	}

	s.conn = conn
	return nil
}

// Path returns the on-disk path of the database file.
func (s *Store) Path() string {
	return s.path
}

// Conn exposes the underlying connection pool to the owning application.
func (s *Store) Conn() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Checkpoint forces a WAL checkpoint so the database file on disk is a
// consistent snapshot before the vault copies it.
func (s *Store) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("store is closed")
	}

	ctx, cancel := ensureDeadline(ctx)
	defer cancel()

	if _, err := s.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Close checkpoints and closes the connection. The file may then be
// replaced on disk.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
	if _, err := s.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint store before close")
	}
	cancel()

	err := s.conn.Close()
	s.conn = nil
	return err
}

// Reopen re-establishes the connection after the database file has been
// replaced by a restore.
func (s *Store) Reopen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}
	return s.open()
}

// VerifyRead performs a trivial read against the store to confirm the
// database file is structurally openable.
func (s *Store) VerifyRead(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("store is closed")
	}

	ctx, cancel := ensureDeadline(ctx)
	defer cancel()

	var one int
	if err := s.conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("verification read failed: %w", err)
	}
	if one != 1 {
		return fmt.Errorf("verification read returned %d", one)
	}
	return nil
}

// ensureDeadline adds the default operation timeout if ctx has no deadline.
func ensureDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), defaultOpTimeout)
	}
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, defaultOpTimeout)
	}
	return ctx, func() {}
}
