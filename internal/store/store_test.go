// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "events.duckdb")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close() //nolint:errcheck // Test cleanup

	if s.Path() != path {
		t.Errorf("Path() = %s, want %s", s.Path(), path)
	}

	if err := s.Checkpoint(context.Background()); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestVerifyRead(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "events.duckdb"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close() //nolint:errcheck // Test cleanup

	if err := s.VerifyRead(context.Background()); err != nil {
		t.Errorf("VerifyRead failed: %v", err)
	}
}

func TestCloseAndReopenSurvivesFileReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.duckdb")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ctx := context.Background()

	// Seed some state so the replacement is observable.
	if _, err := s.Conn().ExecContext(ctx, "CREATE TABLE marker (id INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := s.Conn().ExecContext(ctx, "INSERT INTO marker VALUES (42)"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Operations on a closed store must fail rather than panic.
	if err := s.VerifyRead(ctx); err == nil {
		t.Error("expected VerifyRead to fail on closed store")
	}
	if err := s.Checkpoint(ctx); err == nil {
		t.Error("expected Checkpoint to fail on closed store")
	}

	if err := s.Reopen(ctx); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s.Close() //nolint:errcheck // Test cleanup

	var id int
	if err := s.Conn().QueryRowContext(ctx, "SELECT id FROM marker").Scan(&id); err != nil {
		t.Fatalf("read after reopen: %v", err)
	}
	if id != 42 {
		t.Errorf("expected marker 42, got %d", id)
	}

	if err := s.VerifyRead(ctx); err != nil {
		t.Errorf("VerifyRead after reopen failed: %v", err)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "events.duckdb"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close() //nolint:errcheck // Test cleanup

	// Reopen on an open store is a no-op.
	if err := s.Reopen(context.Background()); err != nil {
		t.Errorf("Reopen on open store failed: %v", err)
	}
}
