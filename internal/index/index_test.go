// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package index

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func newTestLayerSet(t *testing.T) *LayerSet {
	t.Helper()
	ls, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { ls.Close() }) //nolint:errcheck // Test cleanup
	return ls
}

func TestOpenLayerAndPutGet(t *testing.T) {
	ls := newTestLayerSet(t)

	if err := ls.OpenLayer("titles"); err != nil {
		t.Fatalf("OpenLayer failed: %v", err)
	}

	if err := ls.Put("titles", []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := ls.Get("titles", []byte("k1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Errorf("Get = %q, want %q", got, "v1")
	}

	if _, err := ls.Get("titles", []byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestLayersEnumeratesSorted(t *testing.T) {
	ls := newTestLayerSet(t)

	for _, name := range []string{"tags", "authors", "titles"} {
		if err := ls.OpenLayer(name); err != nil {
			t.Fatalf("OpenLayer(%s) failed: %v", name, err)
		}
	}

	names, err := ls.Layers()
	if err != nil {
		t.Fatalf("Layers failed: %v", err)
	}

	want := []string{"authors", "tags", "titles"}
	if len(names) != len(want) {
		t.Fatalf("Layers = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Layers[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestInvalidLayerNames(t *testing.T) {
	ls := newTestLayerSet(t)

	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		if err := ls.OpenLayer(name); !errors.Is(err, ErrInvalidLayerName) {
			t.Errorf("OpenLayer(%q): expected ErrInvalidLayerName, got %v", name, err)
		}
	}
}

func TestGetUnknownLayer(t *testing.T) {
	ls := newTestLayerSet(t)

	if _, err := ls.Get("nope", []byte("k")); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("expected ErrLayerNotFound, got %v", err)
	}
}

func TestRestoreCycle(t *testing.T) {
	ls := newTestLayerSet(t)
	ctx := context.Background()

	if err := ls.OpenLayer("titles"); err != nil {
		t.Fatalf("OpenLayer failed: %v", err)
	}
	if err := ls.Put("titles", []byte("k"), []byte("old")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := ls.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Wipe and rebuild the layer as a restore would.
	if err := ls.BeginRestore("titles"); err != nil {
		t.Fatalf("BeginRestore failed: %v", err)
	}
	if err := ls.FinishRestore(ctx, "titles"); err != nil {
		t.Fatalf("FinishRestore failed: %v", err)
	}

	// Old data is gone; the layer is empty but usable.
	if _, err := ls.Get("titles", []byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after restore wipe, got %v", err)
	}
	if err := ls.Put("titles", []byte("k"), []byte("new")); err != nil {
		t.Fatalf("Put after restore failed: %v", err)
	}

	if err := ls.VerifyLayer(ctx, "titles"); err != nil {
		t.Errorf("VerifyLayer failed: %v", err)
	}
}

func TestOpenReloadsExistingLayers(t *testing.T) {
	dir := t.TempDir()

	ls, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := ls.OpenLayer("titles"); err != nil {
		t.Fatalf("OpenLayer failed: %v", err)
	}
	if err := ls.Put("titles", []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := ls.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close() //nolint:errcheck // Test cleanup

	got, err := reopened.Get("titles", []byte("k"))
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get = %q, want %q", got, "v")
	}
}
