// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

// Package index provides the layered memory-index collaborator the vault
// backs up and restores. A LayerSet owns a root directory of named layers;
// each layer is a BadgerDB store in its own subdirectory. The vault treats
// layer contents as opaque files: it enumerates layer directories, copies
// their files, and hands restored files back into a named layer directory.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrLayerNotFound is returned when an operation names a layer that
	// has not been opened and has no directory on disk.
	ErrLayerNotFound = errors.New("layer not found")

	// ErrInvalidLayerName is returned for layer names that are empty or
	// would escape the root directory.
	ErrInvalidLayerName = errors.New("invalid layer name")

	// ErrKeyNotFound is returned by Get for missing keys.
	ErrKeyNotFound = errors.New("key not found")
)

// LayerSet manages a set of named BadgerDB layers under one root directory.
type LayerSet struct {
	mu     sync.Mutex
	root   string
	layers map[string]*badger.DB
}

// Open creates a LayerSet rooted at dir and opens any layer directories
// already present.
func Open(dir string) (*LayerSet, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create index root %s: %w", dir, err)
	}

	ls := &LayerSet{
		root:   dir,
		layers: make(map[string]*badger.DB),
	}

	existing, err := ls.Layers()
	if err != nil {
		return nil, err
	}
	for _, name := range existing {
		if err := ls.OpenLayer(name); err != nil {
			ls.Close() //nolint:errcheck // Best effort cleanup on error
			return nil, fmt.Errorf("failed to open existing layer %s: %w", name, err)
		}
	}

	return ls, nil
}

// validateName rejects names that are empty or would resolve outside root.
func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidLayerName, name)
	}
	return nil
}

// OpenLayer opens (creating if necessary) the named layer.
func (ls *LayerSet) OpenLayer(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if _, ok := ls.layers[name]; ok {
		return nil
	}

	opts := badger.DefaultOptions(filepath.Join(ls.root, name)).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open layer %s: %w", name, err)
	}

	ls.layers[name] = db
	return nil
}

// Put stores a key/value pair in the named layer.
func (ls *LayerSet) Put(layer string, key, value []byte) error {
	db, err := ls.layer(layer)
	if err != nil {
		return err
	}

	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Get retrieves the value for key from the named layer.
func (ls *LayerSet) Get(layer string, key []byte) ([]byte, error) {
	db, err := ls.layer(layer)
	if err != nil {
		return nil, err
	}

	var value []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get key: %w", err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Layers enumerates layer names by scanning the root directory, sorted for
// deterministic backup ordering.
func (ls *LayerSet) Layers() ([]string, error) {
	entries, err := os.ReadDir(ls.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read index root: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// LayerDir returns the on-disk directory of the named layer.
func (ls *LayerSet) LayerDir(name string) string {
	return filepath.Join(ls.root, name)
}

// Flush syncs all open layers to disk so their directories are consistent
// snapshots before the vault copies them.
func (ls *LayerSet) Flush(ctx context.Context) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for name, db := range ls.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := db.Sync(); err != nil {
			return fmt.Errorf("failed to sync layer %s: %w", name, err)
		}
	}
	return nil
}

// BeginRestore closes the named layer if open and wipes its directory so
// restored files can be written in.
func (ls *LayerSet) BeginRestore(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if db, ok := ls.layers[name]; ok {
		if err := db.Close(); err != nil {
			return fmt.Errorf("failed to close layer %s: %w", name, err)
		}
		delete(ls.layers, name)
	}

	dir := filepath.Join(ls.root, name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to wipe layer %s: %w", name, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to recreate layer %s: %w", name, err)
	}
	return nil
}

// FinishRestore reopens the named layer after its files have been restored.
func (ls *LayerSet) FinishRestore(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ls.OpenLayer(name)
}

// VerifyLayer confirms the named layer is structurally openable by running
// a read transaction against it.
func (ls *LayerSet) VerifyLayer(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db, err := ls.layer(name)
	if err != nil {
		return err
	}

	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		it.Rewind() // A single seek is enough to prove the store opens and reads
		return nil
	})
}

// Close closes all open layers.
func (ls *LayerSet) Close() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	var firstErr error
	for name, db := range ls.layers {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close layer %s: %w", name, err)
		}
		delete(ls.layers, name)
	}
	return firstErr
}

// layer returns the open handle for name, opening it if its directory
// exists on disk.
func (ls *LayerSet) layer(name string) (*badger.DB, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	ls.mu.Lock()
	db, ok := ls.layers[name]
	ls.mu.Unlock()
	if ok {
		return db, nil
	}

	if _, err := os.Stat(filepath.Join(ls.root, name)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, name)
	}

	if err := ls.OpenLayer(name); err != nil {
		return nil, err
	}

	ls.mu.Lock()
	db = ls.layers[name]
	ls.mu.Unlock()
	return db, nil
}
