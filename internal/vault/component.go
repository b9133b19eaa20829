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

	"github.com/jmorrow84/snapvault/internal/crypto"
)

// ComponentName identifies a backupable subsystem. The set is closed;
// manifests naming anything else are rejected at restore time.
type ComponentName string

const (
	// ComponentRelationalStore is the DuckDB analytics database.
	ComponentRelationalStore ComponentName = "relational_store"
	// ComponentMemoryIndex is the Badger layered key-value index.
	ComponentMemoryIndex ComponentName = "memory_index"
)

// KnownComponent reports whether name belongs to the closed component set.
func KnownComponent(name ComponentName) bool {
	switch name {
	case ComponentRelationalStore, ComponentMemoryIndex:
		return true
	default:
		return false
	}
}

// Component is a subsystem the vault can capture and restore. Backup
// writes encrypted artifacts into dir and returns the total bytes
// written. Restore reads the same artifacts back and replaces the live
// state. Verify performs a cheap read against the live state after a
// restore.
type Component interface {
	Name() ComponentName
	Backup(ctx context.Context, dir string) (int64, error)
	Restore(ctx context.Context, dir string) error
	Verify(ctx context.Context) error
}

// RelationalStore defines the database operations needed for backup.
type RelationalStore interface {
	// Path returns the path to the database file.
	Path() string
	// Checkpoint flushes the WAL so the file on disk is consistent.
	Checkpoint(ctx context.Context) error
	// Close closes the database connection.
	Close() error
	// Reopen re-establishes the connection after the file was replaced.
	Reopen(ctx context.Context) error
	// VerifyRead executes a trivial read against the live connection.
	VerifyRead(ctx context.Context) error
}

// storeFileName is the encrypted database artifact inside a backup
// directory.
const storeFileName = "store.db.enc"

// StoreComponent adapts a RelationalStore to the Component interface.
type StoreComponent struct {
	store  RelationalStore
	cipher crypto.FileCipher
}

// NewStoreComponent creates the relational store adapter.
func NewStoreComponent(store RelationalStore, cipher crypto.FileCipher) *StoreComponent {
	return &StoreComponent{store: store, cipher: cipher}
}

// Name implements Component.
func (c *StoreComponent) Name() ComponentName { return ComponentRelationalStore }

// Backup checkpoints the database and writes its file encrypted into dir.
func (c *StoreComponent) Backup(ctx context.Context, dir string) (int64, error) {
	if err := c.store.Checkpoint(ctx); err != nil {
		return 0, fmt.Errorf("failed to checkpoint database: %w", err)
	}

	n, err := c.cipher.EncryptFile(c.store.Path(), filepath.Join(dir, storeFileName))
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt database file: %w", err)
	}

	return n, nil
}

// Restore closes the live database, replaces its file with the decrypted
// artifact and reopens the connection. The decrypted file is staged next
// to the target and moved into place with a rename so a failed decrypt
// never clobbers the live file.
func (c *StoreComponent) Restore(ctx context.Context, dir string) error {
	src := filepath.Join(dir, storeFileName)
	target := c.store.Path()
	staged := target + ".restore"

	if _, err := c.cipher.DecryptFile(src, staged); err != nil {
		os.Remove(staged) //nolint:errcheck // Best effort cleanup of partial stage
		return fmt.Errorf("failed to decrypt database artifact: %w", err)
	}

	if err := c.store.Close(); err != nil {
		os.Remove(staged) //nolint:errcheck // Best effort cleanup of partial stage
		return fmt.Errorf("failed to close database before restore: %w", err)
	}

	// DuckDB keeps WAL state next to the file; stale WAL would replay
	// over the restored snapshot.
	os.Remove(target + ".wal") //nolint:errcheck // WAL may not exist

	if err := os.Rename(staged, target); err != nil {
		return fmt.Errorf("failed to move restored database into place: %w", err)
	}

	if err := c.store.Reopen(ctx); err != nil {
		return fmt.Errorf("failed to reopen restored database: %w", err)
	}

	return nil
}

// Verify implements Component.
func (c *StoreComponent) Verify(ctx context.Context) error {
	return c.store.VerifyRead(ctx)
}

// LayeredIndex defines the index operations needed for backup.
type LayeredIndex interface {
	// Layers returns the layer names present on disk, sorted.
	Layers() ([]string, error)
	// LayerDir returns the on-disk directory of a layer.
	LayerDir(name string) string
	// Flush syncs all open layers to disk.
	Flush(ctx context.Context) error
	// BeginRestore closes a layer and clears its directory.
	BeginRestore(name string) error
	// FinishRestore reopens a layer after its files were replaced.
	FinishRestore(ctx context.Context, name string) error
	// VerifyLayer performs a trivial read against a layer.
	VerifyLayer(ctx context.Context, name string) error
}

// indexDirName is the per-layer artifact subtree inside a backup
// directory.
const indexDirName = "index"

// IndexComponent adapts a LayeredIndex to the Component interface.
type IndexComponent struct {
	index  LayeredIndex
	cipher crypto.FileCipher
}

// NewIndexComponent creates the memory index adapter.
func NewIndexComponent(index LayeredIndex, cipher crypto.FileCipher) *IndexComponent {
	return &IndexComponent{index: index, cipher: cipher}
}

// Name implements Component.
func (c *IndexComponent) Name() ComponentName { return ComponentMemoryIndex }

// Backup flushes the index and writes every file of every layer encrypted
// into dir/index/<layer>/.
func (c *IndexComponent) Backup(ctx context.Context, dir string) (int64, error) {
	if err := c.index.Flush(ctx); err != nil {
		return 0, fmt.Errorf("failed to flush index: %w", err)
	}

	layers, err := c.index.Layers()
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate index layers: %w", err)
	}

	var total int64
	for _, layer := range layers {
		n, err := c.backupLayer(layer, filepath.Join(dir, indexDirName, layer))
		if err != nil {
			return 0, fmt.Errorf("failed to back up layer %s: %w", layer, err)
		}
		total += n
	}

	return total, nil
}

// backupLayer encrypts every regular file in a layer directory into dst.
func (c *IndexComponent) backupLayer(layer, dst string) (int64, error) {
	if err := os.MkdirAll(dst, 0o750); err != nil {
		return 0, err
	}

	layerDir := c.index.LayerDir(layer)
	entries, err := os.ReadDir(layerDir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n, err := c.cipher.EncryptFile(
			filepath.Join(layerDir, entry.Name()),
			filepath.Join(dst, entry.Name()+".enc"),
		)
		if err != nil {
			return 0, err
		}
		total += n
	}

	return total, nil
}

// Restore replaces every layer present in the backup. Layers in the live
// index that the backup does not contain are left untouched.
func (c *IndexComponent) Restore(ctx context.Context, dir string) error {
	root := filepath.Join(dir, indexDirName)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // backup captured an empty index
		}
		return fmt.Errorf("failed to read index artifacts: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := c.restoreLayer(ctx, entry.Name(), filepath.Join(root, entry.Name())); err != nil {
			return fmt.Errorf("failed to restore layer %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// restoreLayer decrypts a layer's artifacts into its cleared directory.
func (c *IndexComponent) restoreLayer(ctx context.Context, layer, src string) error {
	if err := c.index.BeginRestore(layer); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	layerDir := c.index.LayerDir(layer)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := trimEncSuffix(entry.Name())
		if !ok {
			continue
		}
		if _, err := c.cipher.DecryptFile(filepath.Join(src, entry.Name()), filepath.Join(layerDir, name)); err != nil {
			return err
		}
	}

	return c.index.FinishRestore(ctx, layer)
}

// Verify implements Component.
func (c *IndexComponent) Verify(ctx context.Context) error {
	layers, err := c.index.Layers()
	if err != nil {
		return fmt.Errorf("failed to enumerate index layers: %w", err)
	}
	for _, layer := range layers {
		if err := c.index.VerifyLayer(ctx, layer); err != nil {
			return fmt.Errorf("failed to verify layer %s: %w", layer, err)
		}
	}
	return nil
}

func trimEncSuffix(name string) (string, bool) {
	const suffix = ".enc"
	if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return "", false
	}
	return name[:len(name)-len(suffix)], true
}
