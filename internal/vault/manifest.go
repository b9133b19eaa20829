// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/jmorrow84/snapvault/internal/crypto"
)

// ManifestFileName is the encrypted manifest file inside each backup
// directory. Its presence marks the backup as complete.
const ManifestFileName = "manifest.json.enc"

// Manifest describes a single completed backup.
type Manifest struct {
	// BackupID is the UUID of the backup and the name of its directory.
	BackupID string `json:"backup_id"`

	// Timestamp is the backup creation time in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Components lists the components captured, in backup order.
	Components []ComponentName `json:"components"`

	// SizeBytes is the total size of all encrypted component artifacts.
	SizeBytes uint64 `json:"size_bytes"`

	// Description is an optional operator-supplied note.
	Description *string `json:"description,omitempty"`
}

// writeManifest serializes, encrypts and writes a manifest into dir.
// Callers write the manifest only after all component artifacts are in
// place; a crash before this point leaves a directory that listing will
// skip.
func writeManifest(m *Manifest, dir string, cipher crypto.Cipher) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	blob, err := cipher.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// readManifest loads and decrypts the manifest from dir. A missing file
// is reported via os.IsNotExist on the returned error; decrypt and parse
// failures wrap ErrInvalidManifest.
func readManifest(dir string, cipher crypto.Cipher) (*Manifest, error) {
	blob, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, err
	}

	data, err := cipher.Decrypt(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt failed: %w", ErrInvalidManifest, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse failed: %w", ErrInvalidManifest, err)
	}

	if m.BackupID == "" {
		return nil, fmt.Errorf("%w: missing backup_id", ErrInvalidManifest)
	}

	return &m, nil
}
