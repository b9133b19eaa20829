// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrDisabled is returned when a backup operation is attempted while
	// backups are disabled in configuration.
	ErrDisabled = errors.New("backups are disabled")

	// ErrNotFound matches any NotFoundError via errors.Is.
	ErrNotFound = errors.New("backup not found")

	// ErrInvalidManifest is returned when a manifest cannot be decrypted
	// or parsed.
	ErrInvalidManifest = errors.New("invalid backup manifest")

	// ErrUnknownComponent is returned when a manifest names a component
	// the vault has no adapter for.
	ErrUnknownComponent = errors.New("unknown backup component")
)

// NotFoundError identifies the missing backup.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("backup not found: %s", e.ID)
}

// Is reports whether target is ErrNotFound, so callers can use
// errors.Is(err, ErrNotFound) without unwrapping the ID.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
