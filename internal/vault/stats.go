// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package vault

import "time"

// Stats summarizes the backups currently on disk.
type Stats struct {
	Count          int        `json:"count"`
	TotalSizeBytes uint64     `json:"total_size_bytes"`
	Newest         *time.Time `json:"newest,omitempty"`
	Oldest         *time.Time `json:"oldest,omitempty"`
}

// Stats scans the backup directory and aggregates manifest data. Backups
// with unreadable manifests are excluded, same as in ListBackups.
func (v *Vault) Stats() (*Stats, error) {
	manifests, err := v.ListBackups()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Count: len(manifests)}
	for _, m := range manifests {
		stats.TotalSizeBytes += m.SizeBytes
	}

	if len(manifests) > 0 {
		// ListBackups sorts newest first.
		newest := manifests[0].Timestamp
		oldest := manifests[len(manifests)-1].Timestamp
		stats.Newest = &newest
		stats.Oldest = &oldest
	}

	return stats, nil
}
