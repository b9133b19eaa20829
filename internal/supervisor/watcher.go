// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package supervisor

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/providers/file"

	"github.com/jmorrow84/snapvault/internal/logging"
)

// ConfigWatcher watches the config file and invokes a callback on every
// change. It runs as a supervised service so a broken watch is retried
// with backoff instead of silently dying.
type ConfigWatcher struct {
	path     string
	onChange func()
}

// NewConfigWatcher creates a watcher for path. onChange runs on the
// watcher's goroutine and should reload and swap state itself.
func NewConfigWatcher(path string, onChange func()) *ConfigWatcher {
	return &ConfigWatcher{path: path, onChange: onChange}
}

// Serve implements suture.Service. It blocks until ctx is cancelled.
func (w *ConfigWatcher) Serve(ctx context.Context) error {
	provider := file.Provider(w.path)

	err := provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			logging.Warn().Err(err).Str("path", w.path).Msg("Config watch event error")
			return
		}
		logging.Info().Str("path", w.path).Msg("Config file changed")
		w.onChange()
	})
	if err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", w.path, err)
	}
	defer provider.Unwatch() //nolint:errcheck // Shutdown path

	<-ctx.Done()
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (w *ConfigWatcher) String() string {
	return "config-watcher"
}
