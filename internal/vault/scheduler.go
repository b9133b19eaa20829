// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package vault

import (
	"context"
	"sync"
	"time"

	"github.com/jmorrow84/snapvault/internal/logging"
)

// ScheduleConfig holds the scheduler's settings. It can be swapped at
// runtime via Scheduler.UpdateConfig; the loop picks up changes at the
// start of each cycle.
type ScheduleConfig struct {
	// Enabled gates automatic backups. When false the loop idles,
	// re-checking every PollInterval.
	Enabled bool

	// Interval is the time between automatic backups.
	Interval time.Duration

	// PollInterval bounds how long a disabled loop sleeps before
	// re-reading its config.
	PollInterval time.Duration
}

// defaultPollInterval is used when ScheduleConfig.PollInterval is unset.
const defaultPollInterval = time.Minute

// Scheduler runs vault backups at a configurable interval.
type Scheduler struct {
	vault *Vault

	cfgMu sync.RWMutex
	cfg   ScheduleConfig

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(v *Vault, cfg ScheduleConfig) *Scheduler {
	return &Scheduler{vault: v, cfg: cfg}
}

// Start launches the scheduling loop. Calling Start on a running
// scheduler logs a warning and does nothing else.
func (s *Scheduler) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		logging.Warn().Msg("Backup scheduler already running")
		return
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)

	logging.Info().Msg("Backup scheduler started")
}

// Stop signals the loop to exit and waits for it. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	done := s.done
	close(s.stop)
	s.runMu.Unlock()

	// Wait outside the lock so Running and Start stay responsive while
	// an in-flight backup finishes.
	<-done

	logging.Info().Msg("Backup scheduler stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// UpdateConfig swaps the schedule settings. The running loop applies them
// at the start of its next cycle without a restart.
func (s *Scheduler) UpdateConfig(cfg ScheduleConfig) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	logging.Info().
		Bool("enabled", cfg.Enabled).
		Dur("interval", cfg.Interval).
		Msg("Backup schedule updated")
}

// TriggerBackup runs one backup synchronously, outside the schedule.
func (s *Scheduler) TriggerBackup(ctx context.Context) (*Manifest, error) {
	return s.vault.CreateBackup(ctx, nil)
}

// run is the scheduling loop. Each cycle re-reads the config so interval
// and enabled changes take effect without restart.
func (s *Scheduler) run(stop, done chan struct{}) {
	defer close(done)

	for {
		s.cfgMu.RLock()
		cfg := s.cfg
		s.cfgMu.RUnlock()

		if !cfg.Enabled {
			poll := cfg.PollInterval
			if poll <= 0 {
				poll = defaultPollInterval
			}
			if !sleepOrStop(stop, poll) {
				return
			}
			continue
		}

		if !sleepOrStop(stop, cfg.Interval) {
			return
		}

		manifest, err := s.vault.CreateBackup(context.Background(), nil)
		if err != nil {
			logging.Error().Err(err).Msg("Scheduled backup failed")
			continue
		}
		logging.Info().Str("backup_id", manifest.BackupID).Msg("Scheduled backup completed")
	}
}

// sleepOrStop waits for d or until stop closes. It returns false when
// the scheduler is stopping.
func sleepOrStop(stop chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

// Serve runs the scheduler under a supervision tree. It blocks until ctx
// is cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *Scheduler) String() string {
	return "backup-scheduler"
}
