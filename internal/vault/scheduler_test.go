// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package vault

import (
	"context"
	"testing"
	"time"
)

func countBackups(t *testing.T, v *Vault) int {
	t.Helper()
	list, err := v.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	return len(list)
}

func TestSchedulerRunsAtInterval(t *testing.T) {
	f := newVaultFixture(t, 100)

	s := NewScheduler(f.vault, ScheduleConfig{
		Enabled:      true,
		Interval:     100 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})
	s.Start()
	defer s.Stop()

	time.Sleep(250 * time.Millisecond)
	s.Stop()

	if n := countBackups(t, f.vault); n < 2 {
		t.Errorf("scheduler created %d backups in 250ms at 100ms interval, want >= 2", n)
	}
}

func TestSchedulerStopIsPrompt(t *testing.T) {
	f := newVaultFixture(t, 100)

	s := NewScheduler(f.vault, ScheduleConfig{
		Enabled:  true,
		Interval: time.Hour,
	})
	s.Start()

	start := time.Now()
	s.Stop()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Stop() took %v while sleeping on a 1h interval", elapsed)
	}
	if s.Running() {
		t.Error("scheduler still running after Stop()")
	}
}

func TestSchedulerDisabledDoesNotBackup(t *testing.T) {
	f := newVaultFixture(t, 100)

	s := NewScheduler(f.vault, ScheduleConfig{
		Enabled:      false,
		Interval:     10 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})
	s.Start()
	defer s.Stop()

	time.Sleep(150 * time.Millisecond)

	if n := countBackups(t, f.vault); n != 0 {
		t.Errorf("disabled scheduler created %d backups, want 0", n)
	}
}

func TestSchedulerLiveReconfig(t *testing.T) {
	f := newVaultFixture(t, 100)

	s := NewScheduler(f.vault, ScheduleConfig{
		Enabled:      false,
		PollInterval: 10 * time.Millisecond,
	})
	s.Start()
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	if n := countBackups(t, f.vault); n != 0 {
		t.Fatalf("scheduler created %d backups while disabled", n)
	}

	s.UpdateConfig(ScheduleConfig{
		Enabled:      true,
		Interval:     30 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})

	time.Sleep(200 * time.Millisecond)

	if n := countBackups(t, f.vault); n < 1 {
		t.Error("scheduler did not pick up enabled config without restart")
	}
}

func TestSchedulerStartIdempotent(t *testing.T) {
	f := newVaultFixture(t, 100)

	s := NewScheduler(f.vault, ScheduleConfig{Enabled: true, Interval: time.Hour})
	s.Start()
	s.Start() // warns, does not spawn a second loop
	if !s.Running() {
		t.Error("scheduler not running after Start()")
	}

	s.Stop()
	s.Stop() // no-op
	if s.Running() {
		t.Error("scheduler running after Stop()")
	}
}

func TestTriggerBackupSynchronous(t *testing.T) {
	f := newVaultFixture(t, 100)

	s := NewScheduler(f.vault, ScheduleConfig{Enabled: false, PollInterval: time.Hour})

	manifest, err := s.TriggerBackup(context.Background())
	if err != nil {
		t.Fatalf("TriggerBackup() error = %v", err)
	}
	if manifest == nil || manifest.BackupID == "" {
		t.Fatal("TriggerBackup() returned no manifest")
	}

	list, err := f.vault.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(list) != 1 || list[0].BackupID != manifest.BackupID {
		t.Error("triggered backup is not listed")
	}
}

func TestSchedulerServeStopsOnCancel(t *testing.T) {
	f := newVaultFixture(t, 100)

	s := NewScheduler(f.vault, ScheduleConfig{Enabled: true, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	// Give Serve time to start the loop.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve() returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if s.Running() {
		t.Error("scheduler still running after Serve() returned")
	}
}
