// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusSinkRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.ObserveOperation(OpBackup, StatusOK, 1024, 50*time.Millisecond)
	sink.ObserveComponent(OpBackup, "relational_store", StatusOK, 512, 10*time.Millisecond)
	sink.AddRetentionEvictions(2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	want := map[string]bool{
		"vault_operation_duration_seconds": false,
		"vault_operation_bytes_total":      false,
		"vault_component_duration_seconds": false,
		"vault_component_bytes_total":      false,
		"vault_retention_evicted_total":    false,
	}
	for _, mf := range families {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric family %s not registered", name)
		}
	}
}

func TestPrometheusSinkSkipsZeroBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	// Zero-byte observations must not create byte counter series.
	sink.ObserveOperation(OpList, StatusOK, 0, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "vault_operation_bytes_total" && len(mf.GetMetric()) > 0 {
			t.Error("expected no byte counter series for zero-size operation")
		}
	}
}

func TestRecorderCapturesEvents(t *testing.T) {
	rec := NewRecorder()

	rec.ObserveOperation(OpBackup, StatusOK, 100, time.Second)
	rec.ObserveComponent(OpBackup, "memory_index", StatusFailed, 0, time.Millisecond)
	rec.AddRetentionEvictions(1)
	rec.AddRetentionEvictions(3)

	ops := rec.Operations()
	if len(ops) != 1 || ops[0].Op != OpBackup || ops[0].SizeBytes != 100 {
		t.Errorf("unexpected operations: %+v", ops)
	}

	comps := rec.Components()
	if len(comps) != 1 || comps[0].Component != "memory_index" || comps[0].Status != StatusFailed {
		t.Errorf("unexpected components: %+v", comps)
	}

	if rec.Evictions() != 4 {
		t.Errorf("expected 4 evictions, got %d", rec.Evictions())
	}
}
