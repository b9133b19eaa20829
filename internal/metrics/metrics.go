// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

// Package metrics provides the metrics-sink capability consumed by the vault
// and scheduler. The sink is injected at construction instead of living as a
// process-wide singleton, so tests can assert emitted events without
// touching global state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation identifies a vault operation reported to the sink.
type Operation string

const (
	OpBackup  Operation = "backup"
	OpRestore Operation = "restore"
	OpList    Operation = "list"
	OpDelete  Operation = "delete"
)

// Status is the outcome of an operation or component step.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Sink receives operation outcomes from the vault and scheduler.
type Sink interface {
	// ObserveOperation records a completed top-level vault operation.
	ObserveOperation(op Operation, status Status, sizeBytes int64, duration time.Duration)

	// ObserveComponent records one component step within a backup or restore.
	ObserveComponent(op Operation, component string, status Status, sizeBytes int64, duration time.Duration)

	// AddRetentionEvictions records backups deleted by retention enforcement.
	AddRetentionEvictions(count int)
}

// PrometheusSink implements Sink with Prometheus collectors registered on a
// caller-supplied registerer.
type PrometheusSink struct {
	operationDuration *prometheus.HistogramVec
	operationBytes    *prometheus.CounterVec
	componentDuration *prometheus.HistogramVec
	componentBytes    *prometheus.CounterVec
	retentionEvicted  prometheus.Counter
}

// NewPrometheusSink creates a sink registered on reg. Pass
// prometheus.DefaultRegisterer for process-wide exposition.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)

	return &PrometheusSink{
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vault_operation_duration_seconds",
				Help:    "Duration of vault operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}, // Backups can take minutes
			},
			[]string{"operation", "status"},
		),
		operationBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_operation_bytes_total",
				Help: "Total bytes processed by vault operations",
			},
			[]string{"operation"},
		),
		componentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vault_component_duration_seconds",
				Help:    "Duration of per-component backup and restore steps in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "component", "status"},
		),
		componentBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_component_bytes_total",
				Help: "Total bytes written or restored per component",
			},
			[]string{"operation", "component"},
		),
		retentionEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_retention_evicted_total",
				Help: "Total backups deleted by retention enforcement",
			},
		),
	}
}

// ObserveOperation implements Sink.
func (s *PrometheusSink) ObserveOperation(op Operation, status Status, sizeBytes int64, duration time.Duration) {
	s.operationDuration.WithLabelValues(string(op), string(status)).Observe(duration.Seconds())
	if sizeBytes > 0 {
		s.operationBytes.WithLabelValues(string(op)).Add(float64(sizeBytes))
	}
}

// ObserveComponent implements Sink.
func (s *PrometheusSink) ObserveComponent(op Operation, component string, status Status, sizeBytes int64, duration time.Duration) {
	s.componentDuration.WithLabelValues(string(op), component, string(status)).Observe(duration.Seconds())
	if sizeBytes > 0 {
		s.componentBytes.WithLabelValues(string(op), component).Add(float64(sizeBytes))
	}
}

// AddRetentionEvictions implements Sink.
func (s *PrometheusSink) AddRetentionEvictions(count int) {
	s.retentionEvicted.Add(float64(count))
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) ObserveOperation(Operation, Status, int64, time.Duration)         {}
func (NopSink) ObserveComponent(Operation, string, Status, int64, time.Duration) {}
func (NopSink) AddRetentionEvictions(int)                                        {}
