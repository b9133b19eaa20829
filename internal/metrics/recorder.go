// Snapvault - Encrypted Snapshot Backup and Recovery
// Copyright 2026 J. Morrow (jmorrow84)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmorrow84/snapvault

package metrics

import (
	"sync"
	"time"
)

// OperationEvent is a recorded ObserveOperation call.
type OperationEvent struct {
	Op        Operation
	Status    Status
	SizeBytes int64
	Duration  time.Duration
}

// ComponentEvent is a recorded ObserveComponent call.
type ComponentEvent struct {
	Op        Operation
	Component string
	Status    Status
	SizeBytes int64
	Duration  time.Duration
}

// Recorder implements Sink by recording every event, for test assertions.
type Recorder struct {
	mu         sync.Mutex
	operations []OperationEvent
	components []ComponentEvent
	evictions  int
}

// NewRecorder creates an empty recording sink.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveOperation implements Sink.
func (r *Recorder) ObserveOperation(op Operation, status Status, sizeBytes int64, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, OperationEvent{Op: op, Status: status, SizeBytes: sizeBytes, Duration: duration})
}

// ObserveComponent implements Sink.
func (r *Recorder) ObserveComponent(op Operation, component string, status Status, sizeBytes int64, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, ComponentEvent{Op: op, Component: component, Status: status, SizeBytes: sizeBytes, Duration: duration})
}

// AddRetentionEvictions implements Sink.
func (r *Recorder) AddRetentionEvictions(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictions += count
}

// Operations returns a copy of the recorded operation events.
func (r *Recorder) Operations() []OperationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OperationEvent, len(r.operations))
	copy(out, r.operations)
	return out
}

// Components returns a copy of the recorded component events.
func (r *Recorder) Components() []ComponentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ComponentEvent, len(r.components))
	copy(out, r.components)
	return out
}

// Evictions returns the total recorded retention evictions.
func (r *Recorder) Evictions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictions
}
