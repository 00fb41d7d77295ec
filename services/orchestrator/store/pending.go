// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the pending-response store: the per-conversation
// buffer of Virtual Agent fragments awaiting browser pickup.
//
// # Description
//
// The store maps a dispatch request id to the fragment buffer produced by
// the servicenow classifier. Callback ingress overwrites the buffer with
// each fold result; poll egress drains it on acknowledgment. The store
// itself does no merging, that already happened in the fold.
//
// # Invariants
//
//   - At most one buffer per request id; absent and drained are the same
//     state, there is no tombstone.
//   - Get never mutates.
//   - Drain is idempotent: draining an absent id is a no-op.
//
// # Thread Safety
//
// Put, Get, and Drain on the same request id are mutually exclusive via a
// single RWMutex. No ordering is guaranteed across different request ids.
//
// # Limitations
//
//   - Memory-only: buffers are lost on process restart, and buffers are
//     not shared across instances. Both are deliberate scope limits.
package store

import (
	"sync"
	"time"

	"github.com/AleutianAI/AleutianHelpdesk/services/servicenow"
)

// PendingStore is the injectable buffer abstraction used by callback
// ingress, poll egress, and the debug endpoint.
type PendingStore interface {
	// Put stores fragments as the buffer for requestID, replacing any
	// prior value. The fold result is stored as-is.
	Put(requestID string, fragments []servicenow.Fragment)

	// Get returns the current buffer, or an empty slice when absent.
	Get(requestID string) []servicenow.Fragment

	// Drain removes the buffer entirely. No-op for unknown ids.
	Drain(requestID string)

	// Snapshot returns a copy of every buffer, unfiltered. Diagnostic
	// use only.
	Snapshot() map[string][]servicenow.Fragment

	// Len returns the number of buffered request ids.
	Len() int
}

type entry struct {
	fragments []servicenow.Fragment
	storedAt  time.Time
}

// Memory is the in-process PendingStore implementation.
type Memory struct {
	mu      sync.RWMutex
	buffers map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory pending store.
func NewMemory() *Memory {
	return NewMemoryAt(time.Now)
}

// NewMemoryAt creates a pending store driven by the given clock. Lets
// tests and the sweeper control buffer aging deterministically.
func NewMemoryAt(now func() time.Time) *Memory {
	return &Memory{
		buffers: make(map[string]entry),
		now:     now,
	}
}

func (m *Memory) Put(requestID string, fragments []servicenow.Fragment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Keep the original arrival time across overwrites so TTL eviction
	// measures age of the conversation, not of the latest fragment.
	storedAt := m.now()
	if prev, ok := m.buffers[requestID]; ok {
		storedAt = prev.storedAt
	}
	m.buffers[requestID] = entry{fragments: fragments, storedAt: storedAt}
}

func (m *Memory) Get(requestID string) []servicenow.Fragment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buf, ok := m.buffers[requestID]
	if !ok {
		return []servicenow.Fragment{}
	}
	out := make([]servicenow.Fragment, len(buf.fragments))
	copy(out, buf.fragments)
	return out
}

func (m *Memory) Drain(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, requestID)
}

func (m *Memory) Snapshot() map[string][]servicenow.Fragment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string][]servicenow.Fragment, len(m.buffers))
	for id, buf := range m.buffers {
		out := make([]servicenow.Fragment, len(buf.fragments))
		copy(out, buf.fragments)
		snapshot[id] = out
	}
	return snapshot
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buffers)
}

// SweepOlderThan drains every buffer stored before cutoff and returns the
// drained request ids. Called by the TTL sweeper; the reference behavior
// kept unacknowledged buffers forever, which is an unbounded leak.
func (m *Memory) SweepOlderThan(cutoff time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var drained []string
	for id, buf := range m.buffers {
		if buf.storedAt.Before(cutoff) {
			delete(m.buffers, id)
			drained = append(drained, id)
		}
	}
	return drained
}
