// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ttl expires state the helpdesk accumulates in memory: pending
// ServiceNow response buffers that were never polled, and login sessions
// past their idle window. Without it an abandoned browser tab leaks a
// buffer forever.
package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/sessions"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/store"
)

// =============================================================================
// Sweeper Configuration
// =============================================================================

// SweeperConfig holds configuration for the background TTL sweeper.
//
// # Fields
//
//   - Interval: How often to run sweep cycles. Default: 5 minutes.
//   - Retention: How long an unpolled response buffer is kept. Default: 1 hour.
type SweeperConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// DefaultSweeperConfig returns production defaults: sweep every 5 minutes,
// keep unclaimed response buffers for 1 hour.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  5 * time.Minute,
		Retention: 1 * time.Hour,
	}
}

// SweepResult summarizes a single sweep cycle.
type SweepResult struct {
	BuffersSwept  int
	SessionsSwept int
	StartTime     time.Time
	EndTime       time.Time
}

// DurationMs returns the cycle duration in milliseconds.
func (r SweepResult) DurationMs() int64 {
	return r.EndTime.Sub(r.StartTime).Milliseconds()
}

// =============================================================================
// Sweeper Implementation
// =============================================================================

// Sweeper periodically drops expired pending-response buffers and login
// sessions. Uses the ticker + done channel pattern for graceful shutdown.
//
// # Thread Safety
//
// All public methods are thread-safe. Only one sweeper should run per
// orchestrator instance.
type Sweeper struct {
	pending  *store.Memory
	sessions *sessions.Memory
	config   SweeperConfig
	now      func() time.Time
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewSweeper creates a sweeper over the given stores.
//
// # Inputs
//
//   - pending: Pending-response buffer store to expire.
//   - sessions: Login session store to expire. May be nil.
//   - config: Sweep interval and buffer retention.
//
// # Outputs
//
//   - *Sweeper: Ready to Start().
func NewSweeper(pending *store.Memory, sess *sessions.Memory, config SweeperConfig) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	if config.Retention <= 0 {
		config.Retention = DefaultSweeperConfig().Retention
	}
	return &Sweeper{
		pending:  pending,
		sessions: sess,
		config:   config,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep loop. Returns an error if the sweeper
// is already running. The loop stops when Stop() is called or the context
// is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // Reset done channel for potential restart
	s.mu.Unlock()

	slog.Info("TTL sweeper starting",
		"interval", s.config.Interval.String(),
		"retention", s.config.Retention.String(),
	)

	go s.runLoop(ctx)
	return nil
}

// Stop signals the sweep loop to exit. Safe to call multiple times.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil // Already stopped
	}

	slog.Info("TTL sweeper stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow performs a single sweep cycle immediately without waiting for the
// next scheduled tick. Useful for manual invocation or testing.
func (s *Sweeper) RunNow() SweepResult {
	return s.sweep()
}

// runLoop runs sweep cycles at the configured interval until stopped.
func (s *Sweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("TTL sweeper stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("TTL sweeper stopped (stop requested)")
			return
		case <-ticker.C:
			s.executeSweep()
		}
	}
}

// executeSweep wraps sweep with logging so a noisy cycle never crashes
// the loop.
func (s *Sweeper) executeSweep() {
	result := s.sweep()

	// Only log if something was dropped
	if result.BuffersSwept > 0 || result.SessionsSwept > 0 {
		slog.Info("TTL sweep cycle completed",
			"buffers_swept", result.BuffersSwept,
			"sessions_swept", result.SessionsSwept,
			"duration_ms", result.DurationMs(),
		)
	} else {
		slog.Debug("TTL sweep cycle completed (nothing expired)")
	}
}

// sweep drops pending buffers older than the retention window and any
// expired sessions, then updates the gauges.
func (s *Sweeper) sweep() SweepResult {
	result := SweepResult{StartTime: s.now()}

	cutoff := s.now().Add(-s.config.Retention)
	swept := s.pending.SweepOlderThan(cutoff)
	result.BuffersSwept = len(swept)
	for _, requestID := range swept {
		slog.Debug("expired pending response buffer dropped", "request_id", requestID)
	}

	if s.sessions != nil {
		result.SessionsSwept = s.sessions.SweepExpired()
	}

	if m := observability.DefaultMetrics; m != nil {
		m.SweptBuffersTotal.Add(float64(result.BuffersSwept))
		m.PendingBuffers.Set(float64(s.pending.Len()))
	}

	result.EndTime = s.now()
	return result
}
