// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessions resolves the browser's identity from an opaque cookie
// token. The core only needs "resolve the current caller or reject"; this
// package is that collaborator, backed by an in-process map.
package sessions

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnauthorized indicates a missing, unknown, or expired session token.
var ErrUnauthorized = errors.New("sessions: unauthorized")

// User is the authenticated-caller marker stored against a session token.
type User struct {
	Username string `json:"username"`
}

// Store is the injectable session abstraction used by the auth middleware
// and the login/logout handlers.
type Store interface {
	// Create registers a session for user and returns the opaque token.
	Create(user User) string

	// Lookup resolves a token to its user. Expired sessions are removed
	// during the lookup and reported as not found.
	Lookup(token string) (User, bool)

	// Delete removes a session. No-op for unknown tokens.
	Delete(token string)
}

type record struct {
	user      User
	expiresAt time.Time
}

// Memory is the in-process Store implementation with per-session expiry.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]record
	ttl      time.Duration
	now      func() time.Time
}

// NewMemory creates a session store whose sessions expire ttl after
// creation.
func NewMemory(ttl time.Duration) *Memory {
	return NewMemoryAt(ttl, time.Now)
}

// NewMemoryAt creates a session store driven by the given clock. Lets
// tests control expiry deterministically.
func NewMemoryAt(ttl time.Duration, now func() time.Time) *Memory {
	return &Memory{
		sessions: make(map[string]record),
		ttl:      ttl,
		now:      now,
	}
}

func (m *Memory) Create(user User) string {
	token := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = record{user: user, expiresAt: m.now().Add(m.ttl)}
	return token
}

func (m *Memory) Lookup(token string) (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[token]
	if !ok {
		return User{}, false
	}
	if m.now().After(rec.expiresAt) {
		delete(m.sessions, token)
		return User{}, false
	}
	return rec.user, true
}

func (m *Memory) Delete(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// SweepExpired removes all expired sessions and returns how many were
// dropped. Called by the TTL sweeper so abandoned sessions do not
// accumulate between lookups.
func (m *Memory) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for token, rec := range m.sessions {
		if now.After(rec.expiresAt) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed
}
