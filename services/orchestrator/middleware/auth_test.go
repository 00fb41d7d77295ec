// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/awnumar/memguard"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/sessions"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func newSessionRouter(store sessions.Store) *gin.Engine {
	router := gin.New()
	router.GET("/protected", SessionAuth(store), func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"username": user.Username})
	})
	return router
}

// =============================================================================
// SessionAuth Tests
// =============================================================================

func TestSessionAuth_ValidCookie(t *testing.T) {
	store := sessions.NewMemory(30 * time.Minute)
	token := store.Create(sessions.User{Username: "alice"})
	router := newSessionRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestSessionAuth_MissingCookie(t *testing.T) {
	router := newSessionRouter(sessions.NewMemory(30 * time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
}

func TestSessionAuth_UnknownToken(t *testing.T) {
	router := newSessionRouter(sessions.NewMemory(30 * time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "forged-token"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAuth_DeletedSessionRejected(t *testing.T) {
	store := sessions.NewMemory(30 * time.Minute)
	token := store.Create(sessions.User{Username: "alice"})
	store.Delete(token)
	router := newSessionRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// =============================================================================
// WebhookBasicAuth Tests
// =============================================================================

func newWebhookRouter(username, password string) *gin.Engine {
	router := gin.New()
	enclave := memguard.NewEnclave([]byte(password))
	router.POST("/callback", WebhookBasicAuth(username, enclave), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})
	return router
}

func TestWebhookBasicAuth_ValidCredentials(t *testing.T) {
	router := newWebhookRouter("webhook-user", "webhook-pass")

	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	req.SetBasicAuth("webhook-user", "webhook-pass")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookBasicAuth_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "webhook-user", "guess"},
		{"wrong username", "other-user", "webhook-pass"},
		{"both wrong", "other-user", "guess"},
		{"empty credentials", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newWebhookRouter("webhook-user", "webhook-pass")

			req := httptest.NewRequest(http.MethodPost, "/callback", nil)
			req.SetBasicAuth(tt.username, tt.password)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Basic", w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestWebhookBasicAuth_NoAuthHeader(t *testing.T) {
	router := newWebhookRouter("webhook-user", "webhook-pass")

	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Basic", w.Header().Get("WWW-Authenticate"))
}

func TestWebhookBasicAuth_SessionCookieDoesNotCount(t *testing.T) {
	router := newWebhookRouter("webhook-user", "webhook-pass")

	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "some-valid-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// =============================================================================
// CORS Tests
// =============================================================================

func TestCORS_ReflectsOrigin(t *testing.T) {
	router := gin.New()
	router.Use(CORS())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	handlerRan := false
	router := gin.New()
	router.Use(CORS())
	router.OPTIONS("/ping", func(c *gin.Context) { handlerRan = true })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, handlerRan)
}
