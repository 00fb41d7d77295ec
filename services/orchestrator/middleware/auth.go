// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the orchestrator service.
//
// Two distinct authentication surfaces exist and must never be confused:
//
//   - Browser endpoints (/chat, polling, debug) authenticate via the
//     session cookie issued by /login. SessionAuth resolves the cookie
//     through the sessions.Store and puts the User in the Gin context.
//   - The webhook endpoint (/servicenow/callback) authenticates the
//     provider with a shared basic-auth credential pair. WebhookBasicAuth
//     compares both values in constant time. The browser session
//     mechanism is never accepted there.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/awnumar/memguard"
	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/sessions"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "session_id"

// userKey is the context key for the authenticated user.
const userKey = "helpdesk_user"

// SetUser stores the authenticated user in the Gin context. Called by
// SessionAuth after a successful lookup.
func SetUser(c *gin.Context, user sessions.User) {
	c.Set(userKey, user)
}

// CurrentUser retrieves the authenticated user placed by SessionAuth.
func CurrentUser(c *gin.Context) (sessions.User, bool) {
	if v, exists := c.Get(userKey); exists {
		if user, ok := v.(sessions.User); ok {
			return user, true
		}
	}
	return sessions.User{}, false
}

// SessionAuth authenticates browser requests via the session cookie.
// Missing, unknown, or expired tokens get a 401 JSON error.
func SessionAuth(store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, ok := store.Lookup(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		SetUser(c, user)
		c.Next()
	}
}

// WebhookBasicAuth authenticates the callback webhook against the
// configured shared credential pair. The expected password lives in a
// memguard enclave and is only opened for the comparison. Both the
// username and password checks are constant-time so a caller cannot
// distinguish which half was wrong by timing.
func WebhookBasicAuth(username string, password *memguard.Enclave) gin.HandlerFunc {
	return func(c *gin.Context) {
		gotUser, gotPass, ok := c.Request.BasicAuth()
		if !ok {
			unauthorized(c)
			return
		}

		expected, err := password.Open()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "credential check failed"})
			return
		}
		userOK := subtle.ConstantTimeCompare([]byte(gotUser), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(gotPass), expected.Bytes()) == 1
		expected.Destroy()

		if !userOK || !passOK {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Basic")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
}

// CORS returns a permissive CORS middleware matching the reference
// deployment, where the chat frontend may be served from another origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
