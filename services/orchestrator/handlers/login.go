// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/sessions"
)

// sessionCookieMaxAge matches the session store TTL default.
const sessionCookieMaxAge = 1800 // seconds

// HandleLogin checks the submitted credentials and issues the session
// cookie the rest of the browser surface authenticates with.
func HandleLogin(creds sessions.Credentials, sessionStore sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.LoginRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		if !creds.Check(req.Username, req.Password) {
			slog.Warn("Login rejected", "username", req.Username)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}

		token := sessionStore.Create(sessions.User{Username: req.Username})
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookieName, token, sessionCookieMaxAge, "/", "", false, true)
		slog.Info("Login successful", "username", req.Username)
		c.JSON(http.StatusOK, gin.H{"message": "Login successful"})
	}
}

// HandleLogout deletes the caller's session and clears the cookie.
func HandleLogout(sessionStore sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(middleware.SessionCookieName); err == nil && token != "" {
			sessionStore.Delete(token)
		}
		c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}
