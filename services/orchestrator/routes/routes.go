// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/awnumar/memguard"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianHelpdesk/services/llm"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/sessions"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/store"
)

// Deps carries everything the route handlers need. All fields are
// injected so the whole surface can be exercised in tests without
// process-global state.
type Deps struct {
	LLM         llm.LLMClient
	Gateway     handlers.Gateway
	Pending     store.PendingStore
	Sessions    sessions.Store
	Credentials sessions.Credentials

	// Webhook shared credential pair for the callback endpoint.
	CallbackUsername string
	CallbackPassword *memguard.Enclave
}

// SetupRoutes registers the full HTTP surface.
//
// Three authentication zones: unauthenticated (health, metrics, login),
// browser session cookie (chat, polling, debug), and the webhook's basic
// auth. The two poll routes are deliberately equivalent aliases.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(middleware.CORS())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/login", handlers.HandleLogin(deps.Credentials, deps.Sessions))
	router.POST("/logout", handlers.HandleLogout(deps.Sessions))

	// Webhook: basic auth only, never the browser session mechanism.
	router.POST("/servicenow/callback",
		middleware.WebhookBasicAuth(deps.CallbackUsername, deps.CallbackPassword),
		handlers.HandleCallback(deps.Pending))

	authed := router.Group("/", middleware.SessionAuth(deps.Sessions))
	{
		authed.POST("/chat", handlers.HandleChat(deps.LLM, deps.Gateway))
		authed.GET("/servicenow/responses/:requestId", handlers.HandlePoll(deps.Pending))
		authed.GET("/poll/:requestId", handlers.HandlePoll(deps.Pending))
		authed.GET("/debug/pending_responses", handlers.HandleDebugPending(deps.Pending))
	}
}
