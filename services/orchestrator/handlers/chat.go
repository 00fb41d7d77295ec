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
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianHelpdesk/services/llm"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianHelpdesk/services/servicenow"
)

var chatTracer = otel.Tracer("helpdesk.orchestrator.handlers")

// Gateway is the slice of the servicenow client the chat handler depends
// on. Narrowed to an interface so tests can stub the provider.
type Gateway interface {
	Dispatch(ctx context.Context, message, clientSessionID string) (*servicenow.Accepted, error)
}

// HandleChat routes a user message either to the asynchronous ServiceNow
// Virtual Agent or to the direct LLM completion, depending on the
// use_servicenow flag in the request body.
func HandleChat(llmClient llm.LLMClient, gateway Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Error("Chat request failed validation", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		if req.UseServiceNow {
			dispatchServiceNow(ctx, c, gateway, req)
			return
		}

		answer, err := llmClient.Generate(ctx, req.Message, llm.GenerationParams{})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("LLM completion failed", "error", err)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordDispatch(observability.BackendLLM, false)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if m := observability.DefaultMetrics; m != nil {
			m.RecordDispatch(observability.BackendLLM, true)
		}
		c.JSON(http.StatusOK, gin.H{"response": answer})
	}
}

func dispatchServiceNow(ctx context.Context, c *gin.Context, gateway Gateway, req datatypes.ChatRequest) {
	start := time.Now()
	accepted, err := gateway.Dispatch(ctx, req.Message, req.SessionID)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		slog.Error("ServiceNow dispatch failed", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordDispatch(observability.BackendServiceNow, false)
			m.ObserveProviderLatency(elapsed, false)
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "ServiceNow API Error: " + err.Error(),
		})
		return
	}

	if m := observability.DefaultMetrics; m != nil {
		m.RecordDispatch(observability.BackendServiceNow, true)
		m.ObserveProviderLatency(elapsed, true)
	}
	slog.Info("ServiceNow dispatch accepted",
		"request_id", accepted.RequestID,
		"immediate_fragments", len(accepted.Fragments),
	)
	c.JSON(http.StatusOK, gin.H{
		"servicenow_response": datatypes.ServiceNowAccepted{
			Status:    "success",
			RequestID: accepted.RequestID,
		},
	})
}
