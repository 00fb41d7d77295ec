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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/store"
	"github.com/AleutianAI/AleutianHelpdesk/services/servicenow"
)

// HandlePoll lets the browser read a conversation's pending buffer.
//
// Only content fragments (OutputCard, Picker, OutputText) are returned;
// the ActionMsg progress trail stays server-side. With ?acknowledge=true
// a non-empty content result drains the buffer after it is copied, so
// acknowledged content is seen exactly once. An empty result never drains
// regardless of acknowledge, which keeps an in-flight status trail alive
// and makes un-acknowledged polls safely repeatable. Unknown request ids
// answer an empty body, not an error.
func HandlePoll(pending store.PendingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("requestId")
		acknowledge, _ := strconv.ParseBool(c.DefaultQuery("acknowledge", "false"))

		fragments := pending.Get(requestID)
		content := servicenow.ContentOnly(fragments)

		if acknowledge && len(content) > 0 {
			pending.Drain(requestID)
			slog.Info("Pending buffer drained after acknowledgment", "request_id", requestID)
			if m := observability.DefaultMetrics; m != nil {
				m.DrainsTotal.Inc()
				m.PendingBuffers.Set(float64(pending.Len()))
			}
		}

		slog.Debug("Poll served",
			"request_id", requestID,
			"acknowledge", acknowledge,
			"content_fragments", len(content),
			"buffered_fragments", len(fragments),
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordPoll(len(content) > 0, acknowledge)
		}

		c.JSON(http.StatusOK, gin.H{
			"servicenow_response": gin.H{
				"status": "success",
				"body":   content,
			},
		})
	}
}

// HandleDebugPending exposes the full unfiltered buffer map, ActionMsg
// trails included. Diagnostic only; session-authenticated like the rest
// of the browser surface.
func HandleDebugPending(pending store.PendingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot := pending.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"pending_responses": snapshot,
			"count":             len(snapshot),
		})
	}
}
