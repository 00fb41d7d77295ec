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
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/store"
	"github.com/AleutianAI/AleutianHelpdesk/services/servicenow"
)

// HandleCallback is the inbound webhook the Virtual Agent delivers answer
// fragments to. Per-conversation state only moves forward: no buffer →
// status trail → content; a fresh content fragment resets the buffer to a
// new answer (the fold encodes those transitions).
//
// Deliberate softness: a missing requestId answers HTTP 200 with a
// structured {status:"error"} body so the provider does not retry a
// delivery we can never correlate. Unknown top-level fields are ignored.
// A scalar or object body is coerced into a single OutputText fragment.
func HandleCallback(pending store.PendingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			slog.Error("Failed to read callback body", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		slog.Info("ServiceNow callback received", "body_bytes", len(raw))

		var envelope datatypes.CallbackEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			slog.Error("Failed to parse callback JSON", "error", err)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordCallback("invalid")
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
			return
		}

		if envelope.RequestID == "" {
			slog.Warn("Callback carried no requestId, dropping delivery")
			if m := observability.DefaultMetrics; m != nil {
				m.RecordCallback("missing_request_id")
			}
			c.JSON(http.StatusOK, gin.H{"status": "error", "message": "no requestId in callback"})
			return
		}

		incoming := parseCallbackFragments(envelope.Body)
		if len(incoming) == 0 {
			// Nothing to fold; still a successful delivery.
			if m := observability.DefaultMetrics; m != nil {
				m.RecordCallback("empty")
			}
			c.JSON(http.StatusOK, gin.H{"status": "success"})
			return
		}

		folded := servicenow.Fold(pending.Get(envelope.RequestID), incoming)
		pending.Put(envelope.RequestID, folded)

		slog.Info("Callback fragments folded into pending buffer",
			"request_id", envelope.RequestID,
			"incoming", len(incoming),
			"buffer_size", len(folded),
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordCallback("stored")
			m.PendingBuffers.Set(float64(pending.Len()))
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

// parseCallbackFragments turns the raw callback body into fragments. A
// JSON array parses element-wise, skipping non-objects; a missing/null
// body yields nothing; any other JSON shape is coerced into one
// OutputText fragment carrying its string rendering.
func parseCallbackFragments(raw json.RawMessage) []servicenow.Fragment {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '[' {
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return []servicenow.Fragment{servicenow.TextFragment(string(trimmed))}
		}
		fragments := make([]servicenow.Fragment, 0, len(elements))
		for _, element := range elements {
			var frag servicenow.Fragment
			if err := json.Unmarshal(element, &frag); err != nil {
				continue
			}
			fragments = append(fragments, frag)
		}
		return fragments
	}

	slog.Warn("Callback body is not a fragment list, coercing to text")
	return []servicenow.Fragment{servicenow.TextFragment(renderScalar(trimmed))}
}

// renderScalar gives a best-effort string form of a non-list body: bare
// JSON strings lose their quotes, everything else keeps its JSON text.
func renderScalar(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return string(raw)
}
