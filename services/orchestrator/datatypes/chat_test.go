// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"
)

// =============================================================================
// ChatRequest Validation Tests
// =============================================================================

func TestChatRequest_Validate_Success(t *testing.T) {
	req := &ChatRequest{
		Message:       "my laptop is broken",
		SessionID:     "sess-1",
		UseServiceNow: true,
	}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestChatRequest_Validate_MinimalBody(t *testing.T) {
	req := &ChatRequest{Message: "hello"}

	if err := req.Validate(); err != nil {
		t.Errorf("session id and flag are optional, got error: %v", err)
	}
}

func TestChatRequest_Validate_MissingMessage(t *testing.T) {
	req := &ChatRequest{UseServiceNow: true}

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing message")
	}
}

func TestChatRequest_Validate_MessageAtLimit(t *testing.T) {
	req := &ChatRequest{Message: strings.Repeat("a", MaxMessageBytes)}

	if err := req.Validate(); err != nil {
		t.Errorf("message at the byte limit should validate, got error: %v", err)
	}
}

func TestChatRequest_Validate_MessageTooLarge(t *testing.T) {
	req := &ChatRequest{Message: strings.Repeat("a", MaxMessageBytes+1)}

	if err := req.Validate(); err == nil {
		t.Error("expected error for oversized message")
	}
}

func TestChatRequest_Validate_ByteLimitNotRuneLimit(t *testing.T) {
	// Multi-byte runes: rune count under the limit, byte count over.
	req := &ChatRequest{Message: strings.Repeat("→", MaxMessageBytes/3+1)}

	if err := req.Validate(); err == nil {
		t.Error("expected error: limit is bytes, not runes")
	}
}

// =============================================================================
// CallbackEnvelope Tests
// =============================================================================

func TestCallbackEnvelope_UnknownFieldsIgnored(t *testing.T) {
	raw := `{
		"requestId": "req-1",
		"clientSessionId": "sess-1",
		"nowBotId": "bot-7",
		"completed": true,
		"body": [{"uiType": "OutputText", "value": "hi"}]
	}`

	var envelope CallbackEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if envelope.RequestID != "req-1" {
		t.Errorf("expected requestId req-1, got %q", envelope.RequestID)
	}
	if len(envelope.Body) == 0 {
		t.Error("expected raw body to be captured")
	}
}

func TestCallbackEnvelope_BodyStaysRaw(t *testing.T) {
	raw := `{"requestId": "req-1", "body": "scalar answer"}`

	var envelope CallbackEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(envelope.Body) != `"scalar answer"` {
		t.Errorf("body must stay raw, got %s", envelope.Body)
	}
}

// =============================================================================
// LoginRequest Tests
// =============================================================================

func TestLoginRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     LoginRequest
		wantErr bool
	}{
		{"valid", LoginRequest{Username: "alice", Password: "pw"}, false},
		{"missing username", LoginRequest{Password: "pw"}, true},
		{"missing password", LoginRequest{Username: "alice"}, true},
		{"empty", LoginRequest{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
