// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response types for the
// orchestrator's HTTP surface.
package datatypes

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// MaxMessageBytes is the maximum size of a single chat message. Checks
// byte length, not rune count, to bound memory for large payloads.
const MaxMessageBytes = 32 * 1024

// chatValidate is the validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageBytes
}

// =============================================================================
// Chat Request / Response
// =============================================================================

// ChatRequest is the POST /chat body.
//
// # Fields
//
//   - Message: Required. The user's message text, max 32KB.
//   - SessionID: Caller-supplied conversation id. May be empty; the
//     gateway truncates it for provider compatibility.
//   - UseServiceNow: Routes the message to the Virtual Agent integration
//     instead of the direct LLM completion.
type ChatRequest struct {
	Message       string `json:"message" validate:"required,maxbytes"`
	SessionID     string `json:"session_id"`
	UseServiceNow bool   `json:"use_servicenow"`
}

// Validate checks the request against its validator tags. Call after
// binding the JSON body.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ServiceNowAccepted is the VA-path chat response payload: the provider
// accepted the request and will answer under RequestID via callback.
type ServiceNowAccepted struct {
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
}

// =============================================================================
// Login
// =============================================================================

// LoginRequest is the POST /login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate checks the request against its validator tags.
func (r *LoginRequest) Validate() error {
	return chatValidate.Struct(r)
}

// =============================================================================
// Callback Envelope
// =============================================================================

// CallbackEnvelope is the inbound webhook body. Only the fields the
// ingress needs are declared; unknown top-level fields from the provider
// are tolerated and ignored by encoding/json.
//
// Body stays raw because the provider sends either a fragment array or,
// on some paths, a bare scalar/object that the ingress coerces into a
// single text fragment.
type CallbackEnvelope struct {
	RequestID       string          `json:"requestId"`
	ClientSessionID string          `json:"clientSessionId"`
	Body            json.RawMessage `json:"body"`
}
