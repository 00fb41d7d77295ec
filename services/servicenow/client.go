// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package servicenow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
)

const (
	// integrationPath is the Virtual Agent b2b integration endpoint.
	integrationPath = "/api/sn_va_as_service/bot/integration"

	// signatureHeader carries the HMAC signature computed by Sign.
	signatureHeader = "x-b2b-signature"

	// clientSessionIDMax is the provider's limit on the clientSessionId
	// field. A compatibility requirement, not a security control: longer
	// ids are truncated, shorter ones (including empty) pass through.
	clientSessionIDMax = 6

	// defaultTimeout bounds the outbound call when Config.Timeout is zero.
	defaultTimeout = 30 * time.Second
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds the ServiceNow gateway connection settings.
//
// Password and Token are held in memguard enclaves and only opened for the
// duration of a dispatch, so the plaintext secrets never sit in ordinary
// heap memory between requests.
type Config struct {
	// Instance is the provider host, e.g. "dev12345.service-now.com".
	Instance string

	// BaseURL overrides "https://<Instance>" when set. Used for local
	// mocks and tests.
	BaseURL string

	// Username for the integration endpoint's basic auth.
	Username string

	// Password enclave for the integration endpoint's basic auth.
	Password *memguard.Enclave

	// Token enclave holding the shared signing secret.
	Token *memguard.Enclave

	// UserID is the fixed provider-side account the conversation runs as.
	UserID string

	// Timeout bounds each outbound call. Zero means defaultTimeout.
	Timeout time.Duration
}

// BufferWriter receives immediate fragments when a provider answers
// synchronously in the dispatch response instead of via callback.
// Implemented by the orchestrator's pending store.
type BufferWriter interface {
	Put(requestID string, fragments []Fragment)
}

// =============================================================================
// Outcome Types
// =============================================================================

// Accepted is the successful dispatch outcome: the provider took the
// request and will answer under RequestID. Fragments is non-empty only
// when the provider answered synchronously in the dispatch response body.
type Accepted struct {
	RequestID string
	Fragments []Fragment
}

// ProviderError is the tagged failure outcome for anything that went wrong
// talking to the provider: transport failure, non-2xx status, or a
// malformed JSON response body. It never escapes the gateway as a panic or
// raw fault; the orchestrator surfaces it as a uniform error to the
// browser.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("servicenow: %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("servicenow: %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// =============================================================================
// Gateway Client
// =============================================================================

// Client dispatches user messages to the Virtual Agent integration
// endpoint. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	buffer     BufferWriter
}

// NewClient creates a gateway client. buffer may be nil when synchronous
// provider answers should be discarded rather than pre-populated.
func NewClient(cfg Config, buffer BufferWriter) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		buffer:     buffer,
	}
}

// envelope is the provider request shape. Field order matters: the struct
// is marshaled once and those exact bytes are canonicalized, signed, and
// sent, so the signature always matches what the provider receives.
type envelope struct {
	RequestID       string          `json:"requestId"`
	ClientSessionID string          `json:"clientSessionId"`
	NowSessionID    string          `json:"nowSessionId"`
	Message         envelopeMessage `json:"message"`
	UserID          string          `json:"userId"`
}

type envelopeMessage struct {
	Text            string `json:"text"`
	Typed           bool   `json:"typed"`
	ClientMessageID string `json:"clientMessageId"`
}

// Dispatch sends one user message to the Virtual Agent and returns the
// accepted request id. The answer normally arrives later through the
// callback webhook; some provider configurations answer synchronously, in
// which case the response fragments are folded and written to the buffer
// under the new request id before returning.
//
// All provider failures come back as *ProviderError. A payload that cannot
// be signed comes back wrapping ErrSignature and must not be retried.
func (c *Client) Dispatch(ctx context.Context, message, clientSessionID string) (*Accepted, error) {
	requestID := uuid.NewString()
	clientMessageID := newClientMessageID()

	env := envelope{
		RequestID:       requestID,
		ClientSessionID: truncateSessionID(clientSessionID),
		NowSessionID:    "",
		Message: envelopeMessage{
			Text:            message,
			Typed:           true,
			ClientMessageID: clientMessageID,
		},
		UserID: c.cfg.UserID,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal dispatch envelope: %w", err)
	}

	signature, err := c.sign(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, signature)
	if err := c.setBasicAuth(req); err != nil {
		return nil, err
	}

	slog.Info("Dispatching message to ServiceNow VA",
		"request_id", requestID,
		"client_message_id", clientMessageID,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("ServiceNow dispatch failed", "request_id", requestID, "error", err)
		return nil, &ProviderError{Op: "dispatch", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Op: "read response", Err: err}
	}

	slog.Info("ServiceNow dispatch response",
		"request_id", requestID,
		"status", resp.StatusCode,
		"body_bytes", len(respBody),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Op:         "dispatch",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("provider returned %s", resp.Status),
		}
	}

	accepted := &Accepted{RequestID: requestID}

	// Some provider configurations answer in the dispatch response itself
	// rather than via callback. Fold those fragments and pre-populate the
	// buffer so polling works identically for both delivery modes.
	fragments, err := parseImmediateFragments(respBody)
	if err != nil {
		return nil, &ProviderError{Op: "decode response", Err: err}
	}
	if len(fragments) > 0 {
		accepted.Fragments = Fold(nil, fragments)
		if c.buffer != nil {
			c.buffer.Put(requestID, accepted.Fragments)
		}
	}

	return accepted, nil
}

func (c *Client) endpoint() string {
	if c.cfg.BaseURL != "" {
		return strings.TrimSuffix(c.cfg.BaseURL, "/") + integrationPath
	}
	return "https://" + c.cfg.Instance + integrationPath
}

// sign opens the token enclave just long enough to compute the signature.
func (c *Client) sign(payload []byte) (string, error) {
	token, err := c.cfg.Token.Open()
	if err != nil {
		return "", fmt.Errorf("open signing token: %w", err)
	}
	defer token.Destroy()
	return Sign(payload, token.Bytes())
}

func (c *Client) setBasicAuth(req *http.Request) error {
	password, err := c.cfg.Password.Open()
	if err != nil {
		return fmt.Errorf("open basic auth password: %w", err)
	}
	defer password.Destroy()
	req.SetBasicAuth(c.cfg.Username, password.String())
	return nil
}

// truncateSessionID applies the provider's clientSessionId length limit.
// Applied unconditionally: already-short and empty ids pass through.
func truncateSessionID(sessionID string) string {
	if len(sessionID) > clientSessionIDMax {
		return sessionID[:clientSessionIDMax]
	}
	return sessionID
}

// newClientMessageID builds the short correlation id, MSG- plus six hex
// characters of a fresh uuid.
func newClientMessageID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "MSG-" + raw[:6]
}

// parseImmediateFragments extracts fragments from a 2xx dispatch response
// body. An empty body is a plain acknowledgment. A non-empty body must be
// valid JSON; a "body" array inside it is parsed as fragments, skipping
// any element that is not a JSON object.
func parseImmediateFragments(respBody []byte) ([]Fragment, error) {
	trimmed := bytes.TrimSpace(respBody)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("malformed provider response: not valid JSON")
	}

	// Any valid JSON shape without a "body" fragment array is treated as a
	// plain acknowledgment.
	var probe struct {
		Body []json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, nil
	}

	fragments := make([]Fragment, 0, len(probe.Body))
	for _, raw := range probe.Body {
		var frag Fragment
		if err := json.Unmarshal(raw, &frag); err != nil {
			continue
		}
		fragments = append(fragments, frag)
	}
	return fragments, nil
}
