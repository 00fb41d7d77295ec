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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianHelpdesk/services/orchestrator/store"
	"github.com/AleutianAI/AleutianHelpdesk/services/servicenow"
)

func postCallback(pending store.PendingStore, body string) *httptest.ResponseRecorder {
	router := gin.New()
	router.POST("/servicenow/callback", HandleCallback(pending))
	req := httptest.NewRequest(http.MethodPost, "/servicenow/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleCallback_StoresFragments(t *testing.T) {
	pending := store.NewMemory()

	w := postCallback(pending, `{
		"requestId": "req-1",
		"clientSessionId": "sess-1",
		"body": [
			{"uiType": "ActionMsg", "message": "Looking that up..."},
			{"uiType": "OutputText", "value": "Your ticket is INC0012345."}
		]
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success"}`, w.Body.String())

	// The fold ran: OutputText replaced the ActionMsg trail.
	buf := pending.Get("req-1")
	require.Len(t, buf, 1)
	assert.Equal(t, servicenow.KindOutputText, buf[0].Kind)
}

func TestHandleCallback_SuccessiveDeliveriesFold(t *testing.T) {
	pending := store.NewMemory()

	w := postCallback(pending, `{"requestId":"req-1","body":[{"uiType":"ActionMsg","message":"working"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w = postCallback(pending, `{"requestId":"req-1","body":[{"uiType":"ActionMsg","message":"almost"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w = postCallback(pending, `{"requestId":"req-1","body":[{"uiType":"Picker","label":"choose"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	buf := pending.Get("req-1")
	require.Len(t, buf, 3)
	assert.Equal(t, servicenow.KindPicker, buf[2].Kind)
}

func TestHandleCallback_MissingRequestIDIsSoftError(t *testing.T) {
	pending := store.NewMemory()

	w := postCallback(pending, `{"clientSessionId":"sess-1","body":[{"uiType":"OutputText","value":"hi"}]}`)

	// 200 on purpose: the provider must not retry an uncorrelatable
	// delivery.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"no requestId in callback"}`, w.Body.String())
	assert.Zero(t, pending.Len())
}

func TestHandleCallback_MalformedJSON(t *testing.T) {
	pending := store.NewMemory()

	w := postCallback(pending, `{"requestId": "req-1", "body": [`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, pending.Len())
}

func TestHandleCallback_UnknownTopLevelFieldsTolerated(t *testing.T) {
	pending := store.NewMemory()

	w := postCallback(pending, `{
		"requestId": "req-1",
		"nowBotId": "bot-7",
		"score": 0.92,
		"body": [{"uiType": "OutputText", "value": "hello"}]
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, pending.Get("req-1"), 1)
}

func TestHandleCallback_ScalarBodyCoercedToText(t *testing.T) {
	pending := store.NewMemory()

	w := postCallback(pending, `{"requestId":"req-1","body":"plain answer"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	buf := pending.Get("req-1")
	require.Len(t, buf, 1)
	assert.Equal(t, servicenow.KindOutputText, buf[0].Kind)

	var payload struct {
		Value string `json:"value"`
	}
	require.NoError(t, json.Unmarshal(buf[0].Payload, &payload))
	assert.Equal(t, "plain answer", payload.Value)
}

func TestHandleCallback_ObjectBodyCoercedToText(t *testing.T) {
	pending := store.NewMemory()

	w := postCallback(pending, `{"requestId":"req-1","body":{"unexpected":"shape"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	buf := pending.Get("req-1")
	require.Len(t, buf, 1)
	assert.Equal(t, servicenow.KindOutputText, buf[0].Kind)
}

func TestHandleCallback_NonObjectArrayElementsSkipped(t *testing.T) {
	pending := store.NewMemory()

	w := postCallback(pending, `{"requestId":"req-1","body":[
		"stray string",
		{"uiType":"OutputText","value":"kept"},
		42
	]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	buf := pending.Get("req-1")
	require.Len(t, buf, 1)
	assert.Equal(t, servicenow.KindOutputText, buf[0].Kind)
}

func TestHandleCallback_EmptyBodyStoresNothing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"absent body", `{"requestId":"req-1"}`},
		{"null body", `{"requestId":"req-1","body":null}`},
		{"empty array", `{"requestId":"req-1","body":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pending := store.NewMemory()

			w := postCallback(pending, tt.body)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"status":"success"}`, w.Body.String())
			assert.Zero(t, pending.Len())
		})
	}
}
