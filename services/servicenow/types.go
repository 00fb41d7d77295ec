// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package servicenow implements the asynchronous ServiceNow Virtual Agent
// integration: the signed outbound gateway call, the fragment classifier
// that folds partial callback deliveries into a coherent buffer, and the
// typed fragment model shared with the orchestrator's pending store.
package servicenow

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// Fragment Model
// =============================================================================

// UIKind tags one unit of Virtual Agent output with its declared UI type.
//
// The kind fully determines how a fragment folds into the pending buffer
// (see Fold). The payload is opaque to everything except the browser.
type UIKind string

const (
	// KindActionMsg is a transient status fragment (spinners, typing
	// indicators). Buffered as a progress trail but never delivered
	// through the normal poll response.
	KindActionMsg UIKind = "ActionMsg"

	// KindOutputCard is a structured content card. Content supersedes
	// everything buffered before it.
	KindOutputCard UIKind = "OutputCard"

	// KindPicker is a multiple-choice prompt. At most one open picker is
	// kept per conversation.
	KindPicker UIKind = "Picker"

	// KindOutputText is plain text content. Unrecognized kinds are coerced
	// to this before folding.
	KindOutputText UIKind = "OutputText"
)

// IsContent reports whether fragments of this kind are eligible for
// delivery to the browser. ActionMsg fragments are visible only through
// the debug introspection endpoint.
func (k UIKind) IsContent() bool {
	switch k {
	case KindOutputCard, KindPicker, KindOutputText:
		return true
	}
	return false
}

// Fragment is one unit of Virtual Agent output: a UI kind tag plus the
// original JSON object it arrived as. The payload is never interpreted
// here; it is handed back to the browser verbatim.
type Fragment struct {
	Kind    UIKind
	Payload json.RawMessage
}

// UnmarshalJSON parses a fragment from a provider JSON object, keeping the
// raw bytes so kind-specific fields survive the round trip untouched.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var probe struct {
		UIType string `json:"uiType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("fragment is not a JSON object: %w", err)
	}
	f.Kind = UIKind(probe.UIType)
	f.Payload = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the original payload verbatim. Synthesized fragments
// (no payload captured) fall back to a minimal object carrying the kind.
func (f Fragment) MarshalJSON() ([]byte, error) {
	if len(f.Payload) > 0 {
		return f.Payload, nil
	}
	return json.Marshal(map[string]string{"uiType": string(f.Kind)})
}

// TextFragment builds an OutputText fragment carrying value. Used when a
// callback body or unknown fragment kind has to be coerced into plain text.
func TextFragment(value string) Fragment {
	payload, _ := json.Marshal(map[string]string{
		"uiType": string(KindOutputText),
		"value":  value,
	})
	return Fragment{Kind: KindOutputText, Payload: payload}
}

// ContentOnly returns the content-eligible fragments in order. The result
// is always non-nil so an empty buffer serializes as [] rather than null.
func ContentOnly(fragments []Fragment) []Fragment {
	content := make([]Fragment, 0, len(fragments))
	for _, frag := range fragments {
		if frag.Kind.IsContent() {
			content = append(content, frag)
		}
	}
	return content
}
