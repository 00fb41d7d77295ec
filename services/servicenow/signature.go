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
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSignature indicates the request payload could not be canonicalized for
// signing. This is fatal for the dispatch: retrying with the same payload
// cannot succeed, the payload itself needs fixing.
var ErrSignature = errors.New("servicenow: payload is not valid JSON")

// Sign computes the b2b integration signature for a request payload.
//
// The payload is re-serialized with a canonical encoding before hashing:
// json.Compact strips all insignificant whitespace while preserving key
// order, so byte-level whitespace differences in the caller's payload never
// change the signature the verifier sees. The canonical bytes are then
// HMAC-SHA1'd with the shared integration token, lowercase hex encoded.
//
// SHA-1 here is the provider's contract, not our choice of hash.
func Sign(payload, secret []byte) (string, error) {
	var canonical bytes.Buffer
	if err := json.Compact(&canonical, payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignature, err)
	}

	mac := hmac.New(sha1.New, secret)
	mac.Write(canonical.Bytes())
	return hex.EncodeToString(mac.Sum(nil)), nil
}
