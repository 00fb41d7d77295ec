// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sessions

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"os"
)

// Credentials is the login user database, loaded once at startup from a
// JSON file of the form {"alice": {"password": "..."}}.
type Credentials map[string]struct {
	Password string `json:"password"`
}

// LoadCredentials reads and parses the users file.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file %s: %w", path, err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse users file %s: %w", path, err)
	}
	return creds, nil
}

// Check reports whether username/password match a known user. The password
// comparison is constant-time; the username lookup is a map access, which
// is acceptable since usernames are not secrets.
func (c Credentials) Check(username, password string) bool {
	user, ok := c[username]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) == 1
}
