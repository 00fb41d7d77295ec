// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the orchestrator's environment configuration.
// Required values fail fast at startup rather than silently degrading at
// the first request. Secrets are moved into memguard enclaves immediately
// and the process environment copies are unset.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/awnumar/memguard"
	"github.com/joho/godotenv"
)

// Config holds all orchestrator settings.
type Config struct {
	Port string

	// ServiceNow gateway settings.
	ServiceNowInstance string
	ServiceNowUsername string
	ServiceNowPassword *memguard.Enclave
	ServiceNowToken    *memguard.Enclave
	ServiceNowUserID   string
	ServiceNowTimeout  time.Duration

	// Webhook shared credential pair.
	CallbackUsername string
	CallbackPassword *memguard.Enclave

	// Login collaborator.
	UsersFile  string
	SessionTTL time.Duration

	// Pending-buffer retention.
	PendingTTL    time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present. Returns an error naming the
// first missing required variable.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	cfg := &Config{
		Port:               getEnv("ORCHESTRATOR_PORT", "8080"),
		ServiceNowUserID:   getEnv("SERVICENOW_USER_ID", "beth.anglin"),
		ServiceNowTimeout:  getEnvDuration("SERVICENOW_TIMEOUT", 30*time.Second),
		UsersFile:          getEnv("USERS_FILE", "users.json"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 30*time.Minute),
		PendingTTL:         getEnvDuration("PENDING_TTL", time.Hour),
		SweepInterval:      getEnvDuration("TTL_SWEEP_INTERVAL", 5*time.Minute),
	}

	var err error
	if cfg.ServiceNowInstance, err = requireEnv("SERVICENOW_INSTANCE"); err != nil {
		return nil, err
	}
	if cfg.ServiceNowUsername, err = requireEnv("SERVICENOW_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.ServiceNowPassword, err = requireSecret("SERVICENOW_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.ServiceNowToken, err = requireSecret("SERVICENOW_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.CallbackUsername, err = requireEnv("CALLBACK_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.CallbackPassword, err = requireSecret("CALLBACK_PASSWORD"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("Invalid duration in environment, using default",
			"key", key, "value", v, "default", fallback.String())
		return fallback
	}
	return d
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return v, nil
}

// requireSecret moves a required secret into a memguard enclave and wipes
// the process environment copy.
func requireSecret(key string) (*memguard.Enclave, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, fmt.Errorf("required environment variable %s is not set", key)
	}
	enclave := memguard.NewEnclave([]byte(v))
	_ = os.Unsetenv(key)
	return enclave, nil
}
