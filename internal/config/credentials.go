package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcoot/arcade-judge/internal/model"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Credentials is the store service account carried in JUDGE_STORE_CREDENTIALS
type Credentials struct {
	Backend string `json:"backend"`
	URL     string `json:"url"`
}

// ParseCredentials decodes serialized credentials. An empty value is
// model.ErrMissingCredentials, which callers treat as fatal.
func ParseCredentials(raw string) (Credentials, error) {
	if strings.TrimSpace(raw) == "" {
		return Credentials{}, model.ErrMissingCredentials
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", model.ErrInvalidCredentials, err)
	}

	if creds.Backend == "" {
		creds.Backend = BackendRedis
	}
	switch creds.Backend {
	case BackendMemory:
	case BackendRedis:
		if creds.URL == "" {
			return Credentials{}, fmt.Errorf("%w: redis backend requires url", model.ErrInvalidCredentials)
		}
	default:
		return Credentials{}, fmt.Errorf("%w: unknown backend %q", model.ErrInvalidCredentials, creds.Backend)
	}
	return creds, nil
}
