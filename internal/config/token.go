package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// APIToken returns the bearer token protecting the local server,
// generating and persisting one beside the config file on first use.
// CXOPS_API_TOKEN overrides the stored token.
func APIToken() (string, error) {
	if t := os.Getenv("CXOPS_API_TOKEN"); t != "" {
		return t, nil
	}
	return apiTokenAt(filepath.Join(filepath.Dir(configFilePath()), "api_token"))
}

func apiTokenAt(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		if t := strings.TrimSpace(string(data)); t != "" {
			return t, nil
		}
	}

	t := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(t+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persisting api token: %w", err)
	}
	return t, nil
}
