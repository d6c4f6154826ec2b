package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kalambet/cxops/internal/auth"
	"github.com/kalambet/cxops/internal/config"
	"github.com/kalambet/cxops/internal/cxone"
)

// tenantClient loads config, authenticates against the platform and
// returns a ready API client. A var so command tests can substitute a
// fake backend.
var tenantClient = func(ctx context.Context) (*cxone.Client, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("loading config: %w", err)
	}

	creds, err := cfg.Credentials()
	if err != nil {
		return nil, config.Config{}, err
	}
	issuer, err := cfg.IssuerHost()
	if err != nil {
		return nil, config.Config{}, err
	}

	provider := auth.NewProvider(issuer, &http.Client{Timeout: 30 * time.Second})
	actx, err := provider.Authenticate(ctx, creds)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("authenticating: %w", err)
	}

	return cxone.New(actx, &http.Client{Timeout: 60 * time.Second}), cfg, nil
}

// writeExport writes a generated file into the configured output
// directory and reports the final path.
func writeExport(cfg config.Config, name string, data []byte) (string, error) {
	dir := cfg.Output.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
