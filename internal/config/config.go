package config

import (
	"fmt"
	"time"

	"github.com/kalambet/cxops/internal/auth"
)

type Config struct {
	API      APIConfig
	Server   ServerConfig
	Media    MediaConfig
	Report   ReportConfig
	Contacts ContactsConfig
	Output   OutputConfig
	Log      LogConfig
}

type APIConfig struct {
	// Issuer selects the account environment: "production" or "fedramp".
	Issuer          string
	AccessID        string
	AccessKeySecret string
	ClientID        string
	ClientSecret    string
}

type ServerConfig struct {
	Port int
}

type MediaConfig struct {
	BaseURL string
}

type ReportConfig struct {
	// PollInterval and the other duration fields hold duration strings,
	// e.g. "30s", so they survive the flat JSON backend.
	PollInterval string
	MaxPolls     int
}

type ContactsConfig struct {
	Top       int
	PagePause string
}

type OutputConfig struct {
	Dir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		API:      APIConfig{Issuer: "production"},
		Server:   ServerConfig{Port: 4180},
		Media:    MediaConfig{BaseURL: "https://na1.nice-incontact.com"},
		Report:   ReportConfig{PollInterval: "30s", MaxPolls: 20},
		Contacts: ContactsConfig{Top: 10000, PagePause: "1s"},
		Output:   OutputConfig{Dir: "."},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/cxops/config.json, then applies CXOPS_* environment
// overrides. Credentials are secrets and only come from the
// environment; they are intentionally absent from the file backend.
//
// Missing credentials are not an error here so that commands like
// `config show` keep working. Operations that talk to the API call
// Credentials() and get the actionable error there.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// IssuerHost maps the configured account environment to its token
// issuer host.
func (c Config) IssuerHost() (string, error) {
	switch c.API.Issuer {
	case "production":
		return auth.IssuerProduction, nil
	case "fedramp":
		return auth.IssuerFedRAMP, nil
	}
	return "", fmt.Errorf("unknown issuer %q (expected \"production\" or \"fedramp\")", c.API.Issuer)
}

// Credentials returns the operator credentials, or a clear error naming
// the environment variables when any of the four values is missing.
func (c Config) Credentials() (auth.Credentials, error) {
	a := c.API
	if a.AccessID == "" || a.AccessKeySecret == "" || a.ClientID == "" || a.ClientSecret == "" {
		return auth.Credentials{}, fmt.Errorf("missing credentials: set CXOPS_ACCESS_ID, " +
			"CXOPS_ACCESS_KEY_SECRET, CXOPS_CLIENT_ID and CXOPS_CLIENT_SECRET")
	}
	return auth.Credentials{
		AccessID:        a.AccessID,
		AccessKeySecret: a.AccessKeySecret,
		ClientID:        a.ClientID,
		ClientSecret:    a.ClientSecret,
	}, nil
}

// PollInterval parses the report poll interval, falling back to the
// default on a missing or unparsable value.
func (c Config) PollInterval() time.Duration {
	if d, err := time.ParseDuration(c.Report.PollInterval); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// PagePause parses the pause between contact pages, falling back to the
// default on a missing or unparsable value.
func (c Config) PagePause() time.Duration {
	if d, err := time.ParseDuration(c.Contacts.PagePause); err == nil && d > 0 {
		return d
	}
	return time.Second
}
