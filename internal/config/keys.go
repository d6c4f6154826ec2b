package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "api.issuer", typ: kString, env: "CXOPS_ISSUER",
		apply:   func(cfg *Config, v any) { cfg.API.Issuer = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Issuer },
	},
	{
		key: "api.access_id", typ: kString, env: "CXOPS_ACCESS_ID",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.AccessID = v.(string) },
		extract: func(cfg Config) any { return cfg.API.AccessID },
	},
	{
		key: "api.access_key_secret", typ: kString, env: "CXOPS_ACCESS_KEY_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.AccessKeySecret = v.(string) },
		extract: func(cfg Config) any { return cfg.API.AccessKeySecret },
	},
	{
		key: "api.client_id", typ: kString, env: "CXOPS_CLIENT_ID",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.ClientID = v.(string) },
		extract: func(cfg Config) any { return cfg.API.ClientID },
	},
	{
		key: "api.client_secret", typ: kString, env: "CXOPS_CLIENT_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.ClientSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.API.ClientSecret },
	},
	{
		key: "server.port", typ: kInt, env: "CXOPS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "media.base_url", typ: kString, env: "CXOPS_MEDIA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Media.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Media.BaseURL },
	},
	{
		key: "report.poll_interval", typ: kString, env: "CXOPS_REPORT_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Report.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Report.PollInterval },
	},
	{
		key: "report.max_polls", typ: kInt, env: "CXOPS_REPORT_MAX_POLLS",
		apply:   func(cfg *Config, v any) { cfg.Report.MaxPolls = v.(int) },
		extract: func(cfg Config) any { return cfg.Report.MaxPolls },
	},
	{
		key: "contacts.top", typ: kInt, env: "CXOPS_CONTACTS_TOP",
		apply:   func(cfg *Config, v any) { cfg.Contacts.Top = v.(int) },
		extract: func(cfg Config) any { return cfg.Contacts.Top },
	},
	{
		key: "contacts.page_pause", typ: kString, env: "CXOPS_CONTACTS_PAGE_PAUSE",
		apply:   func(cfg *Config, v any) { cfg.Contacts.PagePause = v.(string) },
		extract: func(cfg Config) any { return cfg.Contacts.PagePause },
	},
	{
		key: "output.dir", typ: kString, env: "CXOPS_OUTPUT_DIR",
		apply:   func(cfg *Config, v any) { cfg.Output.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Output.Dir },
	},
	{
		key: "log.level", typ: kString, env: "CXOPS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
