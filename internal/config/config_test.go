package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
crawl:
  user_agent: gazette-agent
  delay_seconds: 3
  max_pages: 25
  archive_max_pages: 100
  http_timeout_seconds: 45
browser:
  nav_timeout_seconds: 30
database:
  driver: postgres
  dsn: postgres://localhost/gazette
pubsub:
  enabled: true
  project_id: proj
  topic_id: new-articles
snapshots:
  enabled: true
  gcs_bucket: gazette-pages
logging:
  development: false
sources:
  - key: royal_orders
    name_ar: "أوامر ملكية"
    cat_id: 7
    url: https://uqn.gov.sa/?cat=7
    enabled: true
    order: 1
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Crawl.MaxPages != 25 || cfg.Crawl.Delay() != 3*time.Second {
		t.Fatalf("expected crawl overrides to apply: %+v", cfg.Crawl)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN == "" {
		t.Fatalf("expected postgres database config: %+v", cfg.Database)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Key != "royal_orders" {
		t.Fatalf("expected configured source list to win over seeds: %+v", cfg.Sources)
	}
	src := cfg.SeedSources()[0]
	if src.CategoryID != 7 || src.NameAr != "أوامر ملكية" {
		t.Fatalf("expected seed conversion to preserve fields: %+v", src)
	}
}

func TestLoadDefaultsSeedSevenSources(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Sources) != 7 {
		t.Fatalf("expected 7 default sources, got %d", len(cfg.Sources))
	}
	if cfg.Database.Driver != "memory" {
		t.Fatalf("expected memory driver default, got %q", cfg.Database.Driver)
	}
	if cfg.Browser.NavTimeout() != 60*time.Second {
		t.Fatalf("expected 60s nav timeout default, got %v", cfg.Browser.NavTimeout())
	}
	keys := make(map[string]bool)
	for _, s := range cfg.Sources {
		keys[s.Key] = true
	}
	for _, want := range []string{"royal_orders", "royal_decrees", "cabinet_decisions", "ministerial_decisions", "laws_regulations", "decisions_regulations", "authorities"} {
		if !keys[want] {
			t.Fatalf("expected default source %q", want)
		}
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Port: 8080},
		Crawl:    CrawlConfig{MaxPages: 10, HTTPTimeoutSeconds: 15},
		Database: DatabaseConfig{Driver: "memory"},
		Sources:  DefaultSources(),
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid max pages",
			cfg: func() Config {
				c := base
				c.Crawl.MaxPages = 0
				return c
			}(),
			want: "crawl.max_pages",
		},
		{
			name: "postgres without dsn",
			cfg: func() Config {
				c := base
				c.Database.Driver = "postgres"
				return c
			}(),
			want: "database.dsn",
		},
		{
			name: "unknown driver",
			cfg: func() Config {
				c := base
				c.Database.Driver = "mongodb"
				return c
			}(),
			want: "database.driver",
		},
		{
			name: "pubsub missing topic",
			cfg: func() Config {
				c := base
				c.PubSub.Enabled = true
				c.PubSub.ProjectID = "proj"
				return c
			}(),
			want: "pubsub",
		},
		{
			name: "snapshots missing bucket",
			cfg: func() Config {
				c := base
				c.Snapshots.Enabled = true
				return c
			}(),
			want: "snapshots.gcs_bucket",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "duplicate source key",
			cfg: func() Config {
				c := base
				c.Sources = append(DefaultSources(), DefaultSources()[0])
				return c
			}(),
			want: "duplicate source key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
