package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// isolate points RAD_HOME at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("RAD_HOME", home)
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, EnvPrefix) {
			t.Setenv(name, "")
		}
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadNonexistent(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}

	want := map[string]string{
		"node.home":           home,
		"node.key_path":       filepath.Join(home, "keys", "radicle.pub"),
		"node.socket_path":    filepath.Join(home, "node", "control.sock"),
		"storage.node_db":     filepath.Join(home, "node", "node.db"),
		"storage.policies_db": filepath.Join(home, "node", "policies.db"),
	}
	got := map[string]string{
		"node.home":           cfg.Node.Home,
		"node.key_path":       cfg.Node.KeyPath,
		"node.socket_path":    cfg.Node.SocketPath,
		"storage.node_db":     cfg.Storage.NodeDB,
		"storage.policies_db": cfg.Storage.PoliciesDB,
	}
	for field, w := range want {
		if got[field] != w {
			t.Errorf("%s: expected %s, got %s", field, w, got[field])
		}
	}
	if cfg.HTTP.Listen != "127.0.0.1:8080" {
		t.Errorf("expected default listen address, got %s", cfg.HTTP.Listen)
	}
	if cfg.Node.DialTimeout() != time.Second {
		t.Errorf("expected 1s dial timeout, got %v", cfg.Node.DialTimeout())
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, filepath.Join("radhttpd", "config.toml")) {
		t.Errorf("expected path ending with radhttpd/config.toml, got %s", path)
	}
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `
[http]
listen = "0.0.0.0:9000"
cors_origins = ["https://app.example.com"]

[web]
avatar_url = "https://example.com/avatar.png"
description = "seed node"
`,
		},
		{
			name: "json",
			file: "config.json",
			content: `{
  "http": {"listen": "0.0.0.0:9000", "cors_origins": ["https://app.example.com"]},
  "web": {"avatar_url": "https://example.com/avatar.png", "description": "seed node"}
}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `
http:
  listen: 0.0.0.0:9000
  cors_origins:
    - https://app.example.com
web:
  avatar_url: https://example.com/avatar.png
  description: seed node
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.content)

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.HTTP.Listen != "0.0.0.0:9000" {
				t.Errorf("expected listen 0.0.0.0:9000, got %s", cfg.HTTP.Listen)
			}
			if !slices.Equal(cfg.HTTP.CORSOrigins, []string{"https://app.example.com"}) {
				t.Errorf("unexpected origins: %v", cfg.HTTP.CORSOrigins)
			}
			if cfg.Web.AvatarURL != "https://example.com/avatar.png" || cfg.Web.Description != "seed node" {
				t.Errorf("unexpected web config: %+v", cfg.Web)
			}
			// Unset fields keep their defaults.
			if cfg.Storage.MaxConnections != 8 {
				t.Errorf("expected default max connections, got %d", cfg.Storage.MaxConnections)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("config should be valid: %v", err)
			}
		})
	}
}

func TestLoadHomeDerivesPaths(t *testing.T) {
	isolate(t)
	t.Setenv("RAD_HOME", "")
	home := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[node]
home = "`+filepath.ToSlash(home)+`"

[storage]
policies_db = "/srv/radicle/policies.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.NodeDB != filepath.Join(home, "node", "node.db") {
		t.Errorf("node db not derived from home: %s", cfg.Storage.NodeDB)
	}
	if cfg.Storage.PoliciesDB != "/srv/radicle/policies.db" {
		t.Errorf("explicit path was replaced: %s", cfg.Storage.PoliciesDB)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "this is not valid toml {{{")

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("RADHTTPD_LISTEN", "127.0.0.1:9999")
	t.Setenv("RADHTTPD_LOG_LEVEL", "debug")
	t.Setenv("RADHTTPD_REQUEST_TIMEOUT_MS", "2500")
	t.Setenv("RADHTTPD_METRICS_ENABLED", "true")
	t.Setenv("RADHTTPD_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[http]\nlisten = \"127.0.0.1:1\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Listen != "127.0.0.1:9999" {
		t.Errorf("environment should win over the file, got %s", cfg.HTTP.Listen)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
	if cfg.Node.RequestTimeout() != 2500*time.Millisecond {
		t.Errorf("expected 2.5s request timeout, got %v", cfg.Node.RequestTimeout())
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected metrics enabled")
	}
	if !slices.Equal(cfg.HTTP.CORSOrigins, []string{"https://a.example.com", "https://b.example.com"}) {
		t.Errorf("unexpected origins: %v", cfg.HTTP.CORSOrigins)
	}
}

func TestEnvOverrideInvalidNumber(t *testing.T) {
	isolate(t)
	t.Setenv("RADHTTPD_MAX_CONNECTIONS", "many")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for non-numeric override")
	}
}

func TestValidateErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"listen", func(c *Config) { c.HTTP.Listen = "nope" }, "http.listen"},
		{"origin", func(c *Config) { c.HTTP.CORSOrigins = []string{"ftp://x"} }, "http.cors_origins[0]"},
		{"rate limit", func(c *Config) { c.HTTP.RateLimit = -1 }, "http.rate_limit"},
		{"rate burst", func(c *Config) { c.HTTP.RateLimit = 5; c.HTTP.RateBurst = 0 }, "http.rate_burst"},
		{"dial timeout", func(c *Config) { c.Node.DialTimeoutMs = 0 }, "node.dial_timeout_ms"},
		{"request timeout", func(c *Config) { c.Node.RequestTimeoutMs = 10 }, "node.request_timeout_ms"},
		{"same databases", func(c *Config) { c.Storage.PoliciesDB = c.Storage.NodeDB }, "storage.policies_db"},
		{"connections", func(c *Config) { c.Storage.MaxConnections = 0 }, "storage.max_connections"},
		{"avatar", func(c *Config) { c.Web.AvatarURL = "not a url" }, "web.avatar_url"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"file output", func(c *Config) { c.Logging.Output = "file" }, "logging.file_path"},
		{"metrics path", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "/api/metrics" }, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tt.mutate(cfg)

			err := cfg.Validate()
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if !slices.Contains(verrs.Fields(), tt.field) {
				t.Errorf("expected error on %s, got %v", tt.field, verrs.Fields())
			}
		})
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.CORSOrigins = []string{"https://a.example.com"}

	clone := cfg.Clone()
	clone.HTTP.CORSOrigins[0] = "https://b.example.com"

	if cfg.HTTP.CORSOrigins[0] != "https://a.example.com" {
		t.Error("clone shares the origins slice")
	}
}

func TestLoaderReloadsOnChange(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[web]\ndescription = \"before\"\n")

	loader := NewLoader(path)
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Web.Description != "before" {
		t.Fatalf("unexpected description %q", cfg.Web.Description)
	}

	changed := make(chan [2]string, 1)
	loader.OnChange(func(old, new *Config) {
		select {
		case changed <- [2]string{old.Web.Description, new.Web.Description}:
		default:
		}
	})
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeFile(t, path, "[web]\ndescription = \"after\"\n")

	select {
	case got := <-changed:
		if got != [2]string{"before", "after"} {
			t.Errorf("unexpected change %v", got)
		}
	case err := <-loader.Errors():
		t.Fatalf("reload failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if loader.Config().Web.Description != "after" {
		t.Errorf("loader kept the old config")
	}
}

func TestLoaderKeepsConfigOnInvalidReload(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[web]\ndescription = \"good\"\n")

	loader := NewLoader(path)
	defer loader.Close()
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeFile(t, path, "[logging]\nlevel = \"loud\"\n")

	select {
	case err := <-loader.Errors():
		if !strings.Contains(err.Error(), "logging.level") {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
	if loader.Config().Web.Description != "good" {
		t.Error("invalid reload replaced the config")
	}
}
