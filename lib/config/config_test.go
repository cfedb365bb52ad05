// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vhc-foundation/luma/lib/budget"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "luma.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}

	if cfg.Budget.Store.Backend != BackendMemory {
		t.Errorf("expected backend=memory, got %s", cfg.Budget.Store.Backend)
	}

	lifetime, err := cfg.MaxGrantLifetimeMs()
	if err != nil || lifetime != 24*60*60*1000 {
		t.Errorf("expected max grant lifetime 86400000ms, got %d (%v)", lifetime, err)
	}

	if cfg.Delegation.RequireSignature {
		t.Error("expected require_signature=false for development")
	}
}

func TestLoad_RequiresLumaConfig(t *testing.T) {
	t.Setenv("LUMA_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when LUMA_CONFIG not set, got nil")
	}

	expectedMsg := "LUMA_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithLumaConfig(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
paths:
  root: /test/root
`)
	t.Setenv("LUMA_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}

	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}

	if cfg.Registry.Path != "/test/root/delegation.db" {
		t.Errorf("expected registry path under root, got %s", cfg.Registry.Path)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging

paths:
  root: /custom/root

delegation:
  max_grant_lifetime: 90m

session:
  near_expiry_window: 2h

budget:
  limits:
    - action: posts/day
      daily_limit: 5
    - action: comments/day
      daily_limit: 7
      per_topic_cap: 2
  store:
    backend: redis
    redis:
      addr: ${LUMA_CONFIG_TEST_UNSET_HOST:-localhost}:6379
      db: 3
      ttl: 72h
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if lifetime, _ := cfg.MaxGrantLifetimeMs(); lifetime != 90*60*1000 {
		t.Errorf("expected max grant lifetime 5400000ms, got %d", lifetime)
	}

	if window, _ := cfg.NearExpiryWindowMs(); window != 2*60*60*1000 {
		t.Errorf("expected near expiry window 7200000ms, got %d", window)
	}

	if cfg.Budget.Store.Redis.Addr != "localhost:6379" {
		t.Errorf("expected redis addr localhost:6379, got %s", cfg.Budget.Store.Redis.Addr)
	}

	if cfg.Budget.Store.Redis.KeyPrefix != "luma:budget:" {
		t.Errorf("expected default key prefix to survive, got %s", cfg.Budget.Store.Redis.KeyPrefix)
	}

	limits, err := cfg.BudgetLimits()
	if err != nil {
		t.Fatalf("BudgetLimits failed: %v", err)
	}
	if len(limits) != len(budget.Season0Defaults()) {
		t.Fatalf("expected %d limits, got %d", len(budget.Season0Defaults()), len(limits))
	}
	for _, limit := range limits {
		switch limit.ActionKey {
		case budget.Posts:
			if limit.DailyLimit != 5 || limit.PerTopicCap != nil {
				t.Errorf("posts limit = %+v, want 5 with no cap", limit)
			}
		case budget.Comments:
			if limit.DailyLimit != 7 || limit.PerTopicCap == nil || *limit.PerTopicCap != 2 {
				t.Errorf("comments limit = %+v, want 7 capped at 2", limit)
			}
		case budget.Analyses:
			if limit.DailyLimit != 25 || limit.PerTopicCap == nil || *limit.PerTopicCap != 5 {
				t.Errorf("analyses limit = %+v, want Season-0 default", limit)
			}
		}
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

paths:
  root: /default/root

budget:
  store:
    backend: memory

production:
  paths:
    root: /prod/root
  budget:
    store:
      backend: postgres
      postgres:
        dsn: postgres://luma@db/luma
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/prod/root" {
		t.Errorf("expected root=/prod/root, got %s", cfg.Paths.Root)
	}

	if cfg.Budget.Store.Backend != BackendPostgres {
		t.Errorf("expected backend=postgres from production override, got %s", cfg.Budget.Store.Backend)
	}

	if cfg.Budget.Store.Postgres.Table != "luma_budgets" {
		t.Errorf("expected default table to survive override, got %s", cfg.Budget.Store.Postgres.Table)
	}
}

func TestProductionDefaults(t *testing.T) {
	configPath := writeConfig(t, `
environment: production
budget:
  store:
    backend: sqlite
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if !cfg.Delegation.RequireSignature {
		t.Error("expected require_signature=true in production without overrides")
	}

	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "principal_public_key is required") {
		t.Errorf("expected missing public key error, got %v", err)
	}

	publicKey, _, _ := ed25519.GenerateKey(nil)
	cfg.Delegation.PrincipalPublicKey = base64.RawURLEncoding.EncodeToString(publicKey)
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate with key failed: %v", err)
	}
	decoded, err := cfg.PrincipalPublicKey()
	if err != nil || !decoded.Equal(publicKey) {
		t.Errorf("PrincipalPublicKey = %x, %v", decoded, err)
	}
}

func TestEnvironmentOverrideKeepsRequireSignature(t *testing.T) {
	configPath := writeConfig(t, `
environment: production
delegation:
  require_signature: true
production:
  delegation:
    max_grant_lifetime: 12h
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if !cfg.Delegation.RequireSignature {
		t.Error("require_signature = false, want true when the override leaves it unset")
	}
	if cfg.Delegation.MaxGrantLifetime != "12h" {
		t.Errorf("max_grant_lifetime = %q, want 12h", cfg.Delegation.MaxGrantLifetime)
	}

	configPath = writeConfig(t, `
environment: staging
delegation:
  require_signature: true
staging:
  delegation:
    require_signature: false
`)
	cfg, err = LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Delegation.RequireSignature {
		t.Error("require_signature = true, want false when the override sets it explicitly")
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Environment variables are only consulted through ${VAR} expansion.
	t.Setenv("LUMA_ROOT", "/env/root")
	t.Setenv("LUMA_ENVIRONMENT", "staging")

	configPath := writeConfig(t, `
environment: development
paths:
  root: /file/root
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s (env vars should not override)", cfg.Environment)
	}

	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root from file, got %s (env vars should not override)", cfg.Paths.Root)
	}

	if cfg.Budget.Store.SQLite.Path != "/file/root/budgets.db" {
		t.Errorf("expected sqlite path from file root, got %s", cfg.Budget.Store.SQLite.Path)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/luma",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/luma",
		},
		{
			input:    "${LUMA_CONFIG_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "invalid environment",
			modify:  func(c *Config) { c.Environment = "invalid" },
			wantErr: "invalid environment",
		},
		{
			name:    "empty root path",
			modify:  func(c *Config) { c.Paths.Root = "" },
			wantErr: "paths.root is required",
		},
		{
			name:    "unparseable lifetime",
			modify:  func(c *Config) { c.Delegation.MaxGrantLifetime = "a day" },
			wantErr: "delegation.max_grant_lifetime",
		},
		{
			name:    "negative window",
			modify:  func(c *Config) { c.Session.NearExpiryWindow = "-1h" },
			wantErr: "session.near_expiry_window must be positive",
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Budget.Store.Backend = "etcd" },
			wantErr: "budget.store.backend must be one of",
		},
		{
			name:    "memory in production",
			modify:  func(c *Config) { c.Environment = Production },
			wantErr: "memory is not allowed in production",
		},
		{
			name:    "redis without addr",
			modify:  func(c *Config) { c.Budget.Store.Backend = BackendRedis },
			wantErr: "budget.store.redis.addr is required",
		},
		{
			name:    "postgres without dsn",
			modify:  func(c *Config) { c.Budget.Store.Backend = BackendPostgres },
			wantErr: "budget.store.postgres.dsn is required",
		},
		{
			name: "unknown action",
			modify: func(c *Config) {
				c.Budget.Limits = []LimitConfig{{Action: "likes/day", DailyLimit: 1}}
			},
			wantErr: `unknown action "likes/day"`,
		},
		{
			name: "duplicate action",
			modify: func(c *Config) {
				c.Budget.Limits = []LimitConfig{{Action: "posts/day", DailyLimit: 1}, {Action: "posts/day", DailyLimit: 2}}
			},
			wantErr: `duplicate action "posts/day"`,
		},
		{
			name: "short public key",
			modify: func(c *Config) {
				c.Delegation.RequireSignature = true
				c.Delegation.PrincipalPublicKey = "AAAA"
			},
			wantErr: "must be 32 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "luma")
	cfg.Registry.Path = filepath.Join(tmpDir, "registry", "delegation.db")
	cfg.Budget.Store.Backend = BackendSQLite
	cfg.Budget.Store.SQLite.Path = filepath.Join(tmpDir, "budgets", "budgets.db")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, filepath.Join(tmpDir, "registry"), filepath.Join(tmpDir, "budgets")} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
