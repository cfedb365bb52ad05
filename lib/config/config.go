// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vhc-foundation/luma/lib/budget"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Budget store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var backends = []string{BackendMemory, BackendSQLite, BackendRedis, BackendPostgres}

// Config is the master configuration for LUMA.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Delegation configures grant issuance and verification.
	Delegation DelegationConfig `yaml:"delegation"`

	// Session configures session lifecycle checks.
	Session SessionConfig `yaml:"session"`

	// Budget configures daily limits and where usage is stored.
	Budget BudgetConfig `yaml:"budget"`

	// Registry configures the familiar and grant registry.
	Registry RegistryConfig `yaml:"registry"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths      *PathsConfig         `yaml:"paths,omitempty"`
	Delegation *DelegationOverrides `yaml:"delegation,omitempty"`
	Session    *SessionConfig       `yaml:"session,omitempty"`
	Budget     *BudgetConfig        `yaml:"budget,omitempty"`
	Registry   *RegistryConfig      `yaml:"registry,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for LUMA data.
	Root string `yaml:"root"`
}

// DelegationConfig configures grant issuance and verification.
type DelegationConfig struct {
	// MaxGrantLifetime bounds expiresAt - issuedAt for issued grants.
	// Default: 24h
	MaxGrantLifetime string `yaml:"max_grant_lifetime"`

	// RequireSignature makes the admission gate verify every grant's
	// Ed25519 signature against PrincipalPublicKey.
	// Default: false (development), true (production)
	RequireSignature bool `yaml:"require_signature"`

	// PrincipalPublicKey is the unpadded base64url Ed25519 public key
	// grants are verified against.
	PrincipalPublicKey string `yaml:"principal_public_key"`
}

// DelegationOverrides is the per-environment form of DelegationConfig.
// RequireSignature is a pointer so an override that leaves it out keeps
// the base file's value.
type DelegationOverrides struct {
	MaxGrantLifetime   string `yaml:"max_grant_lifetime"`
	RequireSignature   *bool  `yaml:"require_signature"`
	PrincipalPublicKey string `yaml:"principal_public_key"`
}

// SessionConfig configures session lifecycle checks.
type SessionConfig struct {
	// NearExpiryWindow is how long before expiry a session is
	// reported as near expiry.
	// Default: 24h
	NearExpiryWindow string `yaml:"near_expiry_window"`
}

// BudgetConfig configures daily limits and where usage is stored.
type BudgetConfig struct {
	// Limits overrides the Season-0 limit of each listed action key.
	// Keys not listed keep their default.
	Limits []LimitConfig `yaml:"limits,omitempty"`

	// Store selects and configures the budget store.
	Store StoreConfig `yaml:"store"`
}

// LimitConfig overrides one action key's daily limit.
type LimitConfig struct {
	Action      string `yaml:"action"`
	DailyLimit  int    `yaml:"daily_limit"`
	PerTopicCap *int   `yaml:"per_topic_cap,omitempty"`
}

// StoreConfig selects and configures the budget store.
type StoreConfig struct {
	// Backend is one of memory, sqlite, redis, postgres.
	// Default: memory
	Backend  string         `yaml:"backend"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig configures the SQLite budget store.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: ${LUMA_ROOT}/budgets.db
	Path string `yaml:"path"`

	// PoolSize is the number of pooled connections.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// RedisConfig configures the Redis budget store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`

	// TTL is how long an untouched budget key survives.
	// Default: 48h
	TTL string `yaml:"ttl"`
}

// PostgresConfig configures the Postgres budget store.
type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// RegistryConfig configures the familiar and grant registry.
type RegistryConfig struct {
	// Path is the SQLite database holding delegation state.
	// Default: ${LUMA_ROOT}/delegation.db
	Path string `yaml:"path"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "luma")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root: defaultRoot,
		},
		Delegation: DelegationConfig{
			MaxGrantLifetime: "24h",
		},
		Session: SessionConfig{
			NearExpiryWindow: "24h",
		},
		Budget: BudgetConfig{
			Store: StoreConfig{
				Backend: BackendMemory,
				SQLite: SQLiteConfig{
					Path:     "${LUMA_ROOT}/budgets.db",
					PoolSize: 4,
				},
				Redis: RedisConfig{
					KeyPrefix: "luma:budget:",
					TTL:       "48h",
				},
				Postgres: PostgresConfig{
					Table: "luma_budgets",
				},
			},
		},
		Registry: RegistryConfig{
			Path: "${LUMA_ROOT}/delegation.db",
		},
	}
}

// Load loads configuration from the LUMA_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if LUMA_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("LUMA_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("LUMA_CONFIG environment variable not set; " +
			"set it to the path of your luma.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values. The only expansion performed is ${HOME} and similar
// variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			requireSignature := true
			overrides = &ConfigOverrides{
				Delegation: &DelegationOverrides{RequireSignature: &requireSignature},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil && overrides.Paths.Root != "" {
		c.Paths.Root = overrides.Paths.Root
	}

	if overrides.Delegation != nil {
		if overrides.Delegation.MaxGrantLifetime != "" {
			c.Delegation.MaxGrantLifetime = overrides.Delegation.MaxGrantLifetime
		}
		if overrides.Delegation.RequireSignature != nil {
			c.Delegation.RequireSignature = *overrides.Delegation.RequireSignature
		}
		if overrides.Delegation.PrincipalPublicKey != "" {
			c.Delegation.PrincipalPublicKey = overrides.Delegation.PrincipalPublicKey
		}
	}

	if overrides.Session != nil && overrides.Session.NearExpiryWindow != "" {
		c.Session.NearExpiryWindow = overrides.Session.NearExpiryWindow
	}

	if overrides.Budget != nil {
		if overrides.Budget.Limits != nil {
			c.Budget.Limits = overrides.Budget.Limits
		}
		c.Budget.Store.override(overrides.Budget.Store)
	}

	if overrides.Registry != nil && overrides.Registry.Path != "" {
		c.Registry.Path = overrides.Registry.Path
	}
}

func (s *StoreConfig) override(o StoreConfig) {
	if o.Backend != "" {
		s.Backend = o.Backend
	}
	if o.SQLite.Path != "" {
		s.SQLite.Path = o.SQLite.Path
	}
	if o.SQLite.PoolSize != 0 {
		s.SQLite.PoolSize = o.SQLite.PoolSize
	}
	if o.Redis.Addr != "" {
		s.Redis.Addr = o.Redis.Addr
	}
	if o.Redis.Password != "" {
		s.Redis.Password = o.Redis.Password
	}
	if o.Redis.DB != 0 {
		s.Redis.DB = o.Redis.DB
	}
	if o.Redis.KeyPrefix != "" {
		s.Redis.KeyPrefix = o.Redis.KeyPrefix
	}
	if o.Redis.TTL != "" {
		s.Redis.TTL = o.Redis.TTL
	}
	if o.Postgres.DSN != "" {
		s.Postgres.DSN = o.Postgres.DSN
	}
	if o.Postgres.Table != "" {
		s.Postgres.Table = o.Postgres.Table
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths and connection strings.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"LUMA_ROOT": c.Paths.Root,
		"HOME":      os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["LUMA_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Budget.Store.SQLite.Path = expandVars(c.Budget.Store.SQLite.Path, vars)
	c.Budget.Store.Redis.Addr = expandVars(c.Budget.Store.Redis.Addr, vars)
	c.Budget.Store.Redis.Password = expandVars(c.Budget.Store.Redis.Password, vars)
	c.Budget.Store.Postgres.DSN = expandVars(c.Budget.Store.Postgres.DSN, vars)
	c.Registry.Path = expandVars(c.Registry.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if _, err := c.MaxGrantLifetimeMs(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.NearExpiryWindowMs(); err != nil {
		errs = append(errs, err)
	}

	if c.Delegation.RequireSignature {
		if _, err := c.PrincipalPublicKey(); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := c.BudgetLimits(); err != nil {
		errs = append(errs, err)
	}

	store := c.Budget.Store
	if !slices.Contains(backends, store.Backend) {
		errs = append(errs, fmt.Errorf("budget.store.backend must be one of: %v", backends))
	}
	switch store.Backend {
	case BackendMemory:
		if c.Environment == Production {
			errs = append(errs, fmt.Errorf("budget.store.backend memory is not allowed in production"))
		}
	case BackendSQLite:
		if store.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("budget.store.sqlite.path is required"))
		}
		if store.SQLite.PoolSize < 1 {
			errs = append(errs, fmt.Errorf("budget.store.sqlite.pool_size must be at least 1"))
		}
	case BackendRedis:
		if store.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("budget.store.redis.addr is required"))
		}
		if _, err := c.RedisTTL(); err != nil {
			errs = append(errs, err)
		}
	case BackendPostgres:
		if store.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("budget.store.postgres.dsn is required"))
		}
	}

	if c.Registry.Path == "" {
		errs = append(errs, fmt.Errorf("registry.path is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func positiveDuration(field, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return duration, nil
}

// MaxGrantLifetimeMs returns delegation.max_grant_lifetime in
// milliseconds.
func (c *Config) MaxGrantLifetimeMs() (int64, error) {
	duration, err := positiveDuration("delegation.max_grant_lifetime", c.Delegation.MaxGrantLifetime)
	if err != nil {
		return 0, err
	}
	return duration.Milliseconds(), nil
}

// NearExpiryWindowMs returns session.near_expiry_window in
// milliseconds.
func (c *Config) NearExpiryWindowMs() (int64, error) {
	duration, err := positiveDuration("session.near_expiry_window", c.Session.NearExpiryWindow)
	if err != nil {
		return 0, err
	}
	return duration.Milliseconds(), nil
}

// RedisTTL returns budget.store.redis.ttl.
func (c *Config) RedisTTL() (time.Duration, error) {
	return positiveDuration("budget.store.redis.ttl", c.Budget.Store.Redis.TTL)
}

// PrincipalPublicKey decodes delegation.principal_public_key.
func (c *Config) PrincipalPublicKey() (ed25519.PublicKey, error) {
	encoded := c.Delegation.PrincipalPublicKey
	if encoded == "" {
		return nil, fmt.Errorf("delegation.principal_public_key is required when require_signature is set")
	}
	key, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("delegation.principal_public_key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("delegation.principal_public_key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	return ed25519.PublicKey(key), nil
}

// BudgetLimits returns the Season-0 limits with budget.limits applied.
func (c *Config) BudgetLimits() ([]budget.Limit, error) {
	limits := budget.Season0Defaults()
	seen := make(map[budget.ActionKey]bool)
	var errs []error

	for index, override := range c.Budget.Limits {
		key := budget.ActionKey(override.Action)
		if !key.Valid() {
			errs = append(errs, fmt.Errorf("budget.limits[%d]: unknown action %q", index, override.Action))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("budget.limits[%d]: duplicate action %q", index, override.Action))
			continue
		}
		seen[key] = true
		if override.DailyLimit < 0 {
			errs = append(errs, fmt.Errorf("budget.limits[%d]: daily_limit must be non-negative", index))
			continue
		}
		if override.PerTopicCap != nil && *override.PerTopicCap < 0 {
			errs = append(errs, fmt.Errorf("budget.limits[%d]: per_topic_cap must be non-negative", index))
			continue
		}
		for position := range limits {
			if limits[position].ActionKey == key {
				limits[position] = budget.Limit{ActionKey: key, DailyLimit: override.DailyLimit}
				if override.PerTopicCap != nil {
					limits[position].PerTopicCap = budget.Cap(*override.PerTopicCap)
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return limits, nil
}

// EnsurePaths creates the data root and the parent directories of
// every configured database file.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Paths.Root, filepath.Dir(c.Registry.Path)}
	if c.Budget.Store.Backend == BackendSQLite {
		paths = append(paths, filepath.Dir(c.Budget.Store.SQLite.Path))
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
