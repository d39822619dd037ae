// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for every vap-* binary.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	HTTP        HTTPConfig      `yaml:"http" json:"http"`
	Chain       ChainConfig     `yaml:"chain" json:"chain"`
	Storage     StorageConfig   `yaml:"storage" json:"storage"`
	Session     SessionConfig   `yaml:"session" json:"session"`
	SafeChat    SafeChatConfig  `yaml:"safechat" json:"safechat"`
	Webhooks    WebhooksConfig  `yaml:"webhooks" json:"webhooks"`
	SSRF        SSRFConfig      `yaml:"ssrf" json:"ssrf"`
	Fees        FeesConfig      `yaml:"fees" json:"fees"`
	Logging     LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig   `yaml:"metrics" json:"metrics"`
	Health      HealthConfig    `yaml:"health" json:"health"`
}

// HTTPConfig configures the public-facing API and websocket listener.
type HTTPConfig struct {
	Addr          string   `yaml:"addr" json:"addr"`
	CookieSecret  string   `yaml:"cookie_secret" json:"-"`
	CORSOrigins   []string `yaml:"cors_origins" json:"cors_origins"`
	PlatformID    string   `yaml:"platform_signing_id" json:"platform_signing_id"`
	PlatformChain string   `yaml:"platform_chain" json:"platform_chain"`
	PublicURL     string   `yaml:"public_url" json:"public_url"`
}

// ChainConfig configures the external blockchain node RPC client (C1).
type ChainConfig struct {
	RPCURL         string        `yaml:"rpc_url" json:"rpc_url"`
	RPCUser        string        `yaml:"rpc_user" json:"-"`
	RPCPass        string        `yaml:"rpc_pass" json:"-"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay" json:"retry_delay"`
	IdentityCache  CacheConfig   `yaml:"identity_cache" json:"identity_cache"`
}

// CacheConfig describes a bounded TTL cache.
type CacheConfig struct {
	Size int           `yaml:"size" json:"size"`
	TTL  time.Duration `yaml:"ttl" json:"ttl"`
}

// StorageConfig selects and configures the persistence backend (C2).
type StorageConfig struct {
	Driver   string `yaml:"driver" json:"driver"` // postgres|memory
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"-"`
	Password string `yaml:"password" json:"-"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
	FilesDir string `yaml:"files_dir" json:"files_dir"`
}

// SessionConfig configures chat sessions, nonces and rate limiting windows.
type SessionConfig struct {
	NonceTTL        time.Duration `yaml:"nonce_ttl" json:"nonce_ttl"`
	ClockSkew       time.Duration `yaml:"clock_skew" json:"clock_skew"`
	DefaultRoomTTL  time.Duration `yaml:"default_room_ttl" json:"default_room_ttl"`
	ConnPerIP       int           `yaml:"conn_per_ip" json:"conn_per_ip"`
	ConnPerIdentity int           `yaml:"conn_per_identity" json:"conn_per_identity"`
	RevalidateEvery time.Duration `yaml:"revalidate_every" json:"revalidate_every"`
	ChatJWTSecret   string        `yaml:"chat_jwt_secret" json:"-"`
}

// SafeChatConfig configures the content-safety provider (C10).
type SafeChatConfig struct {
	APIURL          string `yaml:"api_url" json:"api_url"`
	APIKey          string `yaml:"api_key" json:"-"`
	EncryptionKeyB64 string `yaml:"encryption_key" json:"-"`
	LocalModulePath string `yaml:"local_path" json:"local_path"`
	FeeAddress      string `yaml:"fee_address" json:"fee_address"`
}

// WebhooksConfig configures outbound webhook delivery (C13).
type WebhooksConfig struct {
	EncryptionKeyB64 string        `yaml:"encryption_key" json:"-"`
	MaxRetries       int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff   time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff" json:"max_backoff"`
}

// SSRFConfig configures the endpoint-verification HTTP client's address policy.
type SSRFConfig struct {
	AllowLocalhost bool `yaml:"allow_localhost" json:"allow_localhost"`
	AllowTestPorts bool `yaml:"allow_test_ports" json:"allow_test_ports"`
}

// FeesConfig configures the job platform fee schedule.
type FeesConfig struct {
	BaseRate   float64 `yaml:"base_rate" json:"base_rate"`
	MaxDiscount float64 `yaml:"max_discount" json:"max_discount"`
}

// LoggingConfig controls the ambient structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig controls the prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig controls the liveness/readiness endpoints.
type HealthConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Port    int  `yaml:"port" json:"port"`
}

// LoadFromFile loads configuration from a YAML (or, failing that, JSON) file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile persists configuration, choosing format by file extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Chain.RequestTimeout == 0 {
		cfg.Chain.RequestTimeout = 5 * time.Second
	}
	if cfg.Chain.MaxRetries == 0 {
		cfg.Chain.MaxRetries = 3
	}
	if cfg.Chain.RetryDelay == 0 {
		cfg.Chain.RetryDelay = time.Second
	}
	if cfg.Chain.IdentityCache.Size == 0 {
		cfg.Chain.IdentityCache.Size = 1000
	}
	if cfg.Chain.IdentityCache.TTL == 0 {
		cfg.Chain.IdentityCache.TTL = 5 * time.Minute
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.SSLMode == "" {
		cfg.Storage.SSLMode = "disable"
	}
	if cfg.Storage.FilesDir == "" {
		cfg.Storage.FilesDir = "data/files"
	}
	if cfg.Session.NonceTTL == 0 {
		cfg.Session.NonceTTL = 10 * time.Minute
	}
	if cfg.Session.ClockSkew == 0 {
		cfg.Session.ClockSkew = 300 * time.Second
	}
	if cfg.Session.DefaultRoomTTL == 0 {
		cfg.Session.DefaultRoomTTL = 1800 * time.Second
	}
	if cfg.Session.ConnPerIP == 0 {
		cfg.Session.ConnPerIP = 10
	}
	if cfg.Session.ConnPerIdentity == 0 {
		cfg.Session.ConnPerIdentity = 5
	}
	if cfg.Session.RevalidateEvery == 0 {
		cfg.Session.RevalidateEvery = 60 * time.Second
	}
	if cfg.Webhooks.MaxRetries == 0 {
		cfg.Webhooks.MaxRetries = 5
	}
	if cfg.Webhooks.InitialBackoff == 0 {
		cfg.Webhooks.InitialBackoff = 2 * time.Second
	}
	if cfg.Webhooks.MaxBackoff == 0 {
		cfg.Webhooks.MaxBackoff = 10 * time.Minute
	}
	if cfg.Fees.BaseRate == 0 {
		cfg.Fees.BaseRate = 0.05
	}
	if cfg.Fees.MaxDiscount == 0 {
		cfg.Fees.MaxDiscount = 0.25
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = 8081
	}
	if cfg.Session.ChatJWTSecret == "" {
		cfg.Session.ChatJWTSecret = cfg.HTTP.CookieSecret
	}
}

// Validate enforces the hard requirements from spec.md §6: COOKIE_SECRET
// (at least 32 bytes) and VERUS_RPC_USER/PASS are mandatory in every
// environment; in production WEBHOOK_ENCRYPTION_KEY is also mandatory and
// the SSRF test escape hatches must not be set.
func (c *Config) Validate() error {
	if len(c.HTTP.CookieSecret) < 32 {
		return fmt.Errorf("cookie secret must be at least 32 bytes")
	}
	if c.Chain.RPCUser == "" || c.Chain.RPCPass == "" {
		return fmt.Errorf("chain RPC credentials are required")
	}
	if IsProduction() {
		if c.Webhooks.EncryptionKeyB64 == "" {
			return fmt.Errorf("webhook encryption key is required in production")
		}
		if c.SSRF.AllowLocalhost || c.SSRF.AllowTestPorts {
			return fmt.Errorf("SSRF test escape hatches must not be enabled in production")
		}
	}
	return nil
}
