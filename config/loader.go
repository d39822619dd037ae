// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	ConfigDir           string
	Environment         string
	SkipEnvSubstitution bool
	SkipValidation      bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load loads configuration with automatic environment detection: a
// `.env` file (if present) seeds process environment variables first, then
// {environment}.yaml, default.yaml, config.yaml are tried in order, falling
// back to an empty Config{} with defaults applied.
func Load(opts ...LoaderOptions) (*Config, error) {
	_ = godotenv.Load()

	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFile(filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env)))
	if err != nil {
		cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "default.yaml"))
		if err != nil {
			cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "config.yaml"))
			if err != nil {
				cfg = &Config{}
				setDefaults(cfg)
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides applies environment variables, the
// highest-priority configuration layer: spec.md §6's recognized options
// (COOKIE_SECRET, VERUS_RPC_*, SAFECHAT_*, WEBHOOK_ENCRYPTION_KEY, ...)
// plus CHAT_JWT_SECRET, VAP_LOG_LEVEL and VAP_METRICS_ENABLED.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("COOKIE_SECRET"); v != "" {
		cfg.HTTP.CookieSecret = v
	}
	if v := os.Getenv("PLATFORM_SIGNING_ID"); v != "" {
		cfg.HTTP.PlatformID = v
	}
	if v := os.Getenv("PLATFORM_CHAIN"); v != "" {
		cfg.HTTP.PlatformChain = v
	}
	if v := os.Getenv("PUBLIC_URL"); v != "" {
		cfg.HTTP.PublicURL = v
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.HTTP.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv("VERUS_RPC_USER"); v != "" {
		cfg.Chain.RPCUser = v
	}
	if v := os.Getenv("VERUS_RPC_PASS"); v != "" {
		cfg.Chain.RPCPass = v
	}
	if v := os.Getenv("VERUS_RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	if v := os.Getenv("SAFECHAT_API_URL"); v != "" {
		cfg.SafeChat.APIURL = v
	}
	if v := os.Getenv("SAFECHAT_API_KEY"); v != "" {
		cfg.SafeChat.APIKey = v
	}
	if v := os.Getenv("SAFECHAT_ENCRYPTION_KEY"); v != "" {
		cfg.SafeChat.EncryptionKeyB64 = v
	}
	if v := os.Getenv("SAFECHAT_PATH"); v != "" {
		cfg.SafeChat.LocalModulePath = v
	}
	if v := os.Getenv("SAFECHAT_FEE_ADDRESS"); v != "" {
		cfg.SafeChat.FeeAddress = v
	}
	if v := os.Getenv("WEBHOOK_ENCRYPTION_KEY"); v != "" {
		cfg.Webhooks.EncryptionKeyB64 = v
	}
	if v := os.Getenv("CHAT_JWT_SECRET"); v != "" {
		cfg.Session.ChatJWTSecret = v
	}
	if os.Getenv("SSRF_ALLOW_LOCALHOST") == "true" {
		cfg.SSRF.AllowLocalhost = true
	}
	if os.Getenv("SSRF_ALLOW_TEST_PORTS") == "true" {
		cfg.SSRF.AllowTestPorts = true
	}
	if v := os.Getenv("VAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if os.Getenv("VAP_METRICS_ENABLED") == "true" {
		cfg.Metrics.Enabled = true
	}
	if os.Getenv("VAP_METRICS_ENABLED") == "false" {
		cfg.Metrics.Enabled = false
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// LoadForEnvironment loads configuration for a specific environment.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{ConfigDir: "config", Environment: environment})
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
