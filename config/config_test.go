package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 0.05, cfg.Fees.BaseRate)
	assert.Equal(t, 0.25, cfg.Fees.MaxDiscount)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidateRequiresCookieSecretAndRPCCreds(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	err := cfg.Validate()
	require.Error(t, err)

	cfg.HTTP.CookieSecret = "0123456789012345678901234567890123"
	err = cfg.Validate()
	require.Error(t, err)

	cfg.Chain.RPCUser = "user"
	cfg.Chain.RPCPass = "pass"
	require.NoError(t, cfg.Validate())
}

func TestValidateProductionRequiresWebhookKey(t *testing.T) {
	t.Setenv("VAP_ENV", "production")
	cfg := &Config{}
	setDefaults(cfg)
	cfg.HTTP.CookieSecret = "0123456789012345678901234567890123"
	cfg.Chain.RPCUser = "user"
	cfg.Chain.RPCPass = "pass"

	err := cfg.Validate()
	require.Error(t, err)

	cfg.Webhooks.EncryptionKeyB64 = "base64keyhere"
	require.NoError(t, cfg.Validate())

	cfg.SSRF.AllowLocalhost = true
	require.Error(t, cfg.Validate())
}

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("VAP_TEST_VAR", "hello")
	defer os.Unsetenv("VAP_TEST_VAR")

	assert.Equal(t, "hello", SubstituteEnvVars("${VAP_TEST_VAR}"))
	assert.Equal(t, "fallback", SubstituteEnvVars("${VAP_UNSET_VAR:fallback}"))
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	t.Setenv("COOKIE_SECRET", "secret-from-env-0123456789012345")
	t.Setenv("VERUS_RPC_USER", "rpcuser")

	cfg := &Config{}
	setDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	assert.Equal(t, "secret-from-env-0123456789012345", cfg.HTTP.CookieSecret)
	assert.Equal(t, "rpcuser", cfg.Chain.RPCUser)
}
