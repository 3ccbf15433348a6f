package sessiongate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with key", mutate: func(*Config) {}, wantValid: true},
		{name: "missing signing key", mutate: func(c *Config) { c.JWT.SigningKey = "" }, wantValid: false},
		{name: "unknown signing method", mutate: func(c *Config) { c.JWT.SigningMethod = "rs256" }, wantValid: false},
		{name: "ed25519 without key files", mutate: func(c *Config) { c.JWT.SigningMethod = "ed25519" }, wantValid: false},
		{name: "refresh not longer than access", mutate: func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL }, wantValid: false},
		{name: "leeway too large", mutate: func(c *Config) { c.JWT.Leeway = 3 * time.Minute }, wantValid: false},
		{name: "zero call timeout", mutate: func(c *Config) { c.Identity.CallTimeout = 0 }, wantValid: false},
		{name: "weak password memory", mutate: func(c *Config) { c.Password.Memory = 1024 }, wantValid: false},
		{name: "audit without buffer", mutate: func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, wantValid: false},
		{name: "embedded redis without addr", mutate: func(c *Config) { c.Redis.Addr = ""; c.Redis.Embedded = true }, wantValid: true},
		{name: "redis without addr", mutate: func(c *Config) { c.Redis.Addr = "" }, wantValid: false},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantValid: false},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantValid: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testGatewayConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessiongate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jwt:
  access_ttl: 5m
  signing_key: yaml-signing-key-0123
identity:
  call_timeout: 2s
  login_limit:
    max_attempts: 10
cookies:
  secure: false
  domain: example.com
session:
  publish_refreshed_identity: true
log:
  level: debug
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, "yaml-signing-key-0123", cfg.JWT.SigningKey)
	assert.Equal(t, 2*time.Second, cfg.Identity.CallTimeout)
	assert.Equal(t, 10, cfg.Identity.LoginLimit.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Identity.LoginLimit.Cooldown)
	assert.False(t, cfg.Cookies.Secure)
	assert.Equal(t, "example.com", cfg.Cookies.Domain)
	assert.True(t, cfg.Session.PublishRefreshedIdentity)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jwt: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEd25519KeyFiles(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.JWT.SigningMethod = "ed25519"
	cfg.JWT.PrivateKeyFile = filepath.Join(t.TempDir(), "missing.pem")
	cfg.JWT.PublicKeyFile = cfg.JWT.PrivateKeyFile
	require.NoError(t, cfg.Validate())

	_, err := cfg.JWT.managerConfig()
	assert.Error(t, err)
}
