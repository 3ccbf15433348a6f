package sessiongate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/sessiongate/identity"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/middleware"
	"github.com/MrEthical07/sessiongate/password"
	"gopkg.in/yaml.v3"
)

// Config is the full gateway configuration. Load it with LoadConfig or
// start from DefaultConfig.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Identity identity.Config    `yaml:"identity"`
	JWT      JWTConfig          `yaml:"jwt"`
	Password password.Config    `yaml:"password"`
	Cookies  middleware.Cookies `yaml:"cookies"`
	Session  SessionConfig      `yaml:"session"`
	Audit    AuditConfig        `yaml:"audit"`
	Metrics  MetricsConfig      `yaml:"metrics"`
	Server   ServerConfig       `yaml:"server"`
	Redis    RedisConfig        `yaml:"redis"`
	Log      LogConfig          `yaml:"log"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects the signing material used by the identity actors.
// SigningKey is the hs256 secret; ed25519 reads PEM or raw keys from the
// key files.
type JWTConfig struct {
	AccessTTL      time.Duration `yaml:"access_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl"`
	SigningMethod  string        `yaml:"signing_method"`
	SigningKey     string        `yaml:"signing_key"`
	PrivateKeyFile string        `yaml:"private_key_file"`
	PublicKeyFile  string        `yaml:"public_key_file"`
	Issuer         string        `yaml:"issuer"`
	Leeway         time.Duration `yaml:"leeway"`
	KeyID          string        `yaml:"key_id"`
}

// managerConfig resolves key material into a jwt.Config.
func (c JWTConfig) managerConfig() (jwt.Config, error) {
	out := jwt.Config{
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(c.SigningMethod)),
		Issuer:        c.Issuer,
		Leeway:        c.Leeway,
		KeyID:         c.KeyID,
	}

	switch out.SigningMethod {
	case jwt.MethodHS256:
		out.PrivateKey = []byte(c.SigningKey)
	case jwt.MethodEd25519:
		priv, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return jwt.Config{}, fmt.Errorf("read private key: %w", err)
		}
		pub, err := os.ReadFile(c.PublicKeyFile)
		if err != nil {
			return jwt.Config{}, fmt.Errorf("read public key: %w", err)
		}
		out.PrivateKey = priv
		out.PublicKey = pub
	}
	return out, nil
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes the session middleware.
type SessionConfig struct {
	// PublishRefreshedIdentity publishes the user on the request that
	// refreshed its access token. Off by default: the refreshed request
	// continues anonymously and the next request authenticates.
	PublishRefreshedIdentity bool `yaml:"publish_refreshed_identity"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit pipeline. Path "" writes
// JSON lines to stderr.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BufferSize int    `yaml:"buffer_size"`
	DropIfFull bool   `yaml:"drop_if_full"`
	Path       string `yaml:"path"`
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
SERVER / REDIS / LOG CONFIG
====================================
*/

// ServerConfig configures the HTTP listener of the binary.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxFormBytes    int64         `yaml:"max_form_bytes"`
}

// RedisConfig points at the credential store. Embedded starts an
// in-process miniredis for local development.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Embedded bool   `yaml:"embedded"`
}

// LogConfig configures the slog handler of the binary.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	return lvl, nil
}

// DefaultConfig returns the production defaults. The signing key is empty
// and must be supplied.
func DefaultConfig() Config {
	return Config{
		Identity: identity.DefaultConfig(),
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: string(jwt.MethodHS256),
			Issuer:        "sessiongate",
		},
		Password: password.DefaultConfig(),
		Cookies:  middleware.DefaultCookies(),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxFormBytes:    1 << 20,
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads YAML from path over DefaultConfig. A missing file yields
// the defaults. The result is not validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return err
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("jwt access_ttl must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("jwt refresh_ttl must be greater than access_ttl")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("jwt leeway must be between 0 and 2m")
	}
	switch jwt.SigningMethod(strings.ToLower(c.JWT.SigningMethod)) {
	case jwt.MethodHS256:
		if len(c.JWT.SigningKey) < 16 {
			return errors.New("jwt signing_key must be at least 16 bytes for hs256")
		}
	case jwt.MethodEd25519:
		if c.JWT.PrivateKeyFile == "" || c.JWT.PublicKeyFile == "" {
			return errors.New("jwt ed25519 requires private_key_file and public_key_file")
		}
	default:
		return errors.New("jwt signing_method must be 'hs256' or 'ed25519'")
	}

	// Password
	if err := c.Password.Validate(); err != nil {
		return err
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer_size must be > 0 when enabled")
	}

	// Server
	if c.Server.Addr == "" {
		return errors.New("server addr must not be empty")
	}
	if c.Server.MaxFormBytes <= 0 {
		return errors.New("server max_form_bytes must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server shutdown_timeout must be > 0")
	}

	// Redis
	if !c.Redis.Embedded && c.Redis.Addr == "" {
		return errors.New("redis addr must not be empty unless embedded")
	}

	// Log
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return errors.New("log format must be 'json' or 'text'")
	}
	return nil
}
