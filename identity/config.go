package identity

import (
	"errors"
	"time"

	"github.com/MrEthical07/sessiongate/internal/rate"
)

// Config controls the actor runtime and the identity store.
type Config struct {
	KeyPrefix     string        `yaml:"key_prefix"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	MailboxSize   int           `yaml:"mailbox_size"`
	MaxValueBytes int           `yaml:"max_value_bytes"`
	LoginLimit    rate.Config   `yaml:"login_limit"`
}

// DefaultConfig returns the runtime defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:     "sg",
		CallTimeout:   5 * time.Second,
		IdleTimeout:   time.Minute,
		MailboxSize:   32,
		MaxValueBytes: 64 << 10,
		LoginLimit: rate.Config{
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
		},
	}
}

// Validate checks the runtime bounds.
func (c Config) Validate() error {
	if c.KeyPrefix == "" {
		return errors.New("identity: key_prefix must not be empty")
	}
	if c.CallTimeout <= 0 {
		return errors.New("identity: call_timeout must be > 0")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("identity: idle_timeout must be > 0")
	}
	if c.MailboxSize <= 0 {
		return errors.New("identity: mailbox_size must be > 0")
	}
	if c.MaxValueBytes <= 0 {
		return errors.New("identity: max_value_bytes must be > 0")
	}
	if c.LoginLimit.MaxAttempts > 0 && c.LoginLimit.Cooldown <= 0 {
		return errors.New("identity: login_limit.cooldown must be > 0 when max_attempts is set")
	}
	return nil
}
