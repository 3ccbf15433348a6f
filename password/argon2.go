package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB     uint32 = 8 * 1024
	minSaltLength   uint32 = 16
	minKeyLength    uint32 = 16
	defaultMaxBytes        = 1024
	algorithmID            = "argon2id"
)

var (
	ErrEmptyPassword   = errors.New("password is empty")
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	ErrInvalidHash     = errors.New("invalid PHC hash")
)

// Config holds Argon2id cost parameters. MaxPasswordBytes defaults to 1024.
type Config struct {
	Memory           uint32 `yaml:"memory_kb"`
	Time             uint32 `yaml:"time"`
	Parallelism      uint8  `yaml:"parallelism"`
	SaltLength       uint32 `yaml:"salt_length"`
	KeyLength        uint32 `yaml:"key_length"`
	MaxPasswordBytes int    `yaml:"max_password_bytes"`
}

// DefaultConfig returns production cost parameters.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: defaultMaxBytes,
	}
}

// Hasher is immutable after construction and safe for concurrent use.
type Hasher struct {
	config Config
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = defaultMaxBytes
	}
	return &Hasher{config: cfg}, nil
}

// Validate checks the cost parameters against safe minimums.
func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return errors.New("password memory must be >= 8192 KB")
	case c.Time < 1:
		return errors.New("password time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return errors.New("password salt length must be >= 16")
	case c.KeyLength < minKeyLength:
		return errors.New("password key length must be >= 16")
	case c.MaxPasswordBytes < 0:
		return errors.New("password max bytes must be >= 0")
	}
	return nil
}

// Hash returns a PHC-encoded Argon2id hash of password. Bytes are hashed as
// given, without Unicode normalization.
func (h *Hasher) Hash(password string) (string, error) {
	if err := h.checkInput(password); err != nil {
		return "", err
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded in constant time.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	if err := h.checkInput(password); err != nil {
		return false, err
	}

	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.hash)))
	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the Hasher's.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	return h.config.Memory > parsed.memory ||
		h.config.Time > parsed.time ||
		h.config.Parallelism > parsed.parallelism ||
		h.config.KeyLength != uint32(len(parsed.hash)), nil
}

func (h *Hasher) checkInput(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) > h.config.MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrInvalidHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version", ErrInvalidHash)
	}

	out := &phc{}
	for _, pair := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, pair)
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, pair)
		}
		switch k {
		case "m":
			out.memory = uint32(n)
		case "t":
			out.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, pair)
			}
			out.parallelism = uint8(n)
		default:
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidHash, k)
		}
	}
	if out.memory < minMemoryKB || out.time == 0 || out.parallelism == 0 {
		return nil, fmt.Errorf("%w: missing parameters", ErrInvalidHash)
	}

	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", ErrInvalidHash)
	}
	if out.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.hash) == 0 {
		return nil, fmt.Errorf("%w: hash", ErrInvalidHash)
	}

	return out, nil
}
