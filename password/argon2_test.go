package password

import (
	"errors"
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewHasher(fastConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	hash, err := hasher.Hash("p1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("p1", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("p2", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch: ok=%v err=%v", ok, err)
	}
}

func TestHashRejectsEmptyAndOversized(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPasswordBytes = 8
	hasher, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	if _, err := hasher.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if _, err := hasher.Hash("123456789"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if _, err := hasher.Hash("12345678"); err != nil {
		t.Fatalf("expected max length to be accepted: %v", err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher, err := NewHasher(fastConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$short$aGFzaA",
	} {
		if _, err := hasher.Verify("p1", encoded); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("%q: expected ErrInvalidHash, got %v", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewHasher(fastConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	hash, err := weak.Hash("p1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if needs, err := weak.NeedsRehash(hash); err != nil || needs {
		t.Fatalf("same config should not need rehash: needs=%v err=%v", needs, err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	strong, err := NewHasher(stronger)
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	if needs, err := strong.NeedsRehash(hash); err != nil || !needs {
		t.Fatalf("stronger config should need rehash: needs=%v err=%v", needs, err)
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Memory = 1024
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected weak memory to be rejected")
	}
}
