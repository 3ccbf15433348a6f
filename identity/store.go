package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport or script failure from the store.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrUserNotFound is returned when no credential record exists for an email.
var ErrUserNotFound = errors.New("user not found")

// ErrUserCorrupt is returned when a credential record is missing fields.
var ErrUserCorrupt = errors.New("user record corrupt")

const createUserScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "email", ARGV[2], "password_hash", ARGV[3], "created_at", ARGV[4])
return 1
`

var createUserLua = redis.NewScript(createUserScript)

// Record is the persisted credential of one identity.
type Record struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

func (r *Record) User() User {
	return User{ID: r.ID, Email: r.Email}
}

// Store persists credentials, live refresh token ids and KV data in Redis.
//
// Keys:
//
//	{prefix}:user:{email}          hash  id, email, password_hash, created_at
//	{prefix}:refresh:{email}:{jti} string with the refresh token TTL
//	{prefix}:kv:{email}            hash  user data
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a Store. An empty prefix defaults to "sg".
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sg"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) userKey(email string) string {
	return s.prefix + ":user:" + email
}

func (s *Store) refreshKey(email, tokenID string) string {
	return s.prefix + ":refresh:" + email + ":" + tokenID
}

func (s *Store) kvKey(email string) string {
	return s.prefix + ":kv:" + email
}

// CreateUser stores rec unless a record for the email already exists.
func (s *Store) CreateUser(ctx context.Context, rec *Record) (bool, error) {
	res, err := createUserLua.Run(ctx, s.redis,
		[]string{s.userKey(rec.Email)},
		rec.ID, rec.Email, rec.PasswordHash, strconv.FormatInt(rec.CreatedAt.Unix(), 10),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

// GetUser loads the credential record for email.
func (s *Store) GetUser(ctx context.Context, email string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrUserNotFound
	}

	rec := &Record{
		ID:           fields["id"],
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
	}
	if rec.ID == "" || rec.Email == "" || rec.PasswordHash == "" {
		return nil, ErrUserCorrupt
	}
	if raw := fields["created_at"]; raw != "" {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, ErrUserCorrupt
		}
		rec.CreatedAt = time.Unix(unix, 0).UTC()
	}
	return rec, nil
}

// UpdatePasswordHash replaces the stored hash of an existing user.
func (s *Store) UpdatePasswordHash(ctx context.Context, email, encoded string) error {
	if err := s.redis.HSet(ctx, s.userKey(email), "password_hash", encoded).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SaveRefresh records a live refresh token id until ttl elapses.
func (s *Store) SaveRefresh(ctx context.Context, email, tokenID string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.refreshKey(email, tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RefreshLive reports whether the refresh token id is still recorded.
func (s *Store) RefreshLive(ctx context.Context, email, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.refreshKey(email, tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// GetValue reads key from the identity's KV hash.
func (s *Store) GetValue(ctx context.Context, email, key string) (string, bool, error) {
	value, err := s.redis.HGet(ctx, s.kvKey(email), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return value, true, nil
}

// SetValue writes key in the identity's KV hash.
func (s *Store) SetValue(ctx context.Context, email, key, value string) error {
	if err := s.redis.HSet(ctx, s.kvKey(email), key, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping checks Redis connectivity and returns the round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
