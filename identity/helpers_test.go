package identity

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/sessiongate/internal/rate"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingObserver struct {
	spawned atomic.Int64
	retired atomic.Int64
	calls   atomic.Int64
}

func (o *countingObserver) ActorSpawned() { o.spawned.Add(1) }
func (o *countingObserver) ActorRetired() { o.retired.Add(1) }
func (o *countingObserver) CallFinished(Op, time.Duration, error) {
	o.calls.Add(1)
}

type fixture struct {
	ns    *Namespace
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	clock *clock
	obs   *countingObserver
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxValueBytes = 64
	cfg.LoginLimit = rate.Config{MaxAttempts: 3, Cooldown: time.Minute}
	return cfg
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := &clock{now: time.Now()}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("identity-test-secret"),
		Issuer:        "sessiongate",
		Now:           clk.Now,
	})
	require.NoError(t, err)

	hasher, err := password.NewHasher(password.Config{
		Memory:           8 * 1024,
		Time:             1,
		Parallelism:      1,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: 1024,
	})
	require.NoError(t, err)

	obs := &countingObserver{}
	ns, err := NewNamespace(cfg, Deps{
		Redis:    rdb,
		Tokens:   tokens,
		Hasher:   hasher,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Observer: obs,
		Now:      clk.Now,
	})
	require.NoError(t, err)
	t.Cleanup(ns.Close)

	return &fixture{ns: ns, mr: mr, rdb: rdb, clock: clk, obs: obs}
}
