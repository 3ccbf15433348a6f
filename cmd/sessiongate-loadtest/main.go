package main

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sessiongate "github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/middleware"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

type account struct {
	email   string
	access  string
	refresh string
}

func main() {
	var (
		users       = pflag.Int("users", 500, "number of accounts to sign up")
		concurrency = pflag.Int("concurrency", 64, "number of concurrent workers")
		ops         = pflag.Int("ops", 50000, "requests per phase")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = pflag.String("prefix", "sgload", "identity key prefix")
	)
	pflag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := sessiongate.DefaultConfig()
	cfg.JWT.SigningKey = "loadtest-signing-key-not-secret"
	cfg.Identity.KeyPrefix = *prefix
	cfg.Cookies.Secure = false
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}

	gw, err := sessiongate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build gateway: %v\n", err)
		os.Exit(1)
	}
	defer gw.Close()
	h := gw.Handler()

	runID := time.Now().UnixNano()
	accounts := make([]account, *users)
	fmt.Printf("signing up %d accounts...\n", *users)
	startSeed := time.Now()
	for i := range accounts {
		email := fmt.Sprintf("load-%d-%d@example.com", runID, i)
		rec := post(h, "/signup", url.Values{"email": {email}, "password": {"load-test-password"}}, nil)
		if rec.Code != http.StatusFound {
			fmt.Fprintf(os.Stderr, "signup %s failed: %d %s\n", email, rec.Code, rec.Body.String())
			os.Exit(1)
		}
		a := account{email: email}
		for _, c := range rec.Result().Cookies() {
			switch c.Name {
			case middleware.AccessCookie:
				a.access = c.Value
			case middleware.RefreshCookie:
				a.refresh = c.Value
			}
		}
		accounts[i] = a
	}
	fmt.Printf("signed up in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolveStats := runPhase(accounts, *ops, *concurrency, 7919, func(a *account) bool {
		rec := get(h, "/protected/profile", []*http.Cookie{
			{Name: middleware.AccessCookie, Value: a.access},
			{Name: middleware.RefreshCookie, Value: a.refresh},
		})
		return rec.Code == http.StatusOK
	})

	writeStats := runPhase(accounts, *ops, *concurrency, 6151, func(a *account) bool {
		rec := post(h, "/data", url.Values{"key": {"counter"}, "value": {a.email}}, []*http.Cookie{
			{Name: middleware.AccessCookie, Value: a.access},
		})
		return rec.Code == http.StatusOK
	})

	refreshStats := runPhase(accounts, *ops, *concurrency, 4273, func(a *account) bool {
		rec := get(h, "/", []*http.Cookie{
			{Name: middleware.RefreshCookie, Value: a.refresh},
		})
		for _, c := range rec.Result().Cookies() {
			if c.Name == middleware.AccessCookie && c.Value != "" {
				return true
			}
		}
		return false
	})

	fmt.Println("---- results ----")
	printStats("resolve", resolveStats)
	printStats("data-write", writeStats)
	printStats("refresh", refreshStats)
	fmt.Printf("live actors: %d\n", gw.LiveActors())
}

func runPhase(accounts []account, ops, concurrency int, seed int64, op func(*account) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				a := &accounts[r.Intn(len(accounts))]
				t0 := time.Now()
				ok := op(a)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func post(h http.Handler, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(h, req, cookies)
}

func get(h http.Handler, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return serve(h, httptest.NewRequest(http.MethodGet, path, nil), cookies)
}

func serve(h http.Handler, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
