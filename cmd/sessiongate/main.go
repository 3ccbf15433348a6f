// Command sessiongate serves the session gateway over HTTP.
//
//	sessiongate --config sessiongate.yaml
//	sessiongate --embedded-redis --insecure-cookies --signing-key dev-only-signing-key
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sessiongate "github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sessiongate:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath      = pflag.StringP("config", "c", "", "path to a YAML config file")
		addr            = pflag.String("addr", "", "listen address (overrides server.addr)")
		redisAddr       = pflag.String("redis-addr", "", "redis address (overrides redis.addr)")
		embeddedRedis   = pflag.Bool("embedded-redis", false, "run an in-process miniredis instead of connecting to redis")
		signingKey      = pflag.String("signing-key", "", "hs256 signing key (overrides jwt.signing_key, falls back to SESSIONGATE_SIGNING_KEY)")
		insecureCookies = pflag.Bool("insecure-cookies", false, "drop the Secure attribute from session cookies (plain HTTP development only)")
		logLevel        = pflag.String("log-level", "", "debug, info, warn or error (overrides log.level)")
		metricsPath     = pflag.String("metrics-path", "/metrics", "path of the Prometheus scrape endpoint; empty disables it")
	)
	pflag.Parse()

	cfg, err := sessiongate.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *redisAddr != "" {
		cfg.Redis.Addr = *redisAddr
	}
	if *embeddedRedis {
		cfg.Redis.Embedded = true
	}
	if *signingKey != "" {
		cfg.JWT.SigningKey = *signingKey
	} else if cfg.JWT.SigningKey == "" {
		cfg.JWT.SigningKey = os.Getenv("SESSIONGATE_SIGNING_KEY")
	}
	if *insecureCookies {
		cfg.Cookies.Secure = false
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	for _, w := range cfg.Lint() {
		logger.Warn("config lint", "code", w.Code, "severity", w.Severity.String(), "message", w.Message)
	}

	client, stopRedis, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer stopRedis()

	gw, err := sessiongate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}
	defer gw.Close()

	mux := http.NewServeMux()
	if *metricsPath != "" {
		mux.Handle("GET "+*metricsPath, prometheus.NewPrometheusExporter(gw).Handler())
	}
	mux.Handle("/", gw.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "signing_method", cfg.JWT.SigningMethod, "secure_cookies", cfg.Cookies.Secure)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(cfg sessiongate.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
}

func openRedis(cfg sessiongate.RedisConfig, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		logger.Warn("using embedded redis; data is lost on exit", "addr", mr.Addr())
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return client, func() { _ = client.Close() }, nil
}
