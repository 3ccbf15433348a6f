package sessiongate

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MrEthical07/sessiongate/identity"
	"github.com/MrEthical07/sessiongate/internal/audit"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/middleware"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a Gateway. A Builder is single use.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing the identity store and login limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Defaults to a text handler on
// stderr.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the clock used to issue and verify tokens.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Gateway.
func (b *Builder) Build() (*Gateway, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	// -------- TOKENS / PASSWORDS --------
	jwtCfg, err := cfg.JWT.managerConfig()
	if err != nil {
		return nil, err
	}
	jwtCfg.Now = b.now
	tokens, err := jwt.NewManager(jwtCfg)
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		config:  cfg,
		redis:   b.redis,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if cfg.Audit.Enabled && sink == nil {
		w, closer, err := openAuditWriter(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		g.auditFile = closer
		sink = audit.NewJSONLinesSink(w)
	}
	g.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	// -------- IDENTITY ACTORS --------
	ns, err := identity.NewNamespace(cfg.Identity, identity.Deps{
		Redis:    b.redis,
		Tokens:   tokens,
		Hasher:   hasher,
		Logger:   logger.With("component", "identity"),
		Observer: actorObserver{metrics: g.metrics},
		Now:      b.now,
	})
	if err != nil {
		g.audit.Close()
		if g.auditFile != nil {
			_ = g.auditFile.Close()
		}
		return nil, err
	}
	g.namespace = ns

	// -------- SESSION MIDDLEWARE --------
	g.session = middleware.New(ns, middleware.Config{
		Cookies:                  cfg.Cookies,
		PublishRefreshedIdentity: cfg.Session.PublishRefreshedIdentity,
		Logger:                   logger.With("component", "session"),
		OnOutcome:                g.observeOutcome,
	})

	g.handler = g.routes()
	b.built = true
	return g, nil
}

func openAuditWriter(path string) (io.Writer, io.Closer, error) {
	if path == "" {
		return os.Stderr, nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}
