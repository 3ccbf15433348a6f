package sessiongate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/sessiongate/identity"
	"github.com/MrEthical07/sessiongate/internal/audit"
	"github.com/MrEthical07/sessiongate/middleware"
	"github.com/redis/go-redis/v9"
)

// Gateway serves the session routes. It is safe for concurrent use after
// Build.
type Gateway struct {
	config    Config
	redis     redis.UniversalClient
	logger    *slog.Logger
	metrics   *Metrics
	audit     *audit.Dispatcher
	auditFile io.Closer
	namespace *identity.Namespace
	session   *middleware.Middleware
	handler   http.Handler
}

// Handler returns the HTTP handler serving every gateway route.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Resolver returns the identity actor namespace.
func (g *Gateway) Resolver() identity.Resolver {
	return g.namespace
}

// Config returns the validated configuration.
func (g *Gateway) Config() Config {
	return g.config
}

// Close stops every identity actor and flushes the audit pipeline. The
// Redis client is owned by the caller.
func (g *Gateway) Close() {
	if g == nil {
		return
	}
	if g.namespace != nil {
		g.namespace.Close()
	}
	g.audit.Close()
	if g.auditFile != nil {
		_ = g.auditFile.Close()
	}
}

// AuditDropped returns the number of audit events lost to backpressure.
func (g *Gateway) AuditDropped() uint64 {
	if g == nil {
		return 0
	}
	return g.audit.Dropped()
}

// MetricsSnapshot returns a copy of the gateway counters.
func (g *Gateway) MetricsSnapshot() MetricsSnapshot {
	if g == nil || g.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return g.metrics.Snapshot()
}

// LiveActors returns the number of running identity actors.
func (g *Gateway) LiveActors() int {
	return g.namespace.Live()
}

// Health pings the identity store.
func (g *Gateway) Health(ctx context.Context) (time.Duration, error) {
	return g.namespace.Store().Ping(ctx)
}

func (g *Gateway) observeOutcome(r *http.Request, out middleware.Outcome) {
	g.metrics.Observe(MetricResolveLatency, out.Took)
	if out.RefreshedToken != "" {
		g.metrics.Inc(MetricSessionRefreshed)
	}
	switch out.State {
	case middleware.Authenticated:
		g.metrics.Inc(MetricSessionAuthenticated)
	case middleware.Rejected:
		g.metrics.Inc(MetricSessionRejected)
	default:
		g.metrics.Inc(MetricSessionAnonymous)
	}
	if out.Err != nil {
		g.metrics.Inc(MetricSessionDegraded)
	}

	switch {
	case out.RefreshedToken != "":
		userID := ""
		if out.User != nil {
			userID = out.User.ID
		}
		g.emitAudit(r, audit.TypeRefresh, out.Email, userID, true, "")
	case out.Reject:
		g.emitAudit(r, audit.TypeReject, out.Email, "", false, "refresh refused")
	}
}

// actorObserver feeds identity runtime events into Metrics.
type actorObserver struct {
	metrics *Metrics
}

func (o actorObserver) ActorSpawned() { o.metrics.Inc(MetricActorSpawned) }
func (o actorObserver) ActorRetired() { o.metrics.Inc(MetricActorRetired) }

func (o actorObserver) CallFinished(_ identity.Op, took time.Duration, err error) {
	o.metrics.Observe(MetricActorCallLatency, took)
	if err == nil {
		return
	}
	var authErr *identity.AuthError
	switch {
	case errors.As(err, &authErr):
	case errors.Is(err, context.DeadlineExceeded):
		o.metrics.Inc(MetricActorCallTimeout)
	default:
		o.metrics.Inc(MetricActorCallError)
	}
}
