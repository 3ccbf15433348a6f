package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/sessiongate/identity"
)

// Config tunes the HTTP adapter.
type Config struct {
	Cookies Cookies

	// PublishRefreshedIdentity re-verifies a freshly refreshed access token
	// and publishes its user for the current request.
	PublishRefreshedIdentity bool

	// Public reports routes that continue anonymously instead of being
	// rejected when the refresh is refused.
	Public func(*http.Request) bool

	Logger *slog.Logger

	// OnOutcome observes every resolution, including rejections.
	OnOutcome func(*http.Request, Outcome)
}

// Middleware adapts Resolve to net/http.
type Middleware struct {
	resolver identity.Resolver
	config   Config
	logger   *slog.Logger
}

// New returns a Middleware resolving sessions through resolver.
func New(resolver identity.Resolver, cfg Config) *Middleware {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{resolver: resolver, config: cfg, logger: logger}
}

// Handler guards next. Requests rejected by the state machine get 401 unless
// Config.Public matches them.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return m.wrap(next, false)
}

// Optional resolves the session for next but never rejects.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return m.wrap(next, true)
}

func (m *Middleware) wrap(next http.Handler, public bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.resolver == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		out := resolve(r.Context(), m.resolver, m.config.Cookies.Tokens(r), m.config.PublishRefreshedIdentity)
		out.Took = time.Since(start)
		if out.Err != nil {
			m.logger.Warn("session resolution degraded",
				"email", out.Email,
				"state", out.State.String(),
				"error", out.Err,
			)
		}
		if m.config.OnOutcome != nil {
			m.config.OnOutcome(r, out)
		}

		if out.RefreshedToken != "" {
			m.config.Cookies.Set(w, AccessCookie, out.RefreshedToken)
		}

		if out.Reject && !public && !m.isPublic(r) {
			WriteUnauthorized(w)
			return
		}

		ctx := r.Context()
		if out.User != nil {
			ctx = WithUser(ctx, out.User)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) isPublic(r *http.Request) bool {
	return m.config.Public != nil && m.config.Public(r)
}

// RequireUser answers 401 when no user was published for the request.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			WriteUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteUnauthorized writes the generic 401 body.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
