package sessiongate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/sessiongate/claims"
	"github.com/MrEthical07/sessiongate/identity"
	"github.com/MrEthical07/sessiongate/internal/audit"
	"github.com/MrEthical07/sessiongate/middleware"
)

const defaultDataKey = "data"

func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /signup", g.handleSignup)
	mux.HandleFunc("POST /login", g.handleLogin)
	mux.HandleFunc("POST /logout", g.handleLogout)

	mux.Handle("GET /data", g.protected(g.handleGetData))
	mux.Handle("POST /data", g.protected(g.handleSetData))
	mux.Handle("GET /protected/profile", g.protected(g.handleProfile))

	mux.Handle("GET /{$}", g.session.Optional(http.HandlerFunc(g.handleIndex)))
	mux.HandleFunc("GET /healthz", g.handleHealth)

	return withRemoteIP(mux)
}

func (g *Gateway) protected(h http.HandlerFunc) http.Handler {
	return g.session.Handler(middleware.RequireUser(h))
}

func (g *Gateway) handleSignup(w http.ResponseWriter, r *http.Request) {
	g.handleCredentials(w, r, audit.TypeSignup)
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	g.handleCredentials(w, r, audit.TypeLogin)
}

func (g *Gateway) handleCredentials(w http.ResponseWriter, r *http.Request, op string) {
	if err := g.parseForm(w, r); err != nil {
		g.writeError(w, ErrMissingFields)
		return
	}
	email := r.PostFormValue("email")
	pass := r.PostFormValue("password")
	if email == "" || pass == "" {
		g.writeError(w, ErrMissingFields)
		return
	}
	normalized := identity.NormalizeEmail(email)

	actor := g.namespace.Actor(normalized)
	var (
		grant identity.Grant
		err   error
	)
	if op == audit.TypeSignup {
		grant, err = actor.Signup(r.Context(), email, pass)
	} else {
		grant, err = actor.Login(r.Context(), email, pass)
	}

	if err != nil {
		g.countCredentialFailure(op, err)
		var authErr *identity.AuthError
		reason := "internal"
		if errors.As(err, &authErr) {
			reason = authErr.Code
		} else {
			g.logger.Error(op+" failed", "email", normalized, "error", err)
			err = fmt.Errorf("%w: %v", ErrAuthFailure, err)
		}
		g.emitAudit(r, op, normalized, "", false, reason)
		g.writeError(w, err)
		return
	}

	if op == audit.TypeSignup {
		g.metrics.Inc(MetricSignupSuccess)
	} else {
		g.metrics.Inc(MetricLoginSuccess)
	}
	g.emitAudit(r, op, grant.User.Email, grant.User.ID, true, "")

	g.config.Cookies.Set(w, middleware.AccessCookie, grant.Token)
	g.config.Cookies.Set(w, middleware.RefreshCookie, grant.RefreshToken)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (g *Gateway) countCredentialFailure(op string, err error) {
	var authErr *identity.AuthError
	if !errors.As(err, &authErr) {
		g.metrics.Inc(MetricAuthInternalError)
		return
	}
	switch authErr.Code {
	case identity.CodeExists:
		g.metrics.Inc(MetricSignupDuplicate)
	case identity.CodeInvalid:
		g.metrics.Inc(MetricSignupInvalid)
	case identity.CodeRateLimited:
		g.metrics.Inc(MetricLoginRateLimited)
	default:
		if op == audit.TypeLogin {
			g.metrics.Inc(MetricLoginFailure)
		}
	}
}

func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	tokens := g.config.Cookies.Tokens(r)
	email, _ := claims.CandidateEmail(tokens.Access, tokens.Refresh)

	g.config.Cookies.Delete(w, middleware.AccessCookie)
	g.config.Cookies.Delete(w, middleware.RefreshCookie)

	g.metrics.Inc(MetricLogout)
	g.emitAudit(r, audit.TypeLogout, email, "", true, "")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (g *Gateway) handleGetData(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	key := r.URL.Query().Get("key")
	if key == "" {
		key = defaultDataKey
	}

	value, found, err := g.namespace.Actor(user.Email).Get(r.Context(), key)
	if err != nil {
		g.logger.Warn("data read failed", "email", user.Email, "key", key, "error", err)
		g.writeError(w, ErrGetFailed)
		return
	}
	g.metrics.Inc(MetricDataRead)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"data": optional(value, found),
	})
}

func (g *Gateway) handleSetData(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	if err := g.parseForm(w, r); err != nil {
		g.writeError(w, ErrMissingFields)
		return
	}
	key := r.PostFormValue("key")
	value := r.PostFormValue("value")
	if key == "" {
		g.writeError(w, ErrMissingFields)
		return
	}

	res, err := g.namespace.Actor(user.Email).Set(r.Context(), key, value)
	if err != nil {
		g.logger.Warn("data write failed", "email", user.Email, "key", key, "error", err)
	}
	if err != nil || !res.OK {
		g.metrics.Inc(MetricDataWriteRejected)
		g.writeError(w, ErrSetFailed)
		return
	}
	g.metrics.Inc(MetricDataWrite)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"data": map[string]string{
			"key":   key,
			"value": value,
		},
	})
}

func (g *Gateway) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": user,
	})
}

func (g *Gateway) handleIndex(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"ok":   true,
		"user": nil,
		"data": nil,
	}

	if user, ok := middleware.UserFromContext(r.Context()); ok {
		body["user"] = user
		value, found, err := g.namespace.Actor(user.Email).Get(r.Context(), defaultDataKey)
		if err != nil {
			g.logger.Warn("index data read failed", "email", user.Email, "error", err)
		}
		body["data"] = optional(value, found)
	}

	writeJSON(w, http.StatusOK, body)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	latency, err := g.Health(ctx)
	if err != nil {
		g.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"redis_ms":    latency.Milliseconds(),
		"live_actors": g.LiveActors(),
	})
}

// parseForm accepts urlencoded and multipart bodies up to
// Server.MaxFormBytes.
func (g *Gateway) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, g.config.Server.MaxFormBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(g.config.Server.MaxFormBytes)
	}
	return r.ParseForm()
}

func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	status, msg := errorResponse(err)
	writeJSON(w, status, map[string]string{"error": msg})
}

func optional(value string, found bool) any {
	if !found {
		return nil
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
