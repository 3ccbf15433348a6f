package sessiongate

import (
	"strings"
	"time"

	"github.com/MrEthical07/sessiongate/jwt"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return "unknown"
	}
}

// LintWarning is a setting that validates but is risky in production.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings produced by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// AtLeast returns the warnings at or above min.
func (r LintResult) AtLeast(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

const (
	lintMaxLeeway     = time.Minute
	lintMaxAccessTTL  = 30 * time.Minute
	lintMaxRefreshTTL = 30 * 24 * time.Hour
	lintMinArgonMemKB = 64 * 1024
)

// Lint reports settings that pass Validate but weaken the deployment. It
// never fails; callers decide whether to log or refuse.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.Cookies.Secure {
		add("cookies_insecure", LintHigh, "session cookies are sent over plain HTTP")
	}
	if c.Redis.Embedded {
		add("redis_embedded", LintHigh, "accounts live in an in-process redis and vanish on restart")
	}
	if c.Identity.LoginLimit.MaxAttempts <= 0 {
		add("rate_limits_disabled", LintHigh, "failed logins are not throttled")
	}

	if c.JWT.Leeway > lintMaxLeeway {
		add("leeway_large", LintWarn, "jwt leeway above 1m extends every token lifetime")
	}
	if c.JWT.AccessTTL > lintMaxAccessTTL {
		add("access_ttl_long", LintWarn, "access tokens outlive 30m; revocation only takes effect at refresh")
	}
	if c.JWT.RefreshTTL > lintMaxRefreshTTL {
		add("refresh_ttl_long", LintWarn, "refresh tokens outlive 30 days")
	}
	if c.Password.Memory < lintMinArgonMemKB || c.Password.Time < 2 {
		add("argon2_weak", LintWarn, "argon2id cost is below 64 MiB / 2 passes")
	}
	if c.Server.WriteTimeout > 0 && c.Identity.CallTimeout >= c.Server.WriteTimeout {
		add("call_timeout_exceeds_write", LintWarn, "actor calls may outlive the HTTP write deadline")
	}

	if jwt.SigningMethod(strings.ToLower(c.JWT.SigningMethod)) == jwt.MethodHS256 {
		add("signing_symmetric", LintInfo, "hs256 shares the signing key with every verifier")
	}
	if c.Cookies.Domain != "" {
		add("cookie_domain_set", LintInfo, "session cookies are shared with subdomains of "+c.Cookies.Domain)
	}
	if c.Session.PublishRefreshedIdentity {
		add("publish_refreshed_identity", LintInfo, "refreshed requests are served as authenticated")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "authentication events are not recorded")
	}
	return ws
}
