package internaldefs

import (
	sessiongate "github.com/MrEthical07/sessiongate"
)

// CounterDef names one gateway counter for export.
type CounterDef struct {
	ID   sessiongate.MetricID
	Name string
	Help string
}

// HistogramDef names one gateway latency histogram for export.
type HistogramDef struct {
	ID   sessiongate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: sessiongate.MetricSignupSuccess, Name: "sg_signup_success_total", Help: "Accounts created."},
	{ID: sessiongate.MetricSignupDuplicate, Name: "sg_signup_duplicate_total", Help: "Signups rejected because the account exists."},
	{ID: sessiongate.MetricSignupInvalid, Name: "sg_signup_invalid_total", Help: "Signups rejected for malformed input."},
	{ID: sessiongate.MetricLoginSuccess, Name: "sg_login_success_total", Help: "Successful logins."},
	{ID: sessiongate.MetricLoginFailure, Name: "sg_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: sessiongate.MetricLoginRateLimited, Name: "sg_login_rate_limited_total", Help: "Logins refused by the per-email limiter."},
	{ID: sessiongate.MetricAuthInternalError, Name: "sg_auth_internal_error_total", Help: "Signup or login calls that failed internally."},
	{ID: sessiongate.MetricLogout, Name: "sg_logout_total", Help: "Logout requests."},
	{ID: sessiongate.MetricSessionAuthenticated, Name: "sg_session_authenticated_total", Help: "Requests that resolved to a user."},
	{ID: sessiongate.MetricSessionAnonymous, Name: "sg_session_anonymous_total", Help: "Requests that continued without a user."},
	{ID: sessiongate.MetricSessionRefreshed, Name: "sg_session_refreshed_total", Help: "Access tokens reissued from a refresh token."},
	{ID: sessiongate.MetricSessionRejected, Name: "sg_session_rejected_total", Help: "Requests rejected by the session middleware."},
	{ID: sessiongate.MetricSessionDegraded, Name: "sg_session_degraded_total", Help: "Resolutions that fell back to anonymous on an internal error."},
	{ID: sessiongate.MetricDataRead, Name: "sg_data_read_total", Help: "Per-user data reads."},
	{ID: sessiongate.MetricDataWrite, Name: "sg_data_write_total", Help: "Per-user data writes."},
	{ID: sessiongate.MetricDataWriteRejected, Name: "sg_data_write_rejected_total", Help: "Per-user data writes refused or failed."},
	{ID: sessiongate.MetricActorSpawned, Name: "sg_actor_spawned_total", Help: "Identity actors started."},
	{ID: sessiongate.MetricActorRetired, Name: "sg_actor_retired_total", Help: "Identity actors retired after idling."},
	{ID: sessiongate.MetricActorCallError, Name: "sg_actor_call_error_total", Help: "Identity actor calls that returned an error."},
	{ID: sessiongate.MetricActorCallTimeout, Name: "sg_actor_call_timeout_total", Help: "Identity actor calls that hit the call deadline."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessiongate.MetricResolveLatency, Name: "sg_session_resolve_latency_seconds", Help: "Session resolution latency."},
	{ID: sessiongate.MetricActorCallLatency, Name: "sg_actor_call_latency_seconds", Help: "Identity actor call latency."},
}

// HistogramBounds are the Prometheus le labels of the eight buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the instrument name suffixes matching HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
