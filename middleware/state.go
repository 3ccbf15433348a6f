package middleware

import (
	"time"

	"github.com/MrEthical07/sessiongate/identity"
)

// State is a step of per-request session resolution.
type State int

const (
	NoTokens State = iota
	AccessValid
	AccessInvalidRefreshPending
	Authenticated
	Unauthenticated
	Rejected
)

func (s State) String() string {
	switch s {
	case NoTokens:
		return "no_tokens"
	case AccessValid:
		return "access_valid"
	case AccessInvalidRefreshPending:
		return "refresh_pending"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Tokens are the raw cookie values of a request. Absent cookies are "".
type Tokens struct {
	Access  string
	Refresh string
}

// Outcome is the decision of Resolve.
//
// State is the final state and Path lists every state visited. User is set
// only when State is Authenticated. RefreshedToken is the new access token
// to write back. Reject means respond 401 unless the route is public. Err
// records a swallowed internal failure. Took is the resolution latency as
// measured by the HTTP adapter.
type Outcome struct {
	State          State
	Path           []State
	Email          string
	User           *identity.User
	RefreshedToken string
	Reject         bool
	Err            error
	Took           time.Duration
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Path = append(o.Path, s)
}
