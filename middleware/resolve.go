package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessiongate/claims"
	"github.com/MrEthical07/sessiongate/identity"
)

// Errors recorded in Outcome.Err. They never reach the client.
var (
	ErrDecode        = errors.New("session claims decode failed")
	ErrActor         = errors.New("identity actor failed")
	ErrResolverPanic = errors.New("session resolver panicked")
)

// Resolve evaluates the session state machine for tokens. It never
// publishes the user on the refresh path.
func Resolve(ctx context.Context, resolver identity.Resolver, tokens Tokens) Outcome {
	return resolve(ctx, resolver, tokens, false)
}

func resolve(ctx context.Context, resolver identity.Resolver, tokens Tokens, publishRefreshed bool) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Path:  append(out.Path, Unauthenticated),
				State: Unauthenticated,
				Email: out.Email,
				Err:   fmt.Errorf("%w: %v", ErrResolverPanic, r),
			}
		}
	}()

	if tokens.Access == "" && tokens.Refresh == "" {
		out.enter(NoTokens)
		out.enter(Unauthenticated)
		return out
	}

	email, err := claims.CandidateEmail(tokens.Access, tokens.Refresh)
	if err != nil {
		out.enter(Unauthenticated)
		out.Err = fmt.Errorf("%w: %v", ErrDecode, err)
		return out
	}
	out.Email = email

	actor := resolver.Actor(email)

	if tokens.Access != "" {
		v, err := actor.VerifyToken(ctx, tokens.Access)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			// treated as a failed verdict
		case err != nil:
			out.enter(Unauthenticated)
			out.Err = fmt.Errorf("%w: verify: %v", ErrActor, err)
			return out
		case v.OK && v.User != nil:
			out.enter(AccessValid)
			out.User = v.User
			out.enter(Authenticated)
			return out
		}
	}

	if tokens.Refresh == "" {
		out.enter(Rejected)
		out.Reject = true
		return out
	}

	res, err := actor.RefreshToken(ctx, tokens.Refresh)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		out.enter(Unauthenticated)
		out.Err = fmt.Errorf("%w: refresh: %v", ErrActor, err)
		return out
	}
	if err != nil || res.Token == "" {
		out.enter(Rejected)
		out.Reject = true
		return out
	}

	out.enter(AccessInvalidRefreshPending)
	out.RefreshedToken = res.Token
	if !publishRefreshed {
		return out
	}

	v, err := actor.VerifyToken(ctx, res.Token)
	if err != nil {
		out.Err = fmt.Errorf("%w: verify refreshed: %v", ErrActor, err)
		return out
	}
	if v.OK && v.User != nil {
		out.User = v.User
		out.enter(Authenticated)
	}
	return out
}
