package identity

import (
	"context"
	"strings"
)

// Error codes carried by AuthError.
const (
	CodeExists             = "exists"
	CodeInvalid            = "invalid"
	CodeInvalidCredentials = "invalid-credentials"
	CodeRateLimited        = "rate-limited"
)

// AuthError is a credential rejection decided by the actor.
type AuthError struct {
	Code string
}

func (e *AuthError) Error() string {
	switch e.Code {
	case CodeExists:
		return "User already exists"
	case CodeInvalid:
		return "Invalid email or password"
	case CodeInvalidCredentials:
		return "Invalid credentials"
	case CodeRateLimited:
		return "Too many login attempts"
	default:
		return "Authentication failed"
	}
}

// User is the public-safe view of an identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Grant is returned by Signup and Login.
type Grant struct {
	User         User
	Token        string
	RefreshToken string
}

// Verification is the verdict of VerifyToken. User is set only when OK.
type Verification struct {
	OK   bool
	User *User
}

// Refreshed carries the new access token; Token is empty when the refresh
// token was rejected.
type Refreshed struct {
	Token string
}

// SetResult reports whether a KV write was accepted.
type SetResult struct {
	OK bool
}

// Actor is the contract of a single identity.
type Actor interface {
	Signup(ctx context.Context, email, password string) (Grant, error)
	Login(ctx context.Context, email, password string) (Grant, error)
	VerifyToken(ctx context.Context, token string) (Verification, error)
	RefreshToken(ctx context.Context, refreshToken string) (Refreshed, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) (SetResult, error)
}

// Resolver addresses the actor for an email.
type Resolver interface {
	Actor(email string) Actor
}

// NormalizeEmail trims and lower-cases email. The result is the actor key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
