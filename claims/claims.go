package claims

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrDecode is wrapped by every decode failure.
	ErrDecode = errors.New("claims decode failed")
	// ErrNoCandidate is returned when neither token yields an email.
	ErrNoCandidate = errors.New("no candidate email in tokens")
)

// Claims is the decoded, unverified payload of a token.
type Claims struct {
	Email    string
	IssuedAt time.Time
	Expiry   time.Time
	TokenID  string
}

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeClaims splits token into its three segments and parses the payload
// segment as a JSON object. The email is trimmed and lower-cased.
func DecodeClaims(token string) (Claims, error) {
	if token == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrDecode)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrDecode, len(parts))
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: payload encoding: %v", ErrDecode, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil || raw == nil {
		return Claims{}, fmt.Errorf("%w: payload is not an object", ErrDecode)
	}

	out := Claims{
		IssuedAt: numericDate(raw["iat"]),
		Expiry:   numericDate(raw["exp"]),
	}
	if email, ok := raw["email"].(string); ok {
		out.Email = strings.ToLower(strings.TrimSpace(email))
	}
	if jti, ok := raw["jti"].(string); ok {
		out.TokenID = jti
	}

	return out, nil
}

// CandidateEmail returns the email to route on, preferring the access token
// and falling back to the refresh token. Absent tokens are skipped.
func CandidateEmail(access, refresh string) (string, error) {
	var firstErr error
	for _, token := range [2]string{access, refresh} {
		if token == "" {
			continue
		}
		c, err := DecodeClaims(token)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if c.Email != "" {
			return c.Email, nil
		}
	}

	if firstErr != nil {
		return "", firstErr
	}
	return "", ErrNoCandidate
}

func numericDate(v any) time.Time {
	f, ok := v.(float64)
	if !ok || f <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(f), 0).UTC()
}
