package claims

import (
	"errors"
	"strings"
	"testing"
)

// FuzzDecodeClaims feeds arbitrary cookie values to the unverified decoder.
// Goal: no panics, and every failure wraps ErrDecode.
func FuzzDecodeClaims(f *testing.F) {
	f.Add(tokenWithPayload(`{"email":"A@x.com","iat":1700000000,"exp":1700000900,"jti":"j1"}`))
	f.Add(tokenWithPayload(`{"email":42}`))
	f.Add(tokenWithPayload(`[]`))
	f.Add(tokenWithPayload(`null`))
	f.Add("")
	f.Add("..")
	f.Add("a.b")
	f.Add("a.b.c.d")
	f.Add("eyJhbGciOiJub25lIn0.%%%.sig")

	f.Fuzz(func(t *testing.T, token string) {
		c, err := DecodeClaims(token)
		if err != nil {
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("error does not wrap ErrDecode: %v", err)
			}
			return
		}
		if c.Email != strings.ToLower(strings.TrimSpace(c.Email)) {
			t.Fatalf("email not normalized: %q", c.Email)
		}

		email, err := CandidateEmail(token, "")
		if err == nil && email != c.Email {
			t.Fatalf("candidate %q differs from decoded %q", email, c.Email)
		}
	})
}
