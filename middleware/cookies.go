package middleware

import (
	"net/http"
	"time"
)

// Cookie names carrying the session tokens.
const (
	AccessCookie  = "token"
	RefreshCookie = "refreshToken"
)

// Cookies writes and reads the session cookies. Every cookie is HttpOnly,
// SameSite=Strict and scoped to "/", with no Max-Age.
type Cookies struct {
	Secure bool   `yaml:"secure"`
	Domain string `yaml:"domain"`
}

// DefaultCookies returns the production cookie settings.
func DefaultCookies() Cookies {
	return Cookies{Secure: true}
}

// Set writes a session cookie.
func (c Cookies) Set(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, c.cookie(name, value))
}

// Delete expires a session cookie on the client.
func (c Cookies) Delete(w http.ResponseWriter, name string) {
	ck := c.cookie(name, "")
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	http.SetCookie(w, ck)
}

// Get returns the cookie value or "" when absent.
func (c Cookies) Get(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// Tokens reads both session cookies from r.
func (c Cookies) Tokens(r *http.Request) Tokens {
	return Tokens{
		Access:  c.Get(r, AccessCookie),
		Refresh: c.Get(r, RefreshCookie),
	}
}

func (c Cookies) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
