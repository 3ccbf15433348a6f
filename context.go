package sessiongate

import (
	"context"
	"net"
	"net/http"
)

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Audit events
// carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// withRemoteIP records r.RemoteAddr unless an upstream handler already set
// the client IP.
func withRemoteIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if clientIPFromContext(r.Context()) == "" {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			r = r.WithContext(WithClientIP(r.Context(), host))
		}
		next.ServeHTTP(w, r)
	})
}
