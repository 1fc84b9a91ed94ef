package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/pathpal/pathpal/session"
)

type sessionContextKey struct{}

type clientIPContextKey struct{}

// SessionFromContext returns the session attached by [LoadSession].
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok
}

// ClientIPFromContext returns the IP resolved by [RealIP], falling back to
// the empty string.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// RealIP resolves the client address once per request and stores it in the
// context. The first X-Forwarded-For hop wins, then X-Real-IP, then the
// connection's remote address.
func RealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPContextKey{}, resolveIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func resolveIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
