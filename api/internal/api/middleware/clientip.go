package middleware

import (
	"net"
	"net/http"

	"akatsuki/api/internal/logging"
)

// ClientIP stores the caller's address in the request context so every log
// line emitted while serving it is attributed. Mount it after chi's RealIP.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithClientIP(r.Context(), remoteHost(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
