package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// APIKeyHeader carries the shared secret on every protected request.
const APIKeyHeader = "Authorization"

const forbiddenBody = `{"message": "Could not validate credentials"}`

type APIKeyMiddleware struct {
	key    []byte
	logger *slog.Logger
}

func NewAPIKeyMiddleware(key string, logger *slog.Logger) *APIKeyMiddleware {
	return &APIKeyMiddleware{key: []byte(key), logger: logger}
}

// ==============================================================================
// 1. Shared-Secret Access
// ==============================================================================

// RequireAPIKey rejects any request whose Authorization header does not match
// the configured key. An empty configured key rejects everything.
func (m *APIKeyMiddleware) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get(APIKeyHeader)

		// 🛡️ Constant-time compare; lengths still leak, contents do not
		if len(m.key) == 0 || subtle.ConstantTimeCompare([]byte(presented), m.key) != 1 {
			m.logger.WarnContext(r.Context(), "api key rejected",
				slog.String("path", r.URL.Path),
				slog.Bool("header_present", presented != ""),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(forbiddenBody))
			return
		}

		next.ServeHTTP(w, r)
	})
}
