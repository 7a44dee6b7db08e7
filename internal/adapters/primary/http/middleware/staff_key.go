package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

const (
	// StaffKeyHeader is the HTTP header carrying the staff shared secret
	StaffKeyHeader = "X-Staff-Key"
	// StaffKeyQueryParam is the query-string fallback, used by EventSource
	// clients that cannot set custom headers
	StaffKeyQueryParam = "staff_key"
)

// StaffKey returns a middleware that guards staff-only endpoints with a
// shared secret. The comparison is constant time.
func StaffKey(key string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(StaffKeyHeader)
			if presented == "" {
				presented = r.URL.Query().Get(StaffKeyQueryParam)
			}

			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				logger.Warn("staff key rejected",
					"request_id", GetRequestID(r.Context()),
					"path", r.URL.Path,
					"client_ip", getClientIP(r),
				)

				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeUnauthorized writes a uniform 401 response. The body never hints at
// whether the key was missing or wrong.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Authentication required","code":"UNAUTHORIZED"}`))
}
