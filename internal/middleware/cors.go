package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// AllowedOrigin reports whether origin is in allowed. A "*" entry allows every
// origin and trailing slashes are ignored on both sides.
func AllowedOrigin(allowed []string, origin string) bool {
	normalized := strings.TrimSuffix(origin, "/")
	for _, o := range allowed {
		if o == "*" || strings.TrimSuffix(o, "/") == normalized {
			return true
		}
	}
	return false
}

// CORS answers preflight requests and sets the CORS response headers for
// allowed origins. Requests from other origins get no CORS headers.
func CORS(allowedOrigins []string, logger *slog.Logger) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if AllowedOrigin(allowedOrigins, origin) {
				return true
			}
			logger.Warn("CORS blocked origin", "origin", origin, "allowed", allowedOrigins)
			return false
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
