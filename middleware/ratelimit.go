package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pathpal/pathpal/internal/rate"
)

// RateLimit admits requests through one limiter tier keyed by client IP.
// Rejections get a 429 with a Retry-After header and the tier's message.
func RateLimit(limiter *rate.Limiter, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIPFromContext(r.Context())
			if ip == "" {
				ip = resolveIP(r)
			}

			result := limiter.Allow(ip)
			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterMinutes*60))
				writeJSONError(w, http.StatusTooManyRequests,
					fmt.Sprintf("%s. Please wait %d minutes.", message, result.RetryAfterMinutes))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
