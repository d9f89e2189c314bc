package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
)

// Middleware enforces a limiter per client address. Paths in exempt bypass
// the limiter entirely; the Stripe webhook must never be throttled, or
// redeliveries of paid events would bounce.
func Middleware(rl RateLimit, exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(exempt))
	for _, path := range exempt {
		skip[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.Allow(clientAddr(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr keys the limiter by IP. chi's RealIP middleware has already
// rewritten RemoteAddr when a proxy header is present.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
