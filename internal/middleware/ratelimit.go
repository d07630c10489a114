package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit applies a fixed window per caller. Runs after RequireUser so the
// user id is available; falls back to the Authorization header, then the IP.
func RateLimit(requests int, window time.Duration, disabled bool) func(http.Handler) http.Handler {
	if disabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(callerKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded, please try again later"}`))
		}),
	)
}

func callerKey(r *http.Request) (string, error) {
	if u, ok := CurrentUser(r.Context()); ok && u.ID != "" {
		return "user:" + u.ID, nil
	}
	if a := r.Header.Get("Authorization"); a != "" {
		return "auth:" + a, nil
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host, nil
}
