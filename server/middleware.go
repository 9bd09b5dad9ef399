package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware rejects requests with 429 once the shared token bucket
// is empty. A non-positive perSecond disables limiting.
func RateLimitMiddleware(perSecond float64, burst int) mux.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
