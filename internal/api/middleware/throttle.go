package middleware

import (
	"net/http"

	"github.com/crewviz/reportd/internal/api/shared"
	"github.com/crewviz/reportd/internal/ratelimit"
)

// Throttle gates every request through the token bucket for the given
// route class. Requests that find the bucket empty are rejected with
// 429 before any handler work happens.
func Throttle(limiter *ratelimit.Limiter, routeClass string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.TryAcquire(routeClass) {
				shared.RespondWithError(w, r, http.StatusTooManyRequests, "Too many concurrent report requests, try again shortly")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
