package httpmw

import (
	"net/http"

	"github.com/mewprotocol/gateway/internal/ratelimit"
)

// RateLimit applies lim's "messages" lane to HTTP-ingested envelopes,
// keyed by the path parameter extractor idFromRequest.
func RateLimit(lim *ratelimit.Limiter, idFromRequest func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := idFromRequest(r)
			if id != "" && !lim.Allow("messages", id) {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
