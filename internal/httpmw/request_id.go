// Package httpmw provides the gateway's HTTP middleware stack, adapted
// from the teacher's services/gateway/internal/middleware package.
package httpmw

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/mewprotocol/gateway/internal/telemetry"
)

const requestIDHeader = "X-Request-Id"

func validRequestID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 128 {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// RequestID attaches a request id (from the inbound header, if valid, or
// freshly generated via google/uuid) to both the response header and the
// request context for downstream log enrichment.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := telemetry.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
