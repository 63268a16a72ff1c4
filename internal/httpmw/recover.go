package httpmw

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/mewprotocol/gateway/internal/telemetry"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	var eb errorBody
	eb.Error.Code = code
	eb.Error.Message = message
	_ = json.NewEncoder(w).Encode(eb)
}

// Recoverer converts a panic inside next into an HTTP 500 instead of
// taking down the process, logging the stack at error level.
func Recoverer(logger *telemetry.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if logger != nil {
						logger.Error(r.Context(), "panic recovered", map[string]any{
							"recover": rec,
							"stack":   string(debug.Stack()),
						})
					}
					writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
