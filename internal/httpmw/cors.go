package httpmw

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig mirrors the teacher's corsConfig shape but is populated from
// internal/config instead of raw environment variables, since this
// gateway centralizes configuration in one YAML-backed struct.
type CORSConfig struct {
	AllowedOrigins []string
	allowAll       bool
}

// NewCORSConfig builds a CORSConfig from the configured allowed origins.
func NewCORSConfig(origins []string) CORSConfig {
	cfg := CORSConfig{AllowedOrigins: origins}
	for _, o := range origins {
		if o == "*" {
			cfg.allowAll = true
			break
		}
	}
	return cfg
}

func (cfg CORSConfig) originAllowed(origin string) (string, bool) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", false
	}
	if cfg.allowAll {
		return "*", true
	}
	for _, o := range cfg.AllowedOrigins {
		if o == origin {
			return origin, true
		}
	}
	return "", false
}

// CORS applies cfg's allowed-origin policy to every request, answering
// preflight OPTIONS requests directly.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowed, ok := cfg.originAllowed(r.Header.Get("Origin")); ok {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				if allowed != "*" {
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(600))
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
