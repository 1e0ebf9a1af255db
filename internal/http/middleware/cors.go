package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowedHeaders = "Content-Type, X-Request-ID, X-Vapi-Signature"
	corsAllowedMethods = "GET, POST, PUT, PATCH, OPTIONS"
)

// OriginMatcher reports whether origin is on the allowlist. "*" allows any
// non-empty origin; entries are compared without trailing slashes.
func OriginMatcher(allowedOrigins []string) func(origin string) bool {
	allowAny := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		switch origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin {
		case "":
		case "*":
			allowAny = true
		default:
			allowed[origin] = struct{}{}
		}
	}
	return func(origin string) bool {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			return false
		}
		_, listed := allowed[origin]
		return allowAny || listed
	}
}

// CORS echoes allowlisted origins. Preflight requests are answered without
// reaching next.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	match := OriginMatcher(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if match(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
				h.Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
