package httpserver

import (
	"net/http"

	apierrors "github.com/musichub/server/internal/errors"
)

// securityHeadersMiddleware adds security headers to all responses.
// HSTS is only sent on TLS requests.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin checks for "Authorization: Bearer <key>". With no key
// configured, openWhenUnset decides whether the route is public or closed.
func requireAdmin(key string, openWhenUnset bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" && openWhenUnset {
				next.ServeHTTP(w, r)
				return
			}
			if !validAdminKey(r, key) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="musichub"`)
				apierrors.WriteSimpleError(w, apierrors.ErrCodeUnauthorized, "admin credentials required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
