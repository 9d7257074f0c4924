// Package auth guards the HTTP endpoints with a static bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// NewAuthMiddleware returns middleware that requires
//
//	Authorization: Bearer <token>
//
// on every request except those whose URL path is listed in public. The
// prefix is case-sensitive and followed by exactly one space. An empty token
// disables the check.
func NewAuthMiddleware(token string, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if !validBearer(r.Header.Get("Authorization"), token) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="rvkernel"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validBearer(header, token string) bool {
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	provided := header[len(bearerPrefix):]
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(token)) == 1
}
