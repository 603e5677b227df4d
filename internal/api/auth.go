package api

import (
	"crypto/subtle"
	"net/http"
	"regexp"
	"strings"
)

// bearerPrefix is stripped from the Authorization header when present.
var bearerPrefix = regexp.MustCompile(`(?i)^bearer\s+`)

// credential extracts the caller's key: X-API-Key first, then the
// Authorization header with an optional Bearer prefix.
func credential(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return strings.TrimSpace(bearerPrefix.ReplaceAllString(r.Header.Get("Authorization"), ""))
}

// authorize reports whether the request may mutate. With no configured key
// every request is authorized.
func (s *Server) authorize(r *http.Request) bool {
	return s.checkKey(credential(r))
}

// checkKey compares a presented key against the configured one in constant time.
func (s *Server) checkKey(presented string) bool {
	if s.secCfg.APIKey == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.secCfg.APIKey)) == 1
}

// requireAuth rejects requests without a valid credential.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			writeErr(w, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isMutating reports whether the verb writes when routed to a table.
func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
