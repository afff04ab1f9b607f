// Package httpapi wires the translation engine (pkg/orchestrator,
// pkg/dialect, pkg/translator) to plain net/http handlers: the routes,
// bearer-auth gate, and upstream-header construction described for the
// gateway's client-facing surface. Handlers are framework-agnostic
// http.Handler values so every cmd/gateway* entrypoint can mount the same
// logic regardless of which router library it wires up.
package httpapi

import (
	"net/http"
	"strings"
)

// Authenticator checks a request's bearer token against the configured
// worker auth keys. A zero-value Authenticator (no keys configured)
// rejects every request, since an open gateway is never the intended
// deployment.
type Authenticator struct {
	Keys map[string]bool
}

// NewAuthenticator builds an Authenticator from the configured key list.
func NewAuthenticator(keys []string) *Authenticator {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return &Authenticator{Keys: m}
}

// Token extracts the bearer token from a request: Authorization: Bearer
// <t>, a bare Authorization: <t>, or x-api-key: <t>, in that order.
func Token(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return rest
		}
		return auth
	}
	return r.Header.Get("x-api-key")
}

// Allow reports whether token matches one of the configured keys.
func (a *Authenticator) Allow(token string) bool {
	return token != "" && a.Keys[token]
}

// Middleware wraps next, rejecting any request whose bearer token doesn't
// match a configured worker auth key with a 401 and WWW-Authenticate:
// Bearer, per the uniform error body shape.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Allow(Token(r)) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			WriteError(w, http.StatusUnauthorized, "missing or unrecognized bearer token", "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
