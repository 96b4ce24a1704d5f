// Package auth guards the HTTP transport of the MCP server.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authorizer defines the interface for request authorization
type Authorizer interface {
	Authorize(ctx context.Context, token string) (bool, error)
}

// AllowAll authorizes every request. Used when no HTTP token is configured.
type AllowAll struct{}

// Authorize always returns true for AllowAll
func (AllowAll) Authorize(ctx context.Context, token string) (bool, error) {
	return true, nil
}

// StaticToken accepts a single shared bearer token.
type StaticToken struct {
	token []byte
}

// NewStaticToken returns an authorizer for token. An empty token yields AllowAll.
func NewStaticToken(token string) Authorizer {
	if token == "" {
		return AllowAll{}
	}
	return &StaticToken{token: []byte(token)}
}

// Authorize compares in constant time so the token cannot be guessed byte by byte.
func (s *StaticToken) Authorize(ctx context.Context, token string) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(token), s.token) == 1, nil
}

// bearerToken strips an optional "Bearer " prefix.
func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return strings.TrimSpace(header)
}

// Middleware wraps an http.Handler with authorization checking.
// It skips authorization for the /health endpoint and for AllowAll.
func Middleware(a Authorizer, next http.Handler) http.Handler {
	if _, open := a.(AllowAll); open || a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, `{"error":"missing Authorization header"}`)
			return
		}

		authorized, err := a.Authorize(r.Context(), bearerToken(header))
		if err != nil {
			writeError(w, http.StatusInternalServerError, `{"error":"authorization failed"}`)
			return
		}

		if !authorized {
			writeError(w, http.StatusUnauthorized, `{"error":"unauthorized"}`)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
