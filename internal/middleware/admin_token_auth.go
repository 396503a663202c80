package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AdminTokenHeader is the header checked when no other header is configured.
const AdminTokenHeader = "X-Admin-Token"

// AdminTokenConfig controls shared-token protection of operational endpoints like /reload.
type AdminTokenConfig struct {
	Token      string
	HeaderName string
}

// AdminToken rejects requests that do not present the shared token.
func AdminToken(cfg AdminTokenConfig) (func(http.Handler) http.Handler, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("admin token is required")
	}
	headerName := strings.TrimSpace(cfg.HeaderName)
	if headerName == "" {
		headerName = AdminTokenHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokenMatches(strings.TrimSpace(r.Header.Get(headerName)), token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = fmt.Fprint(w, `{"error":"unauthorized"}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

// tokenMatches compares digests so the comparison time does not depend on the token length.
func tokenMatches(provided, expected string) bool {
	providedDigest := sha256.Sum256([]byte(provided))
	expectedDigest := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(providedDigest[:], expectedDigest[:]) == 1
}
