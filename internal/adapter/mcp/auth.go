package mcp

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyHeader is accepted as an alternative to an Authorization bearer token.
const APIKeyHeader = "X-API-Key"

// AuthMiddleware requires apiKey on every MCP request. apiKey is either the
// key itself or its bcrypt hash; an empty apiKey leaves the endpoint open.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	check := plainChecker(apiKey)
	if isBcryptHash(apiKey) {
		check = bcryptChecker(apiKey)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := credential(r)
		if !ok {
			unauthorized(w, "missing credentials")
			return
		}
		if !check(token) {
			unauthorized(w, "invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func plainChecker(key string) func(string) bool {
	want := sha256.Sum256([]byte(key))
	return func(token string) bool {
		got := sha256.Sum256([]byte(token))
		return subtle.ConstantTimeCompare(got[:], want[:]) == 1
	}
}

// bcryptChecker remembers the digest of the last accepted token so a client
// reusing its key does not pay the bcrypt cost on every call.
func bcryptChecker(hash string) func(string) bool {
	var verified atomic.Pointer[[sha256.Size]byte]
	return func(token string) bool {
		got := sha256.Sum256([]byte(token))
		if v := verified.Load(); v != nil && subtle.ConstantTimeCompare(got[:], v[:]) == 1 {
			return true
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			return false
		}
		verified.Store(&got)
		return true
	}
}

func credential(r *http.Request) (string, bool) {
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k, true
	}
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tasktimer-mcp"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
