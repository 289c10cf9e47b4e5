package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cloo-solutions/docindex/internal/api"
)

type contextKey string

// APIKeyAuth requires "Authorization: Bearer <key>" matching one of the
// configured keys. Keys map to a client name used in logs. With no keys
// configured every request passes.
func APIKeyAuth(keys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			client, ok := matchKey(keys, token)
			if !ok {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r.WithContext(setClient(r.Context(), client)))
		})
	}
}

// matchKey compares against every key in constant time.
func matchKey(keys map[string]string, token string) (string, bool) {
	var client string
	found := false
	for key, name := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1 {
			client = name
			found = true
		}
	}
	return client, found
}

// ParseAPIKeys turns "name:key,key2" into a key to client map. Entries
// without a name are called "default".
func ParseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, key, ok := strings.Cut(entry, ":")
		if !ok {
			name, key = "default", entry
		}
		name, key = strings.TrimSpace(name), strings.TrimSpace(key)
		if key == "" {
			continue
		}
		keys[key] = name
	}
	return keys
}
