package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/ipwarehouse/internal/logger"
)

const bearerPrefix = "Bearer "

// apiKeys is the set of accepted bearer tokens. Empty disables authentication.
type apiKeys [][]byte

func newAPIKeys(keys []string) apiKeys {
	var out apiKeys
	for _, k := range keys {
		if k != "" {
			out = append(out, []byte(k))
		}
	}
	return out
}

// accepts compares against every key so timing does not reveal which prefix matched.
func (ks apiKeys) accepts(token string) bool {
	found := 0
	for _, k := range ks {
		found |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	return found == 1
}

// RequireAPIKey rejects requests without "Authorization: Bearer <key>" for one of keys.
// With no non-empty key it lets everything through. Mount it on the routes to protect.
func RequireAPIKey(keys []string) func(http.Handler) http.Handler {
	accepted := newAPIKeys(keys)
	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, reason := bearerToken(r)
			if reason == "" && !accepted.accepts(token) {
				reason = "invalid api key"
			}
			if reason != "" {
				logpkg.FromContext(r.Context()).Info("request rejected", zap.String("reason", reason))
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token, or explains why the header is unusable.
func bearerToken(r *http.Request) (token, reason string) {
	h := r.Header.Get("Authorization")
	switch {
	case h == "":
		return "", "missing authorization header"
	case !strings.HasPrefix(h, bearerPrefix):
		return "", "authorization header must use Bearer scheme"
	default:
		return strings.TrimPrefix(h, bearerPrefix), ""
	}
}
