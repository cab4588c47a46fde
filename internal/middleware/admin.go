// internal/middleware/admin.go
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/auth"
)

// TokenVerifier checks a session token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

var _ TokenVerifier = (*auth.Sessions)(nil)

// RequireAdmin rejects requests without a valid admin bearer token.
func RequireAdmin(logger *logrus.Logger, sessions TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				deny(w, "missing bearer token")
				return
			}
			subject, err := sessions.Verify(token)
			if err != nil {
				logger.WithError(err).WithField("remote", r.RemoteAddr).Debug("rejected admin token")
				deny(w, "invalid token")
				return
			}
			if subject != auth.AdminSubject {
				deny(w, "invalid token subject")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
