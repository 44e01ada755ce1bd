package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/feedsync/internal/handlers"
	"github.com/HammerMeetNail/feedsync/internal/logging"
	"github.com/HammerMeetNail/feedsync/internal/services"
)

// UserIDHeader names a user directly. Only honored when dev auth is enabled;
// unknown ids are created on first use.
const UserIDHeader = "X-User-ID"

type AuthMiddleware struct {
	verifier       services.TokenVerifier
	users          services.UserServiceInterface
	allowDevHeader bool
}

// NewAuthMiddleware builds the middleware. A nil verifier disables bearer
// tokens.
func NewAuthMiddleware(verifier services.TokenVerifier, users services.UserServiceInterface, allowDevHeader bool) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, users: users, allowDevHeader: allowDevHeader}
}

// Authenticate attaches the caller to the request context. Requests without
// credentials pass through anonymously; handlers decide whether that is
// acceptable. Invalid credentials are rejected outright.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if m.verifier == nil {
				writeError(w, http.StatusUnauthorized, "Bearer tokens are not accepted")
				return
			}
			claims, err := m.verifier.Verify(r.Context(), token)
			if err != nil {
				logging.Debug("Rejected bearer token", map[string]interface{}{"error": err.Error()})
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			user, err := m.users.ResolveSubject(r.Context(), claims.Subject, claims.Username)
			if err != nil {
				logging.Error("Resolving token subject failed", map[string]interface{}{"error": err.Error()})
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(handlers.SetUserInContext(r.Context(), user)))
			return
		}

		if raw := r.Header.Get(UserIDHeader); raw != "" && m.allowDevHeader {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid user")
				return
			}
			user, err := m.users.GetByID(r.Context(), id)
			if errors.Is(err, services.ErrUserNotFound) {
				user, err = m.users.EnsureDevUser(r.Context(), id)
			}
			if errors.Is(err, services.ErrUserNotFound) {
				writeError(w, http.StatusUnauthorized, "Invalid user")
				return
			}
			if err != nil {
				logging.Error("Loading dev user failed", map[string]interface{}{"error": err.Error()})
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(handlers.SetUserInContext(r.Context(), user)))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
