package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/daybook/internal/auth"
)

// TokenVerifier resolves a bearer token to a user identity.
type TokenVerifier interface {
	Verify(token string) (auth.AuthContext, error)
}

// ProfileEnsurer creates the local profile row for a verified identity.
type ProfileEnsurer interface {
	Ensure(ctx context.Context, id, email string) error
}

// RequireAuth verifies the bearer token, makes sure the user has a profile
// and populates AuthContext.
func RequireAuth(verifier TokenVerifier, profiles ProfileEnsurer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ac, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected bearer token", "error", err, "remote", RealIP(r))
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if err := profiles.Ensure(r.Context(), ac.UserID, ac.Email); err != nil {
				logger.Error("ensure profile", "user_id", ac.UserID, "error", err)
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireCronSecret guards the sweep trigger with a shared secret. An empty
// secret leaves the endpoint open.
func RequireCronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" {
				got := r.Header.Get("Authorization")
				want := "Bearer " + secret
				if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
					writeError(w, http.StatusUnauthorized, "Unauthorized")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
