// Package middleware carries the session layer of the authorization
// gate: every protected route verifies the user-session credential
// first, so an invalid session never leaks whether a card exists.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dan9191/card-vault/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type contextKey string

const userIDKey contextKey = "userID"

// Auth returns middleware that validates the Authorization bearer
// credential and injects the user identifier into the request context.
func Auth(auth *service.AuthService, log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, ok := bearerCredential(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			userID, err := auth.VerifySession(r.Context(), credential)
			if err != nil {
				log.WithError(err).Warn("session verification failed")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user identifier from the context
func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

func bearerCredential(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
