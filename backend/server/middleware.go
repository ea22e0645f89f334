package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/jghoshh/taskvibe/backend/server/contextKey"
)

// jwtMiddleware reads the bearer token, if any, and puts the user id it carries into
// the request context. A rejected token is recorded under JwtErrorKey instead.
// Requests always continue; requireUser decides whether a user is needed.
func (s *Server) jwtMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok && token != "" {
			userID, err := s.auth.ParseAccessToken(token)
			var ctx context.Context
			if err != nil {
				ctx = context.WithValue(r.Context(), contextKey.JwtErrorKey, err)
			} else {
				ctx = context.WithValue(r.Context(), contextKey.UserIDKey, userID)
			}
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser answers 401 unless jwtMiddleware found a valid token. A token that was
// presented but rejected is flagged in WWW-Authenticate.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userIDFrom(r.Context()) == "" {
			if _, rejected := r.Context().Value(contextKey.JwtErrorKey).(error); rejected {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			}
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and provides a generic error message to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %v", err)
				writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(contextKey.UserIDKey).(string)
	return userID
}
