package api

import (
	"context"
	"net/http"

	"taxi-realtime/internal/shared/util"
	"taxi-realtime/internal/trip/domain"
)

// Authenticator resolves a bearer token to the user it was issued for.
type Authenticator interface {
	Authenticate(token string) (domain.User, error)
}

type ctxKey string

const userKey ctxKey = "user"

func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				util.WriteJSONError(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			user, err := auth.Authenticate(authHeader)
			if err != nil {
				util.WriteJSONError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user AuthMiddleware attached to ctx.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userKey).(domain.User)
	return user, ok
}
