package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type contextKey string

const userIDKey contextKey = "auth_user_id"

// UserID returns the authenticated user's ID from a request context.
// The boolean is false when the request did not pass the middleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// WithUserID returns a context carrying an authenticated user ID.
// Exposed for tests that call services without the HTTP stack.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Middleware returns an http middleware that requires a valid bearer token
// and stores the authenticated user ID in the request context.
func Middleware(tokens *TokenManager, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "auth").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, ErrMissingAuthorizationHeader)
				return
			}

			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				unauthorized(w, ErrInvalidAuthorizationHeader)
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("token rejected")
				unauthorized(w, ErrInvalidToken)
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"kind":"unauthorized","message":"` + err.Error() + `"}}`))
}
