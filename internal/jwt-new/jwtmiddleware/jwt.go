package jwtmiddleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/lib/apperr"
)

type contextKey string

const UserKey contextKey = "user"

// Authenticator превращает токен в активного пользователя.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// NewJWTMiddleware создаёт middleware, которое кладёт аутентифицированного пользователя в контекст.
func NewJWTMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization (формат: "Bearer <token>")
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apperr.Write(w, apperr.Auth("missing token"))
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apperr.Write(w, apperr.Auth("invalid token format"))
				return
			}

			user, err := auth.Authenticate(r.Context(), parts[1])
			if err != nil {
				if appErr, ok := apperr.As(err); ok {
					apperr.Write(w, appErr)
					return
				}
				apperr.Write(w, apperr.Auth("invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRole пропускает только пользователей с одной из ролей.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := FromContext(r.Context())
			if !ok {
				apperr.Write(w, apperr.Auth("missing token"))
				return
			}
			if !user.HasRole(roles...) {
				apperr.Write(w, apperr.Forbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// FromContext извлекает пользователя из контекста.
func FromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok && user != nil
}
