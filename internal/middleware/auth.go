package middleware

import (
	"context"
	"net/http"
	"strings"

	"researchhub-chat/internal/user"
)

type contextKey string

const principalKey contextKey = "principal"

// TokenValidator decouples the middleware from the user service.
type TokenValidator interface {
	ValidateToken(tokenString string) (user.Principal, error)
}

type Auth struct {
	validator TokenValidator
}

func NewAuth(v TokenValidator) *Auth {
	return &Auth{validator: v}
}

// Handle authenticates the request and injects the Principal into context.
// Tokens arrive in the Authorization header, or as a query parameter for
// websocket upgrades (browsers cannot set headers on those).
func (a *Auth) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			http.Error(w, "missing authentication token", http.StatusUnauthorized)
			return
		}

		principal, err := a.validator.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithPrincipal(ctx context.Context, p user.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated identity of the request, if any.
func PrincipalFrom(ctx context.Context) (user.Principal, bool) {
	p, ok := ctx.Value(principalKey).(user.Principal)
	return p, ok && p.ID != 0
}
