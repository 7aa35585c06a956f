package middleware

import (
	"net/http"
	"strings"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/contextkeys"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/handler"
)

// TokenVerifier is implemented by *service.AuthService.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.JWTClaims, error)
}

// Auth requires an operator session token and stores its claims in the context.
func Auth(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				handler.Error(w, r, domain.ErrUnauthorized("no token provided"))
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				handler.Error(w, r, domain.ErrUnauthorized("invalid authorization header"))
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				handler.Error(w, r, domain.ErrUnauthorized("invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(contextkeys.WithOperator(r.Context(), claims)))
		})
	}
}
