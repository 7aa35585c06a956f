// Package contextkeys carries the signed-in operator through request contexts.
package contextkeys

import (
	"context"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
)

type contextKey string

const operatorKey contextKey = "operator"

// WithOperator stores the verified session claims.
func WithOperator(ctx context.Context, claims *domain.JWTClaims) context.Context {
	return context.WithValue(ctx, operatorKey, claims)
}

// Operator returns the claims stored by WithOperator.
func Operator(ctx context.Context) (*domain.JWTClaims, bool) {
	claims, ok := ctx.Value(operatorKey).(*domain.JWTClaims)
	return claims, ok && claims != nil
}
