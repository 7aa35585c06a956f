package middleware

import (
	"net/http"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/contextkeys"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/handler"
)

// AdminRole is the operator role allowed past AdminOnly.
const AdminRole = "admin"

// AdminOnly must run after Auth, which puts the role in the context.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, ok := contextkeys.Operator(r.Context())
		if !ok || op.Role != AdminRole {
			handler.Error(w, r, domain.ErrForbidden("forbidden: admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
