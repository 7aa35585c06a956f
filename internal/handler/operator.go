package handler

import (
	"net/http"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/contextkeys"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/service"
	"github.com/go-chi/chi/v5"
)

// OperatorHandler manages back-office accounts (admin only).
type OperatorHandler struct {
	auth *service.AuthService
}

// NewOperatorHandler creates a new OperatorHandler.
func NewOperatorHandler(auth *service.AuthService) *OperatorHandler {
	return &OperatorHandler{auth: auth}
}

// List handles GET /api/admin/operators.
func (h *OperatorHandler) List(w http.ResponseWriter, r *http.Request) {
	ops, err := h.auth.ListOperators(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "operators": ops})
}

// Create handles POST /api/admin/operators.
func (h *OperatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOperatorRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}

	op, err := h.auth.CreateOperator(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, map[string]any{"success": true, "operator": op})
}

// Delete handles DELETE /api/admin/operators/{id}.
func (h *OperatorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	op, ok := contextkeys.Operator(r.Context())
	if !ok {
		Error(w, r, domain.ErrUnauthorized("no operator session"))
		return
	}

	if err := h.auth.DeleteOperator(r.Context(), chi.URLParam(r, "id"), op.Sub); err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
