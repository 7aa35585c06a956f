package handler

import (
	"net/http"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/service"
)

// AuthHandler handles operator login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}
