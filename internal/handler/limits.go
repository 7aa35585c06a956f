package handler

import (
	"net/http"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
)

// LimitsHandler publishes the monthly allowance per tier.
type LimitsHandler struct {
	tiers []domain.Tier
}

// NewLimitsHandler creates a new LimitsHandler.
func NewLimitsHandler(tiers []domain.Tier) *LimitsHandler {
	return &LimitsHandler{tiers: tiers}
}

// List handles GET /api/limits.
func (h *LimitsHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"tiers": h.tiers})
}
