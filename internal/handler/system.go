package handler

import (
	"net/http"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/service"
)

// SystemHandler exposes generation settings to operators.
type SystemHandler struct {
	svc *service.SystemService
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(svc *service.SystemService) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// GetModels handles GET /api/admin/models.
func (h *SystemHandler) GetModels(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.svc.GetModels(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "catalog": catalog})
}

// SyncModels handles POST /api/admin/models/sync.
func (h *SystemHandler) SyncModels(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.svc.SyncModels(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "catalog": catalog})
}
