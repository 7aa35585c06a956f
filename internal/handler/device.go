package handler

import (
	"net/http"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/identity"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/service"
)

// DeviceHandler serves device registration and usage lookups.
type DeviceHandler struct {
	usage *service.UsageService
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(usage *service.UsageService) *DeviceHandler {
	return &DeviceHandler{usage: usage}
}

// Initialize handles POST /api/auth/initialize-device.
func (h *DeviceHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req domain.DeviceRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	st, err := h.usage.InitializeDevice(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, st)
}

// Verify handles POST /api/auth/verify-device.
func (h *DeviceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.DeviceRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	st, err := h.usage.VerifyDevice(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, st)
}

// RegisterAnonymous handles POST /api/auth/register-anonymous.
func (h *DeviceHandler) RegisterAnonymous(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterAnonymousRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	st, err := h.usage.RegisterAnonymous(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, st)
}

// Usage handles GET /api/usage for whichever identity the request carries.
func (h *DeviceHandler) Usage(w http.ResponseWriter, r *http.Request) {
	ident := identity.Resolve(r, nil)
	d, err := h.usage.Snapshot(r.Context(), ident)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"identity": ident,
		"usage":    d,
	})
}
