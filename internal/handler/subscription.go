package handler

import (
	"net/http"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/service"
	"github.com/go-chi/chi/v5"
)

// SubscriptionHandler exposes the purchase verification and claim flow.
type SubscriptionHandler struct {
	svc *service.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(svc *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

// ProcessPaymentFirst handles POST /api/subscriptions/process-payment-first.
func (h *SubscriptionHandler) ProcessPaymentFirst(w http.ResponseWriter, r *http.Request) {
	var req domain.StagePurchaseRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	resp, err := h.svc.VerifyAndStage(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// Claim handles POST /api/subscriptions/claim-subscription.
func (h *SubscriptionHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req domain.ClaimRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	sub, err := h.svc.Claim(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "subscription": sub})
}

// VerifyPurchase handles POST /api/subscriptions/verify-purchase for signed-in users.
func (h *SubscriptionHandler) VerifyPurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.LinkPurchaseRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	sub, err := h.svc.LinkToUser(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "subscription": sub})
}

// Status handles POST /api/subscriptions/status.
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req domain.StagePurchaseRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	result, err := h.svc.Status(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

// History handles GET /api/subscriptions/history/{uid}.
func (h *SubscriptionHandler) History(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.History(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "subscriptions": subs})
}

// Get handles GET /api/subscriptions/{id}.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "subscription": sub})
}

// Profile handles GET /api/auth/profile/{uid}.
func (h *SubscriptionHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profile(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "user": p})
}

// CheckSubscription handles POST /api/auth/check-subscription.
func (h *SubscriptionHandler) CheckSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID string `json:"uid"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	status, err := h.svc.CheckUserSubscription(r.Context(), req.UID)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, status)
}

// UpdateStatus handles PUT /api/subscriptions/update-status (admin only).
func (h *SubscriptionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateStatusRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	sub, err := h.svc.UpdateStatus(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "subscription": sub})
}
