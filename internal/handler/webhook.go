package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/service"
	"github.com/rs/zerolog/log"
)

const SignatureHeader = "X-Webhook-Signature"

// WebhookHandler receives renewal and cancellation events from the billing
// relay and applies them like an admin status update.
type WebhookHandler struct {
	svc    *service.SubscriptionService
	secret string
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(svc *service.SubscriptionService, secret string) *WebhookHandler {
	return &WebhookHandler{svc: svc, secret: secret}
}

// SubscriptionEvent handles POST /api/subscriptions/webhook. The body must be
// signed with "sha256=<hex hmac>" in X-Webhook-Signature.
func (h *WebhookHandler) SubscriptionEvent(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		Error(w, r, domain.ErrConfiguration("subscription webhook secret not configured"))
		return
	}

	body, err := readBody(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	if !verifySignature(r.Header.Get(SignatureHeader), body, h.secret) {
		log.Ctx(r.Context()).Warn().Msg("Rejected webhook with invalid signature")
		Error(w, r, domain.ErrUnauthorized("invalid signature"))
		return
	}

	var req domain.UpdateStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		Error(w, r, domain.ErrBadRequest("invalid JSON body"))
		return
	}
	sub, err := h.svc.UpdateStatus(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "subscription": sub})
}

// Sign produces the signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(signature string, payload []byte, secret string) bool {
	scheme, sig, ok := strings.Cut(signature, "=")
	if !ok || scheme != "sha256" {
		return false
	}
	expected := strings.TrimPrefix(Sign(payload, secret), "sha256=")
	return hmac.Equal([]byte(sig), []byte(expected))
}
