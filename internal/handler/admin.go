package handler

import (
	"net/http"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/service"
	"github.com/rs/zerolog/log"
)

type AdminHandler struct {
	usage         *service.UsageService
	subscriptions *service.SubscriptionService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(usage *service.UsageService, subscriptions *service.SubscriptionService) *AdminHandler {
	return &AdminHandler{usage: usage, subscriptions: subscriptions}
}

// GetStats handles GET /api/admin/stats. Subscription counts are best effort.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.usage.Statistics(r.Context())
	resp := map[string]any{
		"totalUsers":   stats.TotalUsers,
		"activeUsers":  stats.ActiveUsers,
		"totalCourses": stats.TotalCourses,
		"lastUpdated":  stats.LastUpdated,
	}

	unlinked, active, err := h.subscriptions.Counts(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("Failed to count subscriptions")
	} else {
		resp["unlinkedSubscriptions"] = unlinked
		resp["activeSubscriptions"] = active
	}
	JSON(w, http.StatusOK, resp)
}
