package service

import (
	"context"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/metrics"
	"github.com/rs/zerolog/log"
)

// MonitorService periodically publishes store-wide totals as gauges.
type MonitorService struct {
	usage         *UsageService
	subscriptions *SubscriptionService
	metrics       *metrics.Metrics
	interval      time.Duration
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(usage *UsageService, subscriptions *SubscriptionService, m *metrics.Metrics, interval time.Duration) *MonitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MonitorService{usage: usage, subscriptions: subscriptions, metrics: m, interval: interval}
}

// Start collects once immediately, then on every tick until ctx is done.
func (s *MonitorService) Start(ctx context.Context) {
	go func() {
		s.Collect(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Collect(ctx)
			}
		}
	}()
}

// Collect reads the current totals and updates the gauges.
func (s *MonitorService) Collect(ctx context.Context) {
	stats := s.usage.Statistics(ctx)
	s.metrics.SetUsageTotals(stats.TotalUsers, stats.ActiveUsers, stats.TotalCourses)

	if s.subscriptions == nil {
		return
	}
	unlinked, active, err := s.subscriptions.Counts(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to collect subscription totals")
		return
	}
	s.metrics.SetSubscriptionTotals(unlinked, active)
}
