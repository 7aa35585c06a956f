package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const modelCacheTTL = 24 * time.Hour

// ModelLister is implemented by *course.OpenAIGenerator.
type ModelLister interface {
	Model() string
	ListModels(ctx context.Context) ([]string, error)
}

// ModelCatalog is the cached list of models available to course generation.
type ModelCatalog struct {
	Active    string    `json:"activeModel"`
	Models    []string  `json:"models"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SystemService caches the provider's model list for operators.
type SystemService struct {
	lister ModelLister
	now    func() time.Time
	group  singleflight.Group

	mu     sync.Mutex
	cached *ModelCatalog
}

// NewSystemService creates a new SystemService. lister may be nil when no
// provider key is configured.
func NewSystemService(lister ModelLister, now func() time.Time) *SystemService {
	if now == nil {
		now = time.Now
	}
	return &SystemService{lister: lister, now: now}
}

// GetModels returns the cached catalog, syncing when it is empty or older than a day.
func (s *SystemService) GetModels(ctx context.Context) (*ModelCatalog, error) {
	s.mu.Lock()
	cached := s.cached
	s.mu.Unlock()

	if cached != nil && s.now().Sub(cached.UpdatedAt) < modelCacheTTL {
		return cached, nil
	}

	log.Ctx(ctx).Info().Msg("Model cache miss, syncing")
	return s.SyncModels(ctx)
}

// SyncModels asks the provider for its model list and replaces the cache.
// Concurrent callers share one provider request.
func (s *SystemService) SyncModels(ctx context.Context) (*ModelCatalog, error) {
	v, err, _ := s.group.Do("models", func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ModelCatalog), nil
}

func (s *SystemService) fetch(ctx context.Context) (*ModelCatalog, error) {
	if s.lister == nil {
		return nil, domain.ErrConfiguration("course generation is not configured")
	}

	models, err := s.lister.ListModels(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to sync models", err)
	}
	slices.Sort(models)

	catalog := &ModelCatalog{
		Active:    s.lister.Model(),
		Models:    models,
		UpdatedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.cached = catalog
	s.mu.Unlock()
	return catalog, nil
}
