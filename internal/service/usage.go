package service

import (
	"context"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/entitlement"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/identity"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/logging"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// UsageStore is the persistence the usage service needs.
// *repository.UsageFileStore satisfies it.
type UsageStore interface {
	GetOrCreate(ctx context.Context, id string, userType domain.UserType) (*domain.UsageRecord, bool, error)
	Increment(ctx context.Context, id string, userType domain.UserType) (*domain.UsageRecord, error)
	Get(ctx context.Context, id string) (*domain.UsageRecord, bool, error)
	Register(ctx context.Context, id string, userType domain.UserType, initialCount int) (*domain.UsageRecord, bool, error)
	SetUserType(ctx context.Context, id string, userType domain.UserType) (*domain.UsageRecord, error)
	Statistics(ctx context.Context) domain.UsageStatistics
}

// UsageService enforces monthly course limits and keeps the counters.
type UsageService struct {
	store    UsageStore
	limits   entitlement.Limits
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time
}

// NewUsageService creates a new UsageService. m may be nil; a nil clock uses time.Now.
func NewUsageService(store UsageStore, limits entitlement.Limits, m *metrics.Metrics, now func() time.Time) *UsageService {
	if now == nil {
		now = time.Now
	}
	return &UsageService{
		store:    store,
		limits:   limits,
		metrics:  m,
		validate: validator.New(),
		now:      now,
	}
}

// Limits returns the configured allowances.
func (s *UsageService) Limits() entitlement.Limits {
	return s.limits
}

// Snapshot returns the current decision for ident without denying.
//
// A device hash must have been registered through InitializeDevice first;
// unknown hashes get an Unauthorized error flagged with needsAuth. Guest
// identities are created on first sight.
func (s *UsageService) Snapshot(ctx context.Context, ident identity.Identity) (entitlement.Decision, error) {
	var (
		rec *domain.UsageRecord
		err error
	)
	if ident.IsDevice() {
		var ok bool
		rec, ok, err = s.store.Get(ctx, ident.Identifier)
		if err != nil {
			return entitlement.Decision{}, domain.ErrInternal("failed to read usage", err)
		}
		if !ok {
			return entitlement.Decision{}, domain.ErrUnauthorized("Device not registered").WithDetail("needsAuth", true)
		}
	} else {
		rec, _, err = s.store.GetOrCreate(ctx, ident.Identifier, domain.UserTypeAnonymous)
		if err != nil {
			return entitlement.Decision{}, domain.ErrInternal("failed to read usage", err)
		}
	}
	return entitlement.DecideAt(*rec, s.limits, s.now()), nil
}

// Check is Snapshot plus enforcement: a denied decision is returned together
// with the LimitExceeded error describing it.
func (s *UsageService) Check(ctx context.Context, ident identity.Identity) (entitlement.Decision, error) {
	d, err := s.Snapshot(ctx, ident)
	if err != nil {
		return d, err
	}
	s.metrics.ObserveDecision(string(d.UserType), d.Allowed)
	if !d.Allowed {
		log.Ctx(ctx).Info().
			Str("identity", logging.Redact(ident.Identifier)).
			Int("count", d.Count).
			Int("limit", d.Limit).
			Msg("Course limit reached")
		return d, d.Deny(s.now())
	}
	return d, nil
}

// Record counts one generated course against id, keeping its current tier.
func (s *UsageService) Record(ctx context.Context, id string) (*domain.UsageRecord, error) {
	userType := domain.UserTypeAnonymous
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to read usage", err)
	}
	if ok {
		userType = domain.ParseUserType(string(rec.UserType))
	}

	rec, err = s.store.Increment(ctx, id, userType)
	if err != nil {
		return nil, domain.ErrInternal("failed to record course", err)
	}
	s.metrics.ObserveCourseRecorded(string(userType))
	return rec, nil
}

// InitializeDevice registers the hash if new and returns its status either way.
func (s *UsageService) InitializeDevice(ctx context.Context, req domain.DeviceRequest) (*domain.DeviceStatus, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailure(err.Error())
	}
	rec, created, err := s.store.GetOrCreate(ctx, req.DeviceHash, domain.UserTypeAnonymous)
	if err != nil {
		return nil, domain.ErrInternal("failed to initialize device", err)
	}
	if created {
		log.Ctx(ctx).Info().Str("device", logging.Redact(req.DeviceHash)).Msg("Device registered")
	}
	return s.status(req.DeviceHash, rec, created), nil
}

// VerifyDevice returns the status of an already registered device.
func (s *UsageService) VerifyDevice(ctx context.Context, req domain.DeviceRequest) (*domain.DeviceStatus, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailure(err.Error())
	}
	rec, ok, err := s.store.Get(ctx, req.DeviceHash)
	if err != nil {
		return nil, domain.ErrInternal("failed to verify device", err)
	}
	if !ok {
		return nil, domain.ErrNotFound("Device not registered").WithDetail("needsAuth", true)
	}
	return s.status(req.DeviceHash, rec, false), nil
}

// RegisterAnonymous registers a device and carries over courses it generated
// while offline. An existing registration is returned unchanged.
func (s *UsageService) RegisterAnonymous(ctx context.Context, req domain.RegisterAnonymousRequest) (*domain.DeviceStatus, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailure(err.Error())
	}
	rec, created, err := s.store.Register(ctx, req.DeviceHash, domain.UserTypeAnonymous, req.InitialCourseCount)
	if err != nil {
		return nil, domain.ErrInternal("failed to register device", err)
	}
	return s.status(req.DeviceHash, rec, created), nil
}

// MarkPremium moves id to the premium tier, creating its record if needed.
func (s *UsageService) MarkPremium(ctx context.Context, id string) error {
	if _, err := s.store.SetUserType(ctx, id, domain.UserTypePremium); err != nil {
		return domain.ErrInternal("failed to upgrade usage record", err)
	}
	return nil
}

// Statistics summarizes the counter store.
func (s *UsageService) Statistics(ctx context.Context) domain.UsageStatistics {
	return s.store.Statistics(ctx)
}

func (s *UsageService) status(hash string, rec *domain.UsageRecord, created bool) *domain.DeviceStatus {
	d := entitlement.DecideAt(*rec, s.limits, s.now())
	return &domain.DeviceStatus{
		Success:     true,
		DeviceHash:  hash,
		IsNew:       created,
		CourseCount: d.Count,
		UserType:    d.UserType,
		CreatedAt:   rec.CreatedAt,
		Limit:       d.Limit,
		Remaining:   d.Remaining,
	}
}
