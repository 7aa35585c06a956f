package service

import (
	"context"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/course"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/entitlement"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/identity"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// GeneratedCourse is a course plus the caller's usage after it was counted.
type GeneratedCourse struct {
	*course.Course
	Usage entitlement.Decision `json:"usage"`
}

// CourseService gates course generation behind the monthly allowance.
type CourseService struct {
	usage     *UsageService
	generator course.Generator
	rewriter  course.Rewriter
	metrics   *metrics.Metrics
	validate  *validator.Validate
}

// NewCourseService creates a new CourseService. A nil generator makes every
// request fail with a configuration error.
func NewCourseService(usage *UsageService, generator course.Generator, m *metrics.Metrics) *CourseService {
	return &CourseService{
		usage:     usage,
		generator: generator,
		metrics:   m,
		validate:  validator.New(),
	}
}

// WithRewriter enables lesson rewriting.
func (s *CourseService) WithRewriter(r course.Rewriter) *CourseService {
	s.rewriter = r
	return s
}

// Rewrite rewrites lesson bulletpoints. It is not counted against the allowance.
func (s *CourseService) Rewrite(ctx context.Context, req course.RewriteRequest) ([]string, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrBadRequest("Missing required fields: language, level, or bulletpoints")
	}
	if s.rewriter == nil {
		return nil, domain.ErrConfiguration("Lesson rewriting is not configured")
	}
	points, err := s.rewriter.Rewrite(ctx, req)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("language", req.Language).Msg("Lesson rewrite failed")
		return nil, domain.ErrInternal("Failed to regenerate bulletpoints", err)
	}
	return points, nil
}

// Generate checks the allowance, generates the course and counts it. The
// counter only moves after a successful generation.
func (s *CourseService) Generate(ctx context.Context, ident identity.Identity, req course.Request) (*GeneratedCourse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailure(err.Error())
	}
	if s.generator == nil {
		return nil, domain.ErrConfiguration("Course generation is not configured")
	}

	if _, err := s.usage.Check(ctx, ident); err != nil {
		s.metrics.ObserveCourseGeneration(string(domain.KindOf(err)))
		return nil, err
	}

	c, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.metrics.ObserveCourseGeneration("failed")
		log.Ctx(ctx).Error().Err(err).Str("topic", req.Topic).Msg("Course generation failed")
		return nil, domain.ErrInternal("Failed to generate course", err)
	}

	rec, err := s.usage.Record(ctx, ident.Identifier)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveCourseGeneration("success")

	return &GeneratedCourse{
		Course: c,
		Usage:  entitlement.Decide(*rec, s.usage.Limits()),
	}, nil
}
