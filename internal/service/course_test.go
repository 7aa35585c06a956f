package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/course"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, req course.Request) (*course.Course, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &course.Course{Topic: req.Topic, Level: req.Level, Language: req.Language}, nil
}

var courseReq = course.Request{Topic: "Go", Level: 3, Time: 10, Language: "en"}

func TestCourseService_CountsOnlySuccessfulGenerations(t *testing.T) {
	usage, _ := newUsageFixture(t)
	gen := &stubGenerator{}
	svc := NewCourseService(usage, gen, nil)
	ctx := context.Background()

	out, err := svc.Generate(ctx, guest("guest_1"), courseReq)
	require.NoError(t, err)
	assert.Equal(t, "Go", out.Topic)
	assert.Equal(t, 1, out.Usage.Count)
	assert.Equal(t, 1, out.Usage.Remaining)

	gen.err = errors.New("upstream down")
	_, err = svc.Generate(ctx, guest("guest_1"), courseReq)
	requireKind(t, err, domain.KindInternal, http.StatusInternalServerError)

	gen.err = nil
	_, err = svc.Generate(ctx, guest("guest_1"), courseReq)
	require.NoError(t, err)

	_, err = svc.Generate(ctx, guest("guest_1"), courseReq)
	requireKind(t, err, domain.KindLimitExceeded, http.StatusTooManyRequests)
	assert.Equal(t, 3, gen.calls)
}

func TestCourseService_Validation(t *testing.T) {
	usage, _ := newUsageFixture(t)
	svc := NewCourseService(usage, &stubGenerator{}, nil)

	_, err := svc.Generate(context.Background(), guest("g"), course.Request{Level: 3, Time: 10, Language: "en"})
	requireKind(t, err, domain.KindValidationFailure, http.StatusUnprocessableEntity)
}

func TestCourseService_NotConfigured(t *testing.T) {
	usage, _ := newUsageFixture(t)
	svc := NewCourseService(usage, nil, nil)

	_, err := svc.Generate(context.Background(), guest("g"), courseReq)
	requireKind(t, err, domain.KindConfiguration, http.StatusServiceUnavailable)
}

type stubRewriter struct {
	err error
	got course.RewriteRequest
}

func (r *stubRewriter) Rewrite(_ context.Context, req course.RewriteRequest) ([]string, error) {
	r.got = req
	if r.err != nil {
		return nil, r.err
	}
	out := make([]string, len(req.Bulletpoints))
	for i, p := range req.Bulletpoints {
		out[i] = req.Language + ":" + p
	}
	return out, nil
}

func TestCourseService_Rewrite(t *testing.T) {
	usage, _ := newUsageFixture(t)
	rw := &stubRewriter{}
	svc := NewCourseService(usage, &stubGenerator{}, nil).WithRewriter(rw)
	ctx := context.Background()

	out, err := svc.Rewrite(ctx, course.RewriteRequest{Language: "fr", Level: 2, Bulletpoints: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"fr:a", "fr:b"}, out)

	out, err = svc.Rewrite(ctx, course.RewriteRequest{Language: "fr", Level: 2, Bulletpoints: []string{}})
	require.NoError(t, err)
	assert.Empty(t, out)

	for name, req := range map[string]course.RewriteRequest{
		"no language":     {Level: 2, Bulletpoints: []string{"a"}},
		"no level":        {Language: "fr", Bulletpoints: []string{"a"}},
		"no bulletpoints": {Language: "fr", Level: 2},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Rewrite(ctx, req)
			requireKind(t, err, domain.KindBadRequest, http.StatusBadRequest)
		})
	}

	rw.err = errors.New("upstream down")
	_, err = svc.Rewrite(ctx, course.RewriteRequest{Language: "fr", Level: 2, Bulletpoints: []string{"a"}})
	requireKind(t, err, domain.KindInternal, http.StatusInternalServerError)

	assert.Zero(t, usage.store.Statistics(ctx).TotalUsers)
}

func TestCourseService_RewriteNotConfigured(t *testing.T) {
	usage, _ := newUsageFixture(t)
	svc := NewCourseService(usage, &stubGenerator{}, nil)

	_, err := svc.Rewrite(context.Background(), course.RewriteRequest{Language: "en", Level: 1, Bulletpoints: []string{"a"}})
	requireKind(t, err, domain.KindConfiguration, http.StatusServiceUnavailable)
}
