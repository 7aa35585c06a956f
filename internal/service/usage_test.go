package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/entitlement"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = entitlement.Limits{Free: 2, Premium: 5}

func newUsageFixture(t *testing.T) (*UsageService, *clock) {
	t.Helper()
	c := newClock(t0)
	return NewUsageService(newUsageStore(t, c), testLimits, nil, c.Now), c
}

func device(hash string) identity.Identity {
	return identity.Identity{Identifier: hash, Source: identity.SourceHeader}
}

func guest(id string) identity.Identity {
	return identity.Identity{Identifier: id, Source: identity.SourceGuestHeader}
}

func TestUsage_UnregisteredDeviceNeedsAuth(t *testing.T) {
	svc, _ := newUsageFixture(t)

	_, err := svc.Check(context.Background(), device("device_ios_abc"))
	requireKind(t, err, domain.KindUnauthorized, http.StatusUnauthorized)
	appErr, _ := domain.AsAppError(err)
	assert.Equal(t, true, appErr.Details["needsAuth"])
}

func TestUsage_GuestIsCreatedOnFirstCheck(t *testing.T) {
	svc, _ := newUsageFixture(t)

	d, err := svc.Check(context.Background(), guest("guest_1"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, 1, svc.Statistics(context.Background()).TotalUsers)
}

func TestUsage_DeniesAtLimitAndResetsNextMonth(t *testing.T) {
	svc, c := newUsageFixture(t)
	ctx := context.Background()

	_, err := svc.InitializeDevice(ctx, domain.DeviceRequest{DeviceHash: "device_ios_abc"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := svc.Check(ctx, device("device_ios_abc"))
		require.NoError(t, err)
		_, err = svc.Record(ctx, "device_ios_abc")
		require.NoError(t, err)
	}

	d, err := svc.Check(ctx, device("device_ios_abc"))
	requireKind(t, err, domain.KindLimitExceeded, http.StatusTooManyRequests)
	assert.False(t, d.Allowed)
	appErr, _ := domain.AsAppError(err)
	assert.Equal(t, 2, appErr.Details["coursesGenerated"])
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), appErr.Details["resetDate"])

	c.Advance(31 * 24 * time.Hour)
	d, err = svc.Check(ctx, device("device_ios_abc"))
	require.NoError(t, err)
	assert.Equal(t, 0, d.Count)
}

func TestUsage_RecordKeepsTier(t *testing.T) {
	svc, _ := newUsageFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.MarkPremium(ctx, "a@example.com"))
	rec, err := svc.Record(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.UserTypePremium, rec.UserType)

	d, err := svc.Check(ctx, guest("a@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 5, d.Limit)
	assert.Equal(t, 4, d.Remaining)
}

func TestUsage_DeviceEndpoints(t *testing.T) {
	svc, _ := newUsageFixture(t)
	ctx := context.Background()

	_, err := svc.VerifyDevice(ctx, domain.DeviceRequest{DeviceHash: "device_x"})
	requireKind(t, err, domain.KindNotFound, http.StatusNotFound)

	st, err := svc.RegisterAnonymous(ctx, domain.RegisterAnonymousRequest{DeviceHash: "device_x", InitialCourseCount: 1})
	require.NoError(t, err)
	assert.True(t, st.IsNew)
	assert.Equal(t, 1, st.CourseCount)
	assert.Equal(t, 1, st.Remaining)

	st, err = svc.InitializeDevice(ctx, domain.DeviceRequest{DeviceHash: "device_x"})
	require.NoError(t, err)
	assert.False(t, st.IsNew)
	assert.Equal(t, 1, st.CourseCount)

	st, err = svc.VerifyDevice(ctx, domain.DeviceRequest{DeviceHash: "device_x"})
	require.NoError(t, err)
	assert.Equal(t, domain.UserTypeAnonymous, st.UserType)

	_, err = svc.InitializeDevice(ctx, domain.DeviceRequest{})
	requireKind(t, err, domain.KindValidationFailure, http.StatusUnprocessableEntity)
}
