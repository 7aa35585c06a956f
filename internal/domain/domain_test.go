package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserType(t *testing.T) {
	tests := map[string]UserType{
		"premium":   UserTypePremium,
		" Premium ": UserTypePremium,
		"anonymous": UserTypeAnonymous,
		"":          UserTypeAnonymous,
		"gold":      UserTypeAnonymous,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseUserType(in), "input %q", in)
	}
}

func TestUsageRecord_Rollover(t *testing.T) {
	may := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	june := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("same month keeps count", func(t *testing.T) {
		rec := &UsageRecord{Count: 2, LastCourse: &may, CreatedAt: may}
		assert.False(t, rec.Rollover(may.Add(time.Hour)))
		assert.Equal(t, 2, rec.Count)
	})

	t.Run("new month resets", func(t *testing.T) {
		rec := &UsageRecord{Count: 2, FirstCourse: &may, LastCourse: &may, CreatedAt: may}
		assert.True(t, rec.Rollover(june))
		assert.Equal(t, 0, rec.Count)
		assert.Nil(t, rec.FirstCourse)
		assert.Equal(t, may, *rec.LastCourse)
	})

	t.Run("nil last course anchors on creation", func(t *testing.T) {
		rec := &UsageRecord{Count: 3, CreatedAt: may}
		assert.True(t, rec.InPeriod(may))
		assert.False(t, rec.InPeriod(june))
		assert.True(t, rec.Rollover(june))
	})

	t.Run("same month in another year resets", func(t *testing.T) {
		rec := &UsageRecord{Count: 1, LastCourse: &may, CreatedAt: may}
		assert.True(t, rec.Rollover(may.AddDate(1, 0, 0)))
	})

	t.Run("zero count is unchanged", func(t *testing.T) {
		rec := &UsageRecord{CreatedAt: may}
		assert.False(t, rec.Rollover(june))
	})
}

func TestUsageRecord_CloneIsDeep(t *testing.T) {
	now := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	rec := &UsageRecord{Count: 1, FirstCourse: &now, LastCourse: &now, CreatedAt: now}

	c := rec.Clone()
	*c.LastCourse = now.Add(time.Hour)
	c.Count = 9

	assert.Equal(t, now, *rec.LastCourse)
	assert.Equal(t, 1, rec.Count)
}

func TestSubscription_Valid(t *testing.T) {
	now := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Second)

	assert.True(t, (&Subscription{IsActive: true}).Valid(now))
	assert.True(t, (&Subscription{IsActive: true, Purchase: Purchase{ExpiryTime: &future}}).Valid(now))
	assert.False(t, (&Subscription{IsActive: true, Purchase: Purchase{ExpiryTime: &past}}).Valid(now))
	assert.False(t, (&Subscription{IsActive: true, Purchase: Purchase{ExpiryTime: &now}}).Valid(now))
	assert.False(t, (&Subscription{Purchase: Purchase{ExpiryTime: &future}}).Valid(now))
}

func TestAppError(t *testing.T) {
	cause := errors.New("boom")
	err := ErrInternal("failed", cause)
	assert.Equal(t, "failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("outer: %w", ErrTokenExpired("expired").WithDetail("ttl", "1h"))
	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusGone, appErr.Code)
	assert.Equal(t, "1h", appErr.Details["ttl"])

	assert.Equal(t, KindTokenExpired, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(cause))
	assert.Equal(t, http.StatusForbidden, ErrForbidden("no").Code)
	assert.Equal(t, KindRateLimited, ErrRateLimited("slow").Kind)
	assert.Equal(t, http.StatusTooManyRequests, ErrLimitExceeded("max").Code)
}

func TestTiers(t *testing.T) {
	tiers := Tiers(2, 50, []string{"premium_monthly"})
	require.Len(t, tiers, 2)
	assert.Equal(t, UserTypeAnonymous, tiers[0].UserType)
	assert.Equal(t, 2, tiers[0].MonthlyCourses)
	assert.Equal(t, []string{"premium_monthly"}, tiers[1].ProductIDs)
}
