package service

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/claimtoken"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/pkg/crypto"
	"github.com/ahmousavi39/Learn-Ai-sub000/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type subFixture struct {
	svc      *SubscriptionService
	repo     *memSubscriptions
	verifier *stubVerifier
	marker   *recordingMarker
	clock    *clock
}

func newSubFixture(t *testing.T) *subFixture {
	t.Helper()
	sealer, err := crypto.NewSealer(strings.Repeat("k", 32))
	require.NoError(t, err)

	f := &subFixture{
		repo:     newMemSubscriptions(),
		verifier: &stubVerifier{result: validResult("premium_monthly", t0.Add(30*24*time.Hour))},
		marker:   &recordingMarker{},
		clock:    newClock(t0),
	}
	f.svc = NewSubscriptionService(SubscriptionConfig{
		Repo:     f.repo,
		Verifier: f.verifier,
		Sealer:   sealer,
		Premium:  f.marker,
		TokenTTL: time.Hour,
		Now:      f.clock.Now,
	})
	return f
}

func stageReq() domain.StagePurchaseRequest {
	return domain.StagePurchaseRequest{Receipt: "raw-receipt", ProductID: "premium_monthly", Platform: "ios"}
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind, code int) {
	t.Helper()
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, kind, appErr.Kind)
	assert.Equal(t, code, appErr.Code)
}

func TestVerifyAndStage_StoresSealedUnlinkedPurchase(t *testing.T) {
	f := newSubFixture(t)

	resp, err := f.svc.VerifyAndStage(context.Background(), stageReq())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, t0.Add(time.Hour), resp.ExpiresAt)

	staged := f.repo.unlinked[resp.SubscriptionID]
	require.NotNil(t, staged)
	assert.True(t, staged.AwaitingUserLink)
	assert.Equal(t, "premium_monthly", staged.ProductID)
	assert.NotContains(t, staged.SealedReceipt, "raw-receipt")

	payload, err := claimtoken.Decode(resp.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, resp.SubscriptionID, payload.SubscriptionID)
	assert.Equal(t, "premium_monthly", payload.ProductID)
}

func TestVerifyAndStage_UsesPurchaseTokenOnAndroid(t *testing.T) {
	f := newSubFixture(t)
	req := domain.StagePurchaseRequest{PurchaseToken: "play-token", ProductID: "premium_monthly", Platform: "google"}

	_, err := f.svc.VerifyAndStage(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, f.verifier.calls, 1)
	assert.Equal(t, payment.PlatformAndroid, f.verifier.calls[0].Platform)
	assert.Equal(t, "play-token", f.verifier.calls[0].Receipt)
}

func TestVerifyAndStage_Failures(t *testing.T) {
	t.Run("vendor rejection", func(t *testing.T) {
		f := newSubFixture(t)
		f.verifier.result = payment.Result{Failure: payment.FailureValidation, Error: "status 21003", VendorStatus: 21003}
		_, err := f.svc.VerifyAndStage(context.Background(), stageReq())
		requireKind(t, err, domain.KindValidationFailure, http.StatusUnprocessableEntity)
		appErr, _ := domain.AsAppError(err)
		assert.Equal(t, 21003, appErr.Details["status"])
		assert.Empty(t, f.repo.unlinked)
	})
	t.Run("missing credentials", func(t *testing.T) {
		f := newSubFixture(t)
		f.verifier.result = payment.Result{Failure: payment.FailureConfiguration, Error: "not configured"}
		_, err := f.svc.VerifyAndStage(context.Background(), stageReq())
		requireKind(t, err, domain.KindConfiguration, http.StatusServiceUnavailable)
	})
	t.Run("no receipt", func(t *testing.T) {
		f := newSubFixture(t)
		req := stageReq()
		req.Receipt = ""
		_, err := f.svc.VerifyAndStage(context.Background(), req)
		requireKind(t, err, domain.KindValidationFailure, http.StatusUnprocessableEntity)
		assert.Empty(t, f.verifier.calls)
	})
	t.Run("unknown platform", func(t *testing.T) {
		f := newSubFixture(t)
		req := stageReq()
		req.Platform = "windows"
		_, err := f.svc.VerifyAndStage(context.Background(), req)
		requireKind(t, err, domain.KindValidationFailure, http.StatusUnprocessableEntity)
	})
}

func TestClaim_LinksAndConsumes(t *testing.T) {
	f := newSubFixture(t)
	staged, err := f.svc.VerifyAndStage(context.Background(), stageReq())
	require.NoError(t, err)

	sub, err := f.svc.Claim(context.Background(), domain.ClaimRequest{
		VerificationToken: staged.VerificationToken,
		UID:               "user-1",
		Email:             "a@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, staged.SubscriptionID, sub.ID)
	assert.Equal(t, "user-1", sub.LinkedUserID)
	assert.True(t, sub.IsActive)

	assert.Empty(t, f.repo.unlinked)
	assert.Contains(t, f.repo.linked, staged.SubscriptionID)
	assert.Equal(t, []string{"a@example.com"}, f.marker.ids)
}

func TestClaim_PremiumIdentityFallsBackToUID(t *testing.T) {
	f := newSubFixture(t)
	staged, err := f.svc.VerifyAndStage(context.Background(), stageReq())
	require.NoError(t, err)

	_, err = f.svc.Claim(context.Background(), domain.ClaimRequest{VerificationToken: staged.VerificationToken, UID: "user-9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user-9"}, f.marker.ids)
}

func TestClaim_TTLBoundary(t *testing.T) {
	t.Run("one second before expiry", func(t *testing.T) {
		f := newSubFixture(t)
		staged, err := f.svc.VerifyAndStage(context.Background(), stageReq())
		require.NoError(t, err)

		f.clock.Advance(time.Hour - time.Second)
		_, err = f.svc.Claim(context.Background(), domain.ClaimRequest{VerificationToken: staged.VerificationToken, UID: "u"})
		assert.NoError(t, err)
	})
	t.Run("one second after expiry", func(t *testing.T) {
		f := newSubFixture(t)
		staged, err := f.svc.VerifyAndStage(context.Background(), stageReq())
		require.NoError(t, err)

		f.clock.Advance(time.Hour + time.Second)
		_, err = f.svc.Claim(context.Background(), domain.ClaimRequest{VerificationToken: staged.VerificationToken, UID: "u"})
		requireKind(t, err, domain.KindTokenExpired, http.StatusGone)
		assert.Len(t, f.repo.unlinked, 1)
	})
}

func TestClaim_FailureKinds(t *testing.T) {
	f := newSubFixture(t)
	ctx := context.Background()

	_, err := f.svc.Claim(ctx, domain.ClaimRequest{VerificationToken: "%%%not-base64", UID: "u"})
	requireKind(t, err, domain.KindInvalidToken, http.StatusBadRequest)

	ghost, err := claimtoken.Encode("missing-id", "premium_monthly", t0)
	require.NoError(t, err)
	_, err = f.svc.Claim(ctx, domain.ClaimRequest{VerificationToken: ghost, UID: "u"})
	requireKind(t, err, domain.KindNotFound, http.StatusNotFound)

	staged, err := f.svc.VerifyAndStage(ctx, stageReq())
	require.NoError(t, err)
	f.repo.unlinked[staged.SubscriptionID].AwaitingUserLink = false
	_, err = f.svc.Claim(ctx, domain.ClaimRequest{VerificationToken: staged.VerificationToken, UID: "u"})
	requireKind(t, err, domain.KindAlreadyClaimed, http.StatusConflict)

	_, err = f.svc.Claim(ctx, domain.ClaimRequest{VerificationToken: staged.VerificationToken})
	requireKind(t, err, domain.KindValidationFailure, http.StatusUnprocessableEntity)
}

func TestClaim_ProductMismatchIsInvalid(t *testing.T) {
	f := newSubFixture(t)
	staged, err := f.svc.VerifyAndStage(context.Background(), stageReq())
	require.NoError(t, err)

	forged, err := claimtoken.Encode(staged.SubscriptionID, "other_product", t0)
	require.NoError(t, err)
	_, err = f.svc.Claim(context.Background(), domain.ClaimRequest{VerificationToken: forged, UID: "u"})
	requireKind(t, err, domain.KindInvalidToken, http.StatusBadRequest)
}

func TestClaim_SecondClaimFails(t *testing.T) {
	f := newSubFixture(t)
	staged, err := f.svc.VerifyAndStage(context.Background(), stageReq())
	require.NoError(t, err)
	req := domain.ClaimRequest{VerificationToken: staged.VerificationToken, UID: "u"}

	_, err = f.svc.Claim(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.Claim(context.Background(), req)
	kind := domain.KindOf(err)
	assert.Contains(t, []domain.ErrorKind{domain.KindAlreadyClaimed, domain.KindNotFound}, kind)
}

func TestClaim_ConcurrentClaimsSucceedAtMostOnce(t *testing.T) {
	f := newSubFixture(t)
	staged, err := f.svc.VerifyAndStage(context.Background(), stageReq())
	require.NoError(t, err)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		kinds     []domain.ErrorKind
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Claim(context.Background(), domain.ClaimRequest{
				VerificationToken: staged.VerificationToken,
				UID:               "user-" + string(rune('a'+i)),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			kinds = append(kinds, domain.KindOf(err))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, k := range kinds {
		assert.Contains(t, []domain.ErrorKind{domain.KindAlreadyClaimed, domain.KindNotFound}, k)
	}
	assert.Len(t, f.repo.linked, 1)
}

func TestLinkToUser(t *testing.T) {
	f := newSubFixture(t)
	sub, err := f.svc.LinkToUser(context.Background(), domain.LinkPurchaseRequest{
		StagePurchaseRequest: stageReq(),
		UID:                  "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub.LinkedUserID)
	assert.Empty(t, f.repo.unlinked)
	assert.Equal(t, []string{"user-1"}, f.marker.ids)
}

func TestStatus_ReportsVendorResultWithoutStoring(t *testing.T) {
	f := newSubFixture(t)
	f.verifier.result = payment.Result{Failure: payment.FailureValidation, Error: "expired"}

	res, err := f.svc.Status(context.Background(), stageReq())
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Empty(t, f.repo.unlinked)
	assert.Empty(t, f.repo.linked)
}

func TestCheckUserSubscription_AndUpdateStatus(t *testing.T) {
	f := newSubFixture(t)
	ctx := context.Background()

	status, err := f.svc.CheckUserSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, status.HasValidSubscription)

	sub, err := f.svc.LinkToUser(ctx, domain.LinkPurchaseRequest{StagePurchaseRequest: stageReq(), UID: "user-1"})
	require.NoError(t, err)

	status, err = f.svc.CheckUserSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, status.HasValidSubscription)

	updated, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{SubscriptionID: sub.ID, IsActive: false})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "user-1", updated.LinkedUserID)

	status, err = f.svc.CheckUserSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, status.HasValidSubscription)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{SubscriptionID: "nope", IsActive: true})
	requireKind(t, err, domain.KindNotFound, http.StatusNotFound)
}

func TestHistory(t *testing.T) {
	f := newSubFixture(t)
	_, err := f.svc.History(context.Background(), "")
	requireKind(t, err, domain.KindBadRequest, http.StatusBadRequest)

	subs, err := f.svc.History(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)
}

func TestGetAndProfile(t *testing.T) {
	f := newSubFixture(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "")
	requireKind(t, err, domain.KindBadRequest, http.StatusBadRequest)
	_, err = f.svc.Get(ctx, "missing")
	requireKind(t, err, domain.KindNotFound, http.StatusNotFound)
	_, err = f.svc.Profile(ctx, "")
	requireKind(t, err, domain.KindBadRequest, http.StatusBadRequest)
	_, err = f.svc.Profile(ctx, "user-1")
	requireKind(t, err, domain.KindNotFound, http.StatusNotFound)

	staged, err := f.svc.VerifyAndStage(ctx, stageReq())
	require.NoError(t, err)
	_, err = f.svc.Claim(ctx, domain.ClaimRequest{VerificationToken: staged.VerificationToken, UID: "user-1", Email: "a@example.com"})
	require.NoError(t, err)

	sub, err := f.svc.Get(ctx, staged.SubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub.LinkedUserID)

	profile, err := f.svc.Profile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, staged.SubscriptionID, profile.SubscriptionID)
	assert.Equal(t, "premium_monthly", profile.ProductID)
	assert.Equal(t, "a@example.com", profile.Email)
	assert.True(t, profile.IsPremium)
}
