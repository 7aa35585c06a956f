package service

import (
	"context"
	"errors"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/claimtoken"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/logging"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/metrics"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/repository"
	"github.com/ahmousavi39/Learn-Ai-sub000/pkg/payment"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// SubscriptionStore is implemented by *repository.SubscriptionRepository.
type SubscriptionStore interface {
	CreateUnlinked(ctx context.Context, sub *domain.UnlinkedSubscription) error
	FindUnlinked(ctx context.Context, id string) (*domain.UnlinkedSubscription, error)
	Claim(ctx context.Context, id, userID, email string, now time.Time) (*domain.Subscription, error)
	CreateLinked(ctx context.Context, sub *domain.Subscription) error
	FindByID(ctx context.Context, id string) (*domain.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Subscription, error)
	FindProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpdateStatus(ctx context.Context, id string, isActive bool, expiry *time.Time, now time.Time) (*domain.Subscription, error)
	Counts(ctx context.Context) (unlinked, active int, err error)
}

// Sealer encrypts raw receipts before they are stored.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// PremiumMarker moves an identity to the premium course allowance.
type PremiumMarker interface {
	MarkPremium(ctx context.Context, id string) error
}

// SubscriptionService verifies store purchases and links them to accounts.
//
// A purchase made before sign-in is verified and staged as unlinked. The
// client receives a verification token and redeems it with Claim once the
// user has an account.
type SubscriptionService struct {
	repo     SubscriptionStore
	verifier payment.Verifier
	sealer   Sealer
	premium  PremiumMarker
	metrics  *metrics.Metrics
	validate *validator.Validate
	tokenTTL time.Duration
	now      func() time.Time
}

// SubscriptionConfig holds the collaborators of a SubscriptionService.
// Premium and Metrics may be nil.
type SubscriptionConfig struct {
	Repo     SubscriptionStore
	Verifier payment.Verifier
	Sealer   Sealer
	Premium  PremiumMarker
	Metrics  *metrics.Metrics
	TokenTTL time.Duration
	Now      func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(cfg SubscriptionConfig) *SubscriptionService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = claimtoken.DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SubscriptionService{
		repo:     cfg.Repo,
		verifier: cfg.Verifier,
		sealer:   cfg.Sealer,
		premium:  cfg.Premium,
		metrics:  cfg.Metrics,
		validate: validator.New(),
		tokenTTL: cfg.TokenTTL,
		now:      cfg.Now,
	}
}

// VerifyAndStage verifies a purchase made before sign-in and stores it
// unlinked. The returned token can be claimed within the token TTL.
func (s *SubscriptionService) VerifyAndStage(ctx context.Context, req domain.StagePurchaseRequest) (*domain.StagePurchaseResponse, error) {
	result, receipt, err := s.verify(ctx, req)
	if err != nil {
		return nil, err
	}

	sealed, err := s.sealer.Seal(receipt)
	if err != nil {
		return nil, domain.ErrInternal("failed to seal receipt", err)
	}

	now := s.now().UTC()
	staged := &domain.UnlinkedSubscription{
		ID:                 domain.NewID(),
		Purchase:           purchaseFrom(result, req.ProductID),
		UserEmail:          req.UserEmail,
		SealedReceipt:      sealed,
		AwaitingUserLink:   true,
		LinkExpirationTime: now.Add(s.tokenTTL),
		CreatedAt:          now,
	}
	if err := s.repo.CreateUnlinked(ctx, staged); err != nil {
		return nil, domain.ErrInternal("failed to store purchase", err)
	}

	token, err := claimtoken.Encode(staged.ID, staged.ProductID, now)
	if err != nil {
		return nil, domain.ErrInternal("failed to issue verification token", err)
	}

	log.Ctx(ctx).Info().
		Str("subscription_id", staged.ID).
		Str("platform", staged.Platform).
		Bool("mock", staged.IsMockPurchase).
		Msg("Purchase staged for linking")

	return &domain.StagePurchaseResponse{
		Success:           true,
		VerificationToken: token,
		SubscriptionID:    staged.ID,
		ExpiresAt:         staged.LinkExpirationTime,
		ExpiryTime:        staged.ExpiryTime,
		IsMockPurchase:    staged.IsMockPurchase,
	}, nil
}

// Claim redeems a verification token for req.UID. Failures are checked in a
// fixed order: malformed token, token age, missing record, already claimed.
// Exactly one of several concurrent claims for the same token succeeds.
func (s *SubscriptionService) Claim(ctx context.Context, req domain.ClaimRequest) (*domain.Subscription, error) {
	sub, err := s.claim(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	s.metrics.ObserveClaim(outcome)
	return sub, err
}

func (s *SubscriptionService) claim(ctx context.Context, req domain.ClaimRequest) (*domain.Subscription, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailure(err.Error())
	}

	now := s.now().UTC()
	payload, err := claimtoken.Verify(req.VerificationToken, s.tokenTTL, now)
	switch {
	case errors.Is(err, claimtoken.ErrExpired):
		return nil, domain.ErrTokenExpired("Verification token has expired")
	case err != nil:
		return nil, domain.ErrInvalidToken("Invalid verification token")
	}

	staged, err := s.repo.FindUnlinked(ctx, payload.SubscriptionID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load purchase", err)
	}
	if staged == nil {
		return nil, domain.ErrNotFound("Subscription not found")
	}
	if !staged.AwaitingUserLink {
		return nil, domain.ErrAlreadyClaimed("Subscription already linked")
	}
	if payload.ProductID != "" && payload.ProductID != staged.ProductID {
		return nil, domain.ErrInvalidToken("Invalid verification token")
	}
	if now.After(staged.LinkExpirationTime) {
		return nil, domain.ErrTokenExpired("Verification token has expired")
	}

	sub, err := s.repo.Claim(ctx, staged.ID, req.UID, req.Email, now)
	switch {
	case errors.Is(err, repository.ErrAlreadyLinked):
		return nil, domain.ErrAlreadyClaimed("Subscription already linked")
	case errors.Is(err, repository.ErrSubscriptionNotFound):
		return nil, domain.ErrNotFound("Subscription not found")
	case err != nil:
		return nil, domain.ErrInternal("failed to link subscription", err)
	}

	log.Ctx(ctx).Info().
		Str("subscription_id", sub.ID).
		Str("user", logging.Redact(req.UID)).
		Msg("Subscription linked")
	s.markPremium(ctx, premiumIdentity(req.Email, req.UID))
	return sub, nil
}

// LinkToUser verifies a purchase made by a signed-in user and links it right away.
func (s *SubscriptionService) LinkToUser(ctx context.Context, req domain.LinkPurchaseRequest) (*domain.Subscription, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailure(err.Error())
	}
	result, _, err := s.verify(ctx, req.StagePurchaseRequest)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sub := &domain.Subscription{
		ID:           domain.NewID(),
		Purchase:     purchaseFrom(result, req.ProductID),
		LinkedUserID: req.UID,
		LinkedEmail:  req.UserEmail,
		LinkedAt:     now,
		IsActive:     true,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateLinked(ctx, sub); err != nil {
		return nil, domain.ErrInternal("failed to link subscription", err)
	}
	s.markPremium(ctx, premiumIdentity(req.UserEmail, req.UID))
	return sub, nil
}

// Status re-verifies a receipt without storing anything. Vendor rejections
// are reported in the result; only configuration problems are errors.
func (s *SubscriptionService) Status(ctx context.Context, req domain.StagePurchaseRequest) (*payment.Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailure(err.Error())
	}
	result := s.verifier.VerifyReceipt(ctx, paymentRequest(req))
	s.metrics.ObserveVerification(string(result.Platform), verificationOutcome(result))
	if result.Failure == payment.FailureConfiguration {
		return nil, domain.ErrConfiguration(result.Error)
	}
	return &result, nil
}

// History lists every subscription linked to userID.
func (s *SubscriptionService) History(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	if userID == "" {
		return nil, domain.ErrBadRequest("uid is required")
	}
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list subscriptions", err)
	}
	if subs == nil {
		subs = []*domain.Subscription{}
	}
	return subs, nil
}

// Get returns a linked subscription by id.
func (s *SubscriptionService) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	if id == "" {
		return nil, domain.ErrBadRequest("subscription id is required")
	}
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find subscription", err)
	}
	if sub == nil {
		return nil, domain.ErrNotFound("Subscription not found")
	}
	return sub, nil
}

// Profile returns the subscription reference stored for userID.
func (s *SubscriptionService) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrBadRequest("uid is required")
	}
	p, err := s.repo.FindProfile(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load profile", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("User profile not found")
	}
	return p, nil
}

// CheckUserSubscription reports whether userID holds a currently valid subscription.
func (s *SubscriptionService) CheckUserSubscription(ctx context.Context, userID string) (*domain.SubscriptionStatus, error) {
	subs, err := s.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, sub := range subs {
		if sub.Valid(now) {
			return &domain.SubscriptionStatus{HasValidSubscription: true, Subscription: sub}, nil
		}
	}
	return &domain.SubscriptionStatus{HasValidSubscription: false}, nil
}

// UpdateStatus applies a renewal or cancellation. The linked owner never changes.
func (s *SubscriptionService) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (*domain.Subscription, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailure(err.Error())
	}
	sub, err := s.repo.UpdateStatus(ctx, req.SubscriptionID, req.IsActive, req.ExpiryTime, s.now().UTC())
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, domain.ErrNotFound("Subscription not found")
	}
	if err != nil {
		return nil, domain.ErrInternal("failed to update subscription", err)
	}
	log.Ctx(ctx).Info().
		Str("subscription_id", sub.ID).
		Bool("active", sub.IsActive).
		Msg("Subscription status updated")
	return sub, nil
}

// Counts reports staged and active subscriptions for the admin dashboard.
func (s *SubscriptionService) Counts(ctx context.Context) (unlinked, active int, err error) {
	unlinked, active, err = s.repo.Counts(ctx)
	if err != nil {
		return 0, 0, domain.ErrInternal("failed to count subscriptions", err)
	}
	return unlinked, active, nil
}

// verify runs the vendor check and returns the receipt string that was sent.
func (s *SubscriptionService) verify(ctx context.Context, req domain.StagePurchaseRequest) (payment.Result, string, error) {
	if err := s.validate.Struct(req); err != nil {
		return payment.Result{}, "", domain.ErrValidationFailure(err.Error())
	}
	preq := paymentRequest(req)
	if preq.Receipt == "" {
		return payment.Result{}, "", domain.ErrValidationFailure("receipt or purchaseToken is required")
	}

	result := s.verifier.VerifyReceipt(ctx, preq)
	s.metrics.ObserveVerification(string(result.Platform), verificationOutcome(result))
	if result.IsValid {
		return result, preq.Receipt, nil
	}

	log.Ctx(ctx).Warn().
		Str("platform", string(result.Platform)).
		Int("vendor_status", result.VendorStatus).
		Str("reason", result.Error).
		Msg("Purchase verification failed")
	if result.Failure == payment.FailureConfiguration {
		return result, "", domain.ErrConfiguration(result.Error)
	}
	return result, "", domain.ErrValidationFailure("Purchase verification failed").
		WithDetail("reason", result.Error).
		WithDetail("status", result.VendorStatus)
}

func (s *SubscriptionService) markPremium(ctx context.Context, id string) {
	if s.premium == nil || id == "" {
		return
	}
	if err := s.premium.MarkPremium(ctx, id); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user", logging.Redact(id)).Msg("Failed to grant premium course allowance")
	}
}

func paymentRequest(req domain.StagePurchaseRequest) payment.Request {
	platform, _ := payment.ParsePlatform(req.Platform)
	receipt := req.Receipt
	if platform == payment.PlatformAndroid && req.PurchaseToken != "" {
		receipt = req.PurchaseToken
	}
	return payment.Request{Platform: platform, Receipt: receipt, ProductID: req.ProductID}
}

func purchaseFrom(r payment.Result, requestedProduct string) domain.Purchase {
	productID := r.ProductID
	if productID == "" {
		productID = requestedProduct
	}
	return domain.Purchase{
		Platform:              string(r.Platform),
		ProductID:             productID,
		TransactionID:         r.TransactionID,
		OriginalTransactionID: r.OriginalTransactionID,
		OrderID:               r.OrderID,
		PurchaseTime:          r.PurchaseTime,
		ExpiryTime:            r.ExpiryTime,
		AutoRenewing:          r.AutoRenewing,
		Environment:           r.Environment,
		IsMockPurchase:        r.IsMock,
	}
}

func verificationOutcome(r payment.Result) string {
	switch {
	case r.IsValid && r.IsMock:
		return "mock"
	case r.IsValid:
		return "valid"
	case r.Failure == payment.FailureConfiguration:
		return "configuration_error"
	default:
		return "invalid"
	}
}

// premiumIdentity is the counter store key a subscriber generates courses under.
func premiumIdentity(email, uid string) string {
	if email != "" {
		return email
	}
	return uid
}
