package domain

import "time"

// Purchase is the normalized, persisted part of a verified store purchase.
type Purchase struct {
	Platform              string     `json:"platform"`
	ProductID             string     `json:"productId"`
	TransactionID         string     `json:"transactionId,omitempty"`
	OriginalTransactionID string     `json:"originalTransactionId,omitempty"`
	OrderID               string     `json:"orderId,omitempty"`
	PurchaseTime          *time.Time `json:"purchaseTime,omitempty"`
	ExpiryTime            *time.Time `json:"expiryTime,omitempty"`
	AutoRenewing          bool       `json:"autoRenewing"`
	Environment           string     `json:"environment,omitempty"`
	IsMockPurchase        bool       `json:"isMockPurchase"`
}

// UnlinkedSubscription is a verified purchase waiting to be claimed by an account.
type UnlinkedSubscription struct {
	ID string `json:"id"`
	Purchase
	UserEmail          string    `json:"userEmail,omitempty"`
	SealedReceipt      string    `json:"-"`
	AwaitingUserLink   bool      `json:"awaitingUserLink"`
	LinkExpirationTime time.Time `json:"linkExpirationTime"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Subscription is a purchase owned by exactly one user id.
type Subscription struct {
	ID string `json:"subscriptionId"`
	Purchase
	LinkedUserID string    `json:"linkedUserId"`
	LinkedEmail  string    `json:"linkedEmail,omitempty"`
	LinkedAt     time.Time `json:"linkedAt"`
	IsActive     bool      `json:"isActive"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Valid reports whether the subscription still grants premium access at now.
func (s *Subscription) Valid(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	return s.ExpiryTime == nil || s.ExpiryTime.After(now)
}

// Profile is the per-user subscription reference.
type Profile struct {
	UserID             string     `json:"uid"`
	Email              string     `json:"email,omitempty"`
	SubscriptionID     string     `json:"subscriptionId,omitempty"`
	ProductID          string     `json:"subscriptionProductId,omitempty"`
	IsPremium          bool       `json:"isPremium"`
	SubscriptionExpiry *time.Time `json:"subscriptionExpiry,omitempty"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// StagePurchaseRequest is the input for verifying a purchase before sign-in.
type StagePurchaseRequest struct {
	Receipt       string `json:"receipt"`
	PurchaseToken string `json:"purchaseToken"`
	ProductID     string `json:"productId" validate:"required"`
	Platform      string `json:"platform" validate:"required,oneof=ios android apple google"`
	UserEmail     string `json:"userEmail" validate:"omitempty,email"`
}

// StagePurchaseResponse carries the claim token for a staged purchase.
type StagePurchaseResponse struct {
	Success           bool       `json:"success"`
	VerificationToken string     `json:"verificationToken"`
	SubscriptionID    string     `json:"subscriptionId"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	ExpiryTime        *time.Time `json:"expiryTime,omitempty"`
	IsMockPurchase    bool       `json:"isMockPurchase"`
}

// ClaimRequest exchanges a verification token for a linked subscription.
type ClaimRequest struct {
	VerificationToken string `json:"verificationToken" validate:"required"`
	UID               string `json:"uid" validate:"required"`
	Email             string `json:"email" validate:"omitempty,email"`
}

// LinkPurchaseRequest verifies a purchase and links it directly to a signed-in user.
type LinkPurchaseRequest struct {
	StagePurchaseRequest
	UID string `json:"uid" validate:"required"`
}

// UpdateStatusRequest applies a renewal or cancellation event.
type UpdateStatusRequest struct {
	SubscriptionID string     `json:"subscriptionId" validate:"required"`
	IsActive       bool       `json:"isActive"`
	ExpiryTime     *time.Time `json:"expiryTime"`
}

// SubscriptionStatus is the answer to "does this user currently have premium".
type SubscriptionStatus struct {
	HasValidSubscription bool          `json:"hasValidSubscription"`
	Subscription         *Subscription `json:"subscription,omitempty"`
}
