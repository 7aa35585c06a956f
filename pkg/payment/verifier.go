// Package payment verifies App Store receipts and Google Play purchase tokens
// and normalizes both into one Result shape.
package payment

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Platform identifies the store a purchase came from.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ParsePlatform accepts the store names clients send.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ios", "apple":
		return PlatformIOS, true
	case "android", "google":
		return PlatformAndroid, true
	}
	return "", false
}

// Failure classifies why a result is invalid.
type Failure string

const (
	FailureNone          Failure = ""
	FailureConfiguration Failure = "configuration"
	FailureValidation    Failure = "validation"
)

// Request is one verification call. Receipt holds the App Store receipt blob
// or the Google Play purchase token.
type Request struct {
	Platform  Platform
	Receipt   string
	ProductID string
}

// Result is the normalized outcome. Verifiers never return errors; problems
// are reported through IsValid=false, Failure and Error.
type Result struct {
	IsValid               bool       `json:"isValid"`
	Platform              Platform   `json:"platform"`
	ProductID             string     `json:"productId,omitempty"`
	TransactionID         string     `json:"transactionId,omitempty"`
	OriginalTransactionID string     `json:"originalTransactionId,omitempty"`
	OrderID               string     `json:"orderId,omitempty"`
	PurchaseTime          *time.Time `json:"purchaseTime,omitempty"`
	ExpiryTime            *time.Time `json:"expiryTime,omitempty"`
	AutoRenewing          bool       `json:"autoRenewing"`
	Environment           string     `json:"environment,omitempty"`
	VendorStatus          int        `json:"vendorStatus"`
	IsMock                bool       `json:"isMockPurchase"`
	Failure               Failure    `json:"failure,omitempty"`
	Error                 string     `json:"error,omitempty"`
}

// normalize enforces that a valid result never carries an expiry at or before now.
func (r Result) normalize(now time.Time) Result {
	if r.IsValid && r.ExpiryTime != nil && !r.ExpiryTime.After(now) {
		r.IsValid = false
		if r.Failure == FailureNone {
			r.Failure = FailureValidation
		}
		if r.Error == "" {
			r.Error = "subscription expired"
		}
	}
	return r
}

func invalid(platform Platform, failure Failure, msg string) Result {
	return Result{Platform: platform, Failure: failure, Error: msg}
}

// Verifier checks one purchase against a store.
type Verifier interface {
	VerifyReceipt(ctx context.Context, req Request) Result
}

// Client dispatches requests to the verifier registered for their platform.
type Client struct {
	verifiers map[Platform]Verifier
}

// NewClient wires the given verifiers. A nil verifier leaves that platform unsupported.
func NewClient(apple, google Verifier) *Client {
	c := &Client{verifiers: make(map[Platform]Verifier)}
	if apple != nil {
		c.verifiers[PlatformIOS] = apple
	}
	if google != nil {
		c.verifiers[PlatformAndroid] = google
	}
	return c
}

// VerifyReceipt implements Verifier.
func (c *Client) VerifyReceipt(ctx context.Context, req Request) Result {
	v, ok := c.verifiers[req.Platform]
	if !ok {
		return invalid(req.Platform, FailureValidation, "unsupported platform: "+string(req.Platform))
	}
	if strings.TrimSpace(req.Receipt) == "" {
		return invalid(req.Platform, FailureValidation, "receipt or purchase token is required")
	}
	return v.VerifyReceipt(ctx, req)
}

type options struct {
	httpClient *http.Client
	now        func() time.Time
	baseURL    string
}

// Option customizes a verifier.
type Option func(*options)

// WithHTTPClient replaces the transport used for vendor calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBaseURL points the Google verifier at a different API host.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func millis(s string) *time.Time {
	if s == "" {
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
