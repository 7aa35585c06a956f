package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	GooglePlayBaseURL = "https://androidpublisher.googleapis.com"

	googlePaymentReceived = 1
)

// GoogleConfig configures subscription lookups against the Play Developer API.
type GoogleConfig struct {
	PackageName string
	// ServiceAccountKey is the raw service-account JSON.
	ServiceAccountKey string
	Timeout           time.Duration
}

// GoogleVerifier checks purchase tokens with purchases.subscriptions.get.
type GoogleVerifier struct {
	cfg     GoogleConfig
	opts    options
	svc     *androidpublisher.Service
	initErr error
}

// NewGoogleVerifier creates a new GoogleVerifier and builds the
// service-account client up front. A bad key does not fail construction;
// every call then reports a configuration failure.
func NewGoogleVerifier(cfg GoogleConfig, opts ...Option) *GoogleVerifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultVerifyTimeout
	}
	o := buildOptions(opts)
	if o.baseURL == "" {
		o.baseURL = GooglePlayBaseURL
	}
	v := &GoogleVerifier{cfg: cfg, opts: o}

	var client *http.Client
	switch {
	case o.httpClient != nil:
		client = o.httpClient
	case cfg.PackageName == "" || cfg.ServiceAccountKey == "":
		v.initErr = fmt.Errorf("Google Play credentials not configured")
		return v
	default:
		jwtCfg, err := google.JWTConfigFromJSON([]byte(cfg.ServiceAccountKey), androidpublisher.AndroidpublisherScope)
		if err != nil {
			v.initErr = fmt.Errorf("invalid Google service account key: %w", err)
			return v
		}
		client = jwtCfg.Client(context.Background())
		client.Timeout = cfg.Timeout
	}

	svc, err := androidpublisher.NewService(context.Background(),
		option.WithHTTPClient(client),
		option.WithEndpoint(o.baseURL+"/"),
	)
	if err != nil {
		v.initErr = fmt.Errorf("failed to create Play Developer client: %w", err)
		return v
	}
	v.svc = svc
	return v
}

// VerifyReceipt implements Verifier. req.Receipt is the purchase token.
func (v *GoogleVerifier) VerifyReceipt(ctx context.Context, req Request) Result {
	if v.initErr != nil {
		return invalid(PlatformAndroid, FailureConfiguration, v.initErr.Error())
	}
	if v.cfg.PackageName == "" {
		return invalid(PlatformAndroid, FailureConfiguration, "Google Play package name not configured")
	}
	if req.ProductID == "" {
		return invalid(PlatformAndroid, FailureValidation, "productId is required for Google Play verification")
	}

	sub, status, err := v.fetch(ctx, req.ProductID, req.Receipt)
	if err != nil {
		r := invalid(PlatformAndroid, FailureValidation, err.Error())
		r.VendorStatus = status
		return r
	}

	now := v.opts.now()
	expiry := fromMillis(sub.ExpiryTimeMillis)
	paid := sub.PaymentState != nil && *sub.PaymentState == googlePaymentReceived

	r := Result{
		Platform:      PlatformAndroid,
		ProductID:     req.ProductID,
		TransactionID: sub.OrderId,
		OrderID:       sub.OrderId,
		PurchaseTime:  fromMillis(sub.StartTimeMillis),
		ExpiryTime:    expiry,
		AutoRenewing:  sub.AutoRenewing,
		Environment:   EnvironmentProduction,
		VendorStatus:  status,
	}
	if sub.PurchaseType != nil && *sub.PurchaseType == 0 {
		r.Environment = EnvironmentSandbox
	}
	if sub.PaymentState != nil {
		r.VendorStatus = int(*sub.PaymentState)
	}

	switch {
	case expiry == nil:
		r.Failure, r.Error = FailureValidation, "subscription has no expiry time"
	case !paid:
		r.Failure, r.Error = FailureValidation, "payment not received"
	case !expiry.After(now):
		r.Failure, r.Error = FailureValidation, "subscription expired"
	default:
		r.IsValid = true
	}
	return r.normalize(now)
}

func (v *GoogleVerifier) fetch(ctx context.Context, productID, token string) (*androidpublisher.SubscriptionPurchase, int, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	sub, err := v.svc.Purchases.Subscriptions.Get(v.cfg.PackageName, productID, token).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, apiErr.Code, fmt.Errorf("subscription lookup returned HTTP %d", apiErr.Code)
		}
		return nil, 0, fmt.Errorf("subscription lookup failed: %w", err)
	}
	return sub, sub.HTTPStatusCode, nil
}

func fromMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
