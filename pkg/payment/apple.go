package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"
)

const (
	AppleProductionURL = "https://buy.itunes.apple.com/verifyReceipt"
	AppleSandboxURL    = "https://sandbox.itunes.apple.com/verifyReceipt"

	EnvironmentProduction = "production"
	EnvironmentSandbox    = "sandbox"

	// MockReceiptPrefix marks development receipts that skip the network.
	MockReceiptPrefix = "sandbox-receipt-"

	appleStatusOK = 0
	// appleStatusSandboxReceipt is returned by production for sandbox receipts.
	appleStatusSandboxReceipt = 21007

	mockSubscriptionPeriod = 30 * 24 * time.Hour
	defaultVerifyTimeout   = 15 * time.Second
)

// AppleConfig configures receipt validation against the App Store.
type AppleConfig struct {
	SharedSecret  string
	Environment   string
	ProductionURL string
	SandboxURL    string
	// ProductIDs restricts accepted products when non-empty.
	ProductIDs []string
	// AllowMockReceipts enables MockReceiptPrefix, but only while SharedSecret is empty.
	AllowMockReceipts bool
	Timeout           time.Duration
	Retry             RetryPolicy
}

// AppleVerifier validates App Store receipts with the verifyReceipt endpoints.
type AppleVerifier struct {
	cfg  AppleConfig
	opts options
}

// NewAppleVerifier creates a new AppleVerifier.
func NewAppleVerifier(cfg AppleConfig, opts ...Option) *AppleVerifier {
	if cfg.ProductionURL == "" {
		cfg.ProductionURL = AppleProductionURL
	}
	if cfg.SandboxURL == "" {
		cfg.SandboxURL = AppleSandboxURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultVerifyTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = SandboxRedirectPolicy
	}
	o := buildOptions(opts)
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &AppleVerifier{cfg: cfg, opts: o}
}

type appleTransaction struct {
	ProductID             string `json:"product_id"`
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	PurchaseDateMs        string `json:"purchase_date_ms"`
	ExpiresDateMs         string `json:"expires_date_ms"`
}

type appleResponse struct {
	Status      int    `json:"status"`
	Environment string `json:"environment"`
	Receipt     *struct {
		InApp []appleTransaction `json:"in_app"`
	} `json:"receipt"`
	LatestReceiptInfo  []appleTransaction `json:"latest_receipt_info"`
	PendingRenewalInfo []struct {
		AutoRenewStatus string `json:"auto_renew_status"`
	} `json:"pending_renewal_info"`
}

// VerifyReceipt implements Verifier.
func (v *AppleVerifier) VerifyReceipt(ctx context.Context, req Request) Result {
	now := v.opts.now()

	if v.mockAllowed() && strings.HasPrefix(req.Receipt, MockReceiptPrefix) {
		return v.mockResult(req, now)
	}
	if v.cfg.SharedSecret == "" {
		return invalid(PlatformIOS, FailureConfiguration, "Apple shared secret not configured")
	}

	production := strings.EqualFold(v.cfg.Environment, EnvironmentProduction)
	url := v.cfg.SandboxURL
	if production {
		url = v.cfg.ProductionURL
	}

	resp, err := v.post(ctx, url, req.Receipt)
	if err != nil {
		return invalid(PlatformIOS, FailureValidation, err.Error())
	}

	if production && resp.Status == appleStatusSandboxReceipt {
		var redirected *appleResponse
		var lastErr error
		v.cfg.Retry.Do(ctx, func(int) bool {
			redirected, lastErr = v.post(ctx, v.cfg.SandboxURL, req.Receipt)
			return lastErr == nil
		})
		if redirected == nil {
			msg := "sandbox redirect failed"
			if lastErr != nil {
				msg = lastErr.Error()
			}
			r := invalid(PlatformIOS, FailureValidation, msg)
			r.VendorStatus = appleStatusSandboxReceipt
			return r
		}
		resp = redirected
	}

	return v.toResult(resp, req.ProductID, now)
}

func (v *AppleVerifier) mockAllowed() bool {
	return v.cfg.AllowMockReceipts && v.cfg.SharedSecret == ""
}

func (v *AppleVerifier) mockResult(req Request, now time.Time) Result {
	suffix := strings.TrimPrefix(req.Receipt, MockReceiptPrefix)
	purchased := now.UTC()
	expiry := purchased.Add(mockSubscriptionPeriod)
	return Result{
		IsValid:               true,
		Platform:              PlatformIOS,
		ProductID:             req.ProductID,
		TransactionID:         "mock-txn-" + suffix,
		OriginalTransactionID: "mock-original-" + suffix,
		PurchaseTime:          &purchased,
		ExpiryTime:            &expiry,
		AutoRenewing:          true,
		Environment:           EnvironmentSandbox,
		IsMock:                true,
	}
}

func (v *AppleVerifier) post(ctx context.Context, url, receipt string) (*appleResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"receipt-data":             receipt,
		"password":                 v.cfg.SharedSecret,
		"exclude-old-transactions": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build receipt request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.opts.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("receipt validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("receipt validation returned HTTP %d", resp.StatusCode)
	}

	var out appleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode receipt response: %w", err)
	}
	return &out, nil
}

func (v *AppleVerifier) toResult(resp *appleResponse, productID string, now time.Time) Result {
	if resp.Status != appleStatusOK {
		r := invalid(PlatformIOS, FailureValidation, fmt.Sprintf("Apple verification failed: %d", resp.Status))
		r.VendorStatus = resp.Status
		r.Environment = resp.Environment
		return r
	}

	txns := resp.LatestReceiptInfo
	if len(txns) == 0 && resp.Receipt != nil {
		txns = resp.Receipt.InApp
	}
	txn, ok := latestTransaction(txns, productID)
	if !ok {
		return invalid(PlatformIOS, FailureValidation, "receipt contains no transactions")
	}
	if len(v.cfg.ProductIDs) > 0 && !slices.Contains(v.cfg.ProductIDs, txn.ProductID) {
		return invalid(PlatformIOS, FailureValidation, "unknown product: "+txn.ProductID)
	}

	r := Result{
		IsValid:               true,
		Platform:              PlatformIOS,
		ProductID:             txn.ProductID,
		TransactionID:         txn.TransactionID,
		OriginalTransactionID: txn.OriginalTransactionID,
		PurchaseTime:          millis(txn.PurchaseDateMs),
		ExpiryTime:            millis(txn.ExpiresDateMs),
		Environment:           resp.Environment,
		VendorStatus:          resp.Status,
	}
	if len(resp.PendingRenewalInfo) > 0 {
		r.AutoRenewing = resp.PendingRenewalInfo[0].AutoRenewStatus == "1"
	}
	return r.normalize(now)
}

// latestTransaction prefers entries for productID and picks the one that
// expires (or was purchased) last.
func latestTransaction(txns []appleTransaction, productID string) (appleTransaction, bool) {
	candidates := txns
	if productID != "" {
		var matching []appleTransaction
		for _, t := range txns {
			if t.ProductID == productID {
				matching = append(matching, t)
			}
		}
		if len(matching) > 0 {
			candidates = matching
		}
	}
	if len(candidates) == 0 {
		return appleTransaction{}, false
	}

	best := candidates[0]
	for _, t := range candidates[1:] {
		if sortKey(t).After(sortKey(best)) {
			best = t
		}
	}
	return best, true
}

func sortKey(t appleTransaction) time.Time {
	if e := millis(t.ExpiresDateMs); e != nil {
		return *e
	}
	if p := millis(t.PurchaseDateMs); p != nil {
		return *p
	}
	return time.Time{}
}
