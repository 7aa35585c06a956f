// Package claimtoken encodes the bearer credential handed out after a purchase
// is verified and before it is linked to an account.
//
// Tokens are base64 of a JSON payload and carry no signature. Anyone holding a
// token can read it and forge one that points at another subscription id; the
// short TTL and the single-use claim are the only protections.
package claimtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DefaultTTL bounds how long a staged purchase can be claimed.
const DefaultTTL = time.Hour

var (
	ErrMalformed = errors.New("malformed verification token")
	ErrExpired   = errors.New("verification token expired")
)

// Payload is the decoded token content.
type Payload struct {
	SubscriptionID string `json:"subscriptionId"`
	ProductID      string `json:"productId"`
	IssuedAt       int64  `json:"issuedAt"` // unix milliseconds
}

// Issued returns IssuedAt as a time.
func (p Payload) Issued() time.Time {
	return time.UnixMilli(p.IssuedAt)
}

// Encode builds a token for subscriptionID issued at the given time.
func Encode(subscriptionID, productID string, issuedAt time.Time) (string, error) {
	raw, err := json.Marshal(Payload{
		SubscriptionID: subscriptionID,
		ProductID:      productID,
		IssuedAt:       issuedAt.UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a token without checking its age.
func Decode(token string) (Payload, error) {
	var p Payload
	token = strings.TrimSpace(token)
	if token == "" {
		return p, ErrMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		// Clients sometimes strip padding or use the URL alphabet.
		if raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "=")); err != nil {
			return p, ErrMalformed
		}
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, ErrMalformed
	}
	if p.SubscriptionID == "" || p.IssuedAt <= 0 {
		return p, ErrMalformed
	}
	return p, nil
}

// Verify decodes the token and rejects it once now - issuedAt exceeds ttl.
func Verify(token string, ttl time.Duration, now time.Time) (Payload, error) {
	p, err := Decode(token)
	if err != nil {
		return p, err
	}
	if now.Sub(p.Issued()) > ttl {
		return p, ErrExpired
	}
	return p, nil
}
