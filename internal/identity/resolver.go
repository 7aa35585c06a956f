// Package identity derives the usage-counter key for an incoming request.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// Source tells which part of the request produced the identifier.
type Source string

const (
	SourceHeader      Source = "header"
	SourceBody        Source = "body"
	SourceGuestHeader Source = "guest-header"
	SourceAddress     Source = "address"
)

// GuestHeader lets clients without a device hash supply a stable guest id.
const GuestHeader = "X-Guest-ID"

// Identity is a resolved counter key.
type Identity struct {
	Identifier string `json:"identifier"`
	Source     Source `json:"source"`
}

// IsDevice reports whether the identifier is a client-generated device hash.
func (i Identity) IsDevice() bool {
	return i.Source == SourceHeader || i.Source == SourceBody
}

// Resolve picks the first available identifier in this order: bearer device
// hash, deviceHash in the JSON body, guest header, client address.
// body may be nil. The result is stable for the same inputs but nothing here
// authenticates the client.
func Resolve(r *http.Request, body []byte) Identity {
	if hash := BearerToken(r); hash != "" {
		return Identity{Identifier: hash, Source: SourceHeader}
	}
	if hash := bodyDeviceHash(body); hash != "" {
		return Identity{Identifier: hash, Source: SourceBody}
	}
	if guest := strings.TrimSpace(r.Header.Get(GuestHeader)); guest != "" {
		return Identity{Identifier: "guest_" + guest, Source: SourceGuestHeader}
	}
	sum := sha256.Sum256([]byte(ClientIP(r)))
	return Identity{Identifier: "guest_" + hex.EncodeToString(sum[:8]), Source: SourceAddress}
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func bodyDeviceHash(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		DeviceHash string `json:"deviceHash"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.DeviceHash)
}

// ClientIP returns the client IP, preferring proxy headers if available.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		return strings.TrimSpace(parts[0])
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
