// Package deviceclient is the client side of anonymous device registration:
// it derives a device hash once, registers it with the backend and caches the
// resulting usage snapshot locally.
package deviceclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the bootstrap lifecycle position.
type State int

const (
	NoIdentity State = iota
	Generating
	Registered
)

func (s State) String() string {
	switch s {
	case NoIdentity:
		return "no_identity"
	case Generating:
		return "generating"
	case Registered:
		return "registered"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// UserData is the locally cached device snapshot.
type UserData struct {
	DeviceHash  string    `json:"deviceHash"`
	CourseCount int       `json:"courseCount"`
	UserType    string    `json:"userType"`
	IsNew       bool      `json:"isNew"`
	CreatedAt   time.Time `json:"createdAt"`
	// Offline is set when the backend could not be reached during registration.
	Offline bool `json:"offline,omitempty"`
}

// PlatformIDFunc returns a vendor or install identifier for this device.
type PlatformIDFunc func(ctx context.Context) (string, error)

// Config wires a Bootstrapper.
type Config struct {
	BaseURL    string
	OS         string
	HTTPClient *http.Client
	PlatformID PlatformIDFunc
	Storage    Storage
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger

	PlatformIDTimeout time.Duration
	HashTimeout       time.Duration
	BackendTimeout    time.Duration
	Now               func() time.Time
}

// Bootstrapper drives NoIdentity -> Generating -> Registered.
type Bootstrapper struct {
	cfg   Config
	mu    sync.Mutex
	state State
}

// New creates a new Bootstrapper.
func New(cfg Config) *Bootstrapper {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Storage == nil {
		cfg.Storage = &MemoryStorage{}
	}
	if cfg.OS == "" {
		cfg.OS = "unknown"
	}
	if cfg.PlatformIDTimeout <= 0 {
		cfg.PlatformIDTimeout = 2 * time.Second
	}
	if cfg.HashTimeout <= 0 {
		cfg.HashTimeout = 5 * time.Second
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = 8 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Bootstrapper{cfg: cfg}
}

// State returns the current lifecycle state.
func (b *Bootstrapper) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bootstrapper) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Init re-posts the stored hash when one exists and refreshes the snapshot,
// keeping the cached copy if the backend cannot be reached. Without a stored
// hash it generates one, registers it and stores the result. Backend failures
// still end in Registered with an offline snapshot.
func (b *Bootstrapper) Init(ctx context.Context) (*UserData, error) {
	stored, err := b.cfg.Storage.Load(ctx)
	if err != nil {
		b.cfg.Logger.Warn().Err(err).Msg("Stored device data unreadable, generating a new identity")
	}
	if stored != nil && stored.DeviceHash != "" {
		data, err := b.register(ctx, stored.DeviceHash)
		if err != nil {
			b.cfg.Logger.Warn().Err(err).Bool("offline", stored.Offline).Msg("Device re-registration failed, using cached snapshot")
			b.setState(Registered)
			return stored, nil
		}
		if err := b.cfg.Storage.Save(ctx, data); err != nil {
			b.cfg.Logger.Warn().Err(err).Msg("Failed to persist device data")
		}
		b.setState(Registered)
		return data, nil
	}

	b.setState(Generating)
	hash := b.generateHash(ctx)

	data, err := b.register(ctx, hash)
	if err != nil {
		b.cfg.Logger.Warn().Err(err).Msg("Device registration failed, continuing offline")
		data = &UserData{
			DeviceHash: hash,
			UserType:   "anonymous",
			IsNew:      true,
			CreatedAt:  b.cfg.Now().UTC(),
			Offline:    true,
		}
	}

	if err := b.cfg.Storage.Save(ctx, data); err != nil {
		b.cfg.Logger.Warn().Err(err).Msg("Failed to persist device data")
	}
	b.setState(Registered)
	return data, nil
}

// Sync re-posts the stored hash and refreshes the cached snapshot.
func (b *Bootstrapper) Sync(ctx context.Context) (*UserData, error) {
	stored, err := b.cfg.Storage.Load(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.DeviceHash == "" {
		return b.Init(ctx)
	}
	data, err := b.register(ctx, stored.DeviceHash)
	if err != nil {
		return stored, err
	}
	if err := b.cfg.Storage.Save(ctx, data); err != nil {
		return data, err
	}
	return data, nil
}

// RecordCourse bumps the cached course count after a successful generation.
func (b *Bootstrapper) RecordCourse(ctx context.Context) error {
	data, err := b.cfg.Storage.Load(ctx)
	if err != nil || data == nil {
		return err
	}
	data.CourseCount++
	return b.cfg.Storage.Save(ctx, data)
}

func (b *Bootstrapper) generateHash(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HashTimeout)
	defer cancel()

	uniqueID := b.platformID(ctx)
	if uniqueID == "" {
		fallback, err := fallbackID(b.cfg.Now())
		if err != nil {
			return fmt.Sprintf("device_%s_emergency_%d", b.cfg.OS, b.cfg.Now().UnixMilli())
		}
		uniqueID = fallback
	}
	return HashFromID(b.cfg.OS, uniqueID)
}

func (b *Bootstrapper) platformID(ctx context.Context) string {
	if b.cfg.PlatformID == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.PlatformIDTimeout)
	defer cancel()

	type result struct {
		id  string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		id, err := b.cfg.PlatformID(ctx)
		ch <- result{id, err}
	}()

	select {
	case <-ctx.Done():
		b.cfg.Logger.Debug().Msg("Platform id lookup timed out")
		return ""
	case r := <-ch:
		if r.err != nil {
			b.cfg.Logger.Debug().Err(r.err).Msg("Platform id lookup failed")
			return ""
		}
		return strings.TrimSpace(r.id)
	}
}

// HashFromID derives device_<os>_<12 hex chars> from a platform or fallback id.
func HashFromID(os, uniqueID string) string {
	sum := sha256.Sum256([]byte(uniqueID))
	return fmt.Sprintf("device_%s_%s", os, hex.EncodeToString(sum[:])[:12])
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func fallbackID(now time.Time) (string, error) {
	var sb strings.Builder
	alphabet := big.NewInt(int64(len(base36)))
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", err
		}
		sb.WriteByte(base36[n.Int64()])
	}
	return fmt.Sprintf("fallback_%d_%s", now.UnixMilli(), sb.String()), nil
}

type initializeResponse struct {
	Success     bool      `json:"success"`
	DeviceHash  string    `json:"deviceHash"`
	IsNew       bool      `json:"isNew"`
	CourseCount int       `json:"courseCount"`
	UserType    string    `json:"userType"`
	CreatedAt   time.Time `json:"createdAt"`
	Error       string    `json:"error"`
}

func (b *Bootstrapper) register(ctx context.Context, hash string) (*UserData, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.BackendTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"deviceHash": hash})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/api/auth/initialize-device", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out initializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode registration response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return nil, fmt.Errorf("registration failed: HTTP %d %s", resp.StatusCode, out.Error)
	}

	return &UserData{
		DeviceHash:  hash,
		CourseCount: out.CourseCount,
		UserType:    out.UserType,
		IsNew:       out.IsNew,
		CreatedAt:   out.CreatedAt,
	}, nil
}
