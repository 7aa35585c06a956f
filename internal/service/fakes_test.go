package service

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/repository"
	"github.com/ahmousavi39/Learn-Ai-sub000/pkg/payment"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newUsageStore(t *testing.T, c *clock) *repository.UsageFileStore {
	t.Helper()
	return repository.NewUsageFileStore(filepath.Join(t.TempDir(), "courseCounts.json"), c.Now)
}

// memSubscriptions mirrors the conditional-update semantics of the pgx repository.
type memSubscriptions struct {
	mu       sync.Mutex
	unlinked map[string]*domain.UnlinkedSubscription
	linked   map[string]*domain.Subscription
}

func newMemSubscriptions() *memSubscriptions {
	return &memSubscriptions{
		unlinked: make(map[string]*domain.UnlinkedSubscription),
		linked:   make(map[string]*domain.Subscription),
	}
}

func (m *memSubscriptions) CreateUnlinked(_ context.Context, sub *domain.UnlinkedSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.unlinked[sub.ID] = &cp
	return nil
}

func (m *memSubscriptions) FindUnlinked(_ context.Context, id string) (*domain.UnlinkedSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.unlinked[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (m *memSubscriptions) Claim(_ context.Context, id, userID, email string, now time.Time) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged, ok := m.unlinked[id]
	if !ok {
		return nil, repository.ErrSubscriptionNotFound
	}
	if !staged.AwaitingUserLink {
		return nil, repository.ErrAlreadyLinked
	}
	sub := &domain.Subscription{
		ID:           id,
		Purchase:     staged.Purchase,
		LinkedUserID: userID,
		LinkedEmail:  email,
		LinkedAt:     now,
		IsActive:     true,
		UpdatedAt:    now,
	}
	m.linked[id] = sub
	delete(m.unlinked, id)
	cp := *sub
	return &cp, nil
}

func (m *memSubscriptions) CreateLinked(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.linked[sub.ID] = &cp
	return nil
}

func (m *memSubscriptions) FindByID(_ context.Context, id string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.linked[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (m *memSubscriptions) ListByUser(_ context.Context, userID string) ([]*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Subscription
	for _, sub := range m.linked {
		if sub.LinkedUserID == userID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LinkedAt.After(out[j].LinkedAt) })
	return out, nil
}

func (m *memSubscriptions) FindProfile(_ context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Subscription
	for _, sub := range m.linked {
		if sub.LinkedUserID == userID && (latest == nil || sub.LinkedAt.After(latest.LinkedAt)) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, nil
	}
	return &domain.Profile{
		UserID:             userID,
		Email:              latest.LinkedEmail,
		SubscriptionID:     latest.ID,
		ProductID:          latest.ProductID,
		IsPremium:          latest.Valid(latest.UpdatedAt),
		SubscriptionExpiry: latest.ExpiryTime,
		UpdatedAt:          latest.UpdatedAt,
	}, nil
}

func (m *memSubscriptions) UpdateStatus(_ context.Context, id string, isActive bool, expiry *time.Time, now time.Time) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.linked[id]
	if !ok {
		return nil, repository.ErrSubscriptionNotFound
	}
	sub.IsActive = isActive
	if expiry != nil {
		e := *expiry
		sub.ExpiryTime = &e
	}
	sub.UpdatedAt = now
	cp := *sub
	return &cp, nil
}

func (m *memSubscriptions) Counts(context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, sub := range m.linked {
		if sub.IsActive {
			active++
		}
	}
	return len(m.unlinked), active, nil
}

type stubVerifier struct {
	mu     sync.Mutex
	result payment.Result
	calls  []payment.Request
}

func (v *stubVerifier) VerifyReceipt(_ context.Context, req payment.Request) payment.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, req)
	r := v.result
	if r.Platform == "" {
		r.Platform = req.Platform
	}
	return r
}

func validResult(productID string, expiry time.Time) payment.Result {
	return payment.Result{
		IsValid:       true,
		ProductID:     productID,
		TransactionID: "txn-1",
		ExpiryTime:    &expiry,
		AutoRenewing:  true,
		Environment:   "Sandbox",
	}
}

type recordingMarker struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingMarker) MarkPremium(_ context.Context, id string) error {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	return nil
}
