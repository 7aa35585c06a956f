package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/rs/zerolog/log"
)

const activeWindow = 30 * 24 * time.Hour

// UsageFileStore persists monthly course counters in a single JSON document.
//
// Every mutation reads the whole document, changes it and rewrites it via a
// temp file and rename, so readers never observe a partial write. The mutex
// serializes writers within this process only; separate processes sharing the
// file still race and the last writer wins.
type UsageFileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewUsageFileStore creates a store backed by path. A nil clock uses time.Now.
func NewUsageFileStore(path string, now func() time.Time) *UsageFileStore {
	if now == nil {
		now = time.Now
	}
	return &UsageFileStore{path: path, now: now}
}

// Path returns the backing file location.
func (s *UsageFileStore) Path() string {
	return s.path
}

// Load reads the document. Missing, unreadable or corrupt files yield an empty
// snapshot; the corrupt file is left in place and overwritten on the next save.
func (s *UsageFileStore) Load(ctx context.Context) *domain.UsageSnapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Ctx(ctx).Warn().Err(err).Str("path", s.path).Msg("Counter store unreadable, starting empty")
		}
		return domain.NewUsageSnapshot()
	}

	snap := domain.NewUsageSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("path", s.path).Msg("Counter store corrupt, starting empty")
		return domain.NewUsageSnapshot()
	}
	if snap.Users == nil {
		snap.Users = make(map[string]*domain.UsageRecord)
	}
	for id, rec := range snap.Users {
		if rec == nil {
			delete(snap.Users, id)
		}
	}
	if snap.Metadata.Version == "" {
		snap.Metadata.Version = domain.StoreVersion
	}
	return snap
}

// Save overwrites the whole document and stamps lastUpdated.
func (s *UsageFileStore) Save(ctx context.Context, snap *domain.UsageSnapshot) error {
	now := s.now().UTC()
	snap.LastUpdated = &now

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode counter store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create counter store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".courseCounts-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write counter store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace counter store: %w", err)
	}
	return nil
}

// GetOrCreate returns the record for id, creating a zero-count one if absent.
func (s *UsageFileStore) GetOrCreate(ctx context.Context, id string, userType domain.UserType) (*domain.UsageRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.Load(ctx)
	now := s.now().UTC()

	rec, ok := snap.Users[id]
	if ok {
		if rec.Rollover(now) {
			if err := s.Save(ctx, snap); err != nil {
				return nil, false, err
			}
		}
		return rec.Clone(), false, nil
	}

	rec = s.create(snap, id, userType, 0, now)
	if err := s.Save(ctx, snap); err != nil {
		return nil, false, err
	}
	return rec.Clone(), true, nil
}

// Increment records one generated course for id.
func (s *UsageFileStore) Increment(ctx context.Context, id string, userType domain.UserType) (*domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.Load(ctx)
	now := s.now().UTC()

	rec, ok := snap.Users[id]
	if !ok {
		rec = s.create(snap, id, userType, 0, now)
	}

	if !rec.InPeriod(now) {
		rec.Count = 0
		rec.FirstCourse = nil
	}
	rec.Count++
	rec.UserType = userType
	rec.LastCourse = &now
	if rec.FirstCourse == nil {
		first := now
		rec.FirstCourse = &first
	}
	snap.Metadata.TotalCourses++

	if err := s.Save(ctx, snap); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Get returns the record for id after applying the monthly rollover.
func (s *UsageFileStore) Get(ctx context.Context, id string) (*domain.UsageRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.Load(ctx)
	rec, ok := snap.Users[id]
	if !ok {
		return nil, false, nil
	}
	if rec.Rollover(s.now().UTC()) {
		if err := s.Save(ctx, snap); err != nil {
			return nil, false, err
		}
	}
	return rec.Clone(), true, nil
}

// Exists reports whether id has a record.
func (s *UsageFileStore) Exists(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.Load(ctx).Users[id]
	return ok
}

// Register creates a record with an initial count carried over from another
// identity. Existing records are returned untouched.
func (s *UsageFileStore) Register(ctx context.Context, id string, userType domain.UserType, initialCount int) (*domain.UsageRecord, bool, error) {
	if initialCount < 0 {
		initialCount = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.Load(ctx)
	if rec, ok := snap.Users[id]; ok {
		return rec.Clone(), false, nil
	}

	rec := s.create(snap, id, userType, initialCount, s.now().UTC())
	snap.Metadata.TotalCourses += initialCount
	if err := s.Save(ctx, snap); err != nil {
		return nil, false, err
	}
	return rec.Clone(), true, nil
}

// SetUserType changes the tier of an existing record, creating it if needed.
func (s *UsageFileStore) SetUserType(ctx context.Context, id string, userType domain.UserType) (*domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.Load(ctx)
	now := s.now().UTC()
	rec, ok := snap.Users[id]
	if !ok {
		rec = s.create(snap, id, userType, 0, now)
	}
	rec.Rollover(now)
	rec.UserType = userType
	if err := s.Save(ctx, snap); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Statistics summarizes the store. Active users had a course in the last 30 days.
func (s *UsageFileStore) Statistics(ctx context.Context) domain.UsageStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.Load(ctx)
	cutoff := s.now().Add(-activeWindow)

	active := 0
	for _, rec := range snap.Users {
		if rec.LastCourse != nil && rec.LastCourse.After(cutoff) {
			active++
		}
	}
	return domain.UsageStatistics{
		TotalUsers:   len(snap.Users),
		ActiveUsers:  active,
		TotalCourses: snap.Metadata.TotalCourses,
		LastUpdated:  snap.LastUpdated,
	}
}

// Wipe replaces the document with an empty one.
func (s *UsageFileStore) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Save(ctx, domain.NewUsageSnapshot())
}

func (s *UsageFileStore) create(snap *domain.UsageSnapshot, id string, userType domain.UserType, count int, now time.Time) *domain.UsageRecord {
	rec := &domain.UsageRecord{
		Count:     count,
		UserType:  userType,
		CreatedAt: now,
	}
	snap.Users[id] = rec
	snap.Metadata.TotalUsers++
	return rec
}
