package deviceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage persists the device snapshot between app starts.
type Storage interface {
	Load(ctx context.Context) (*UserData, error)
	Save(ctx context.Context, data *UserData) error
}

// FileStorage keeps the snapshot in a JSON file. A missing file loads as nil.
type FileStorage struct {
	Path string
}

func (f FileStorage) Load(ctx context.Context) (*UserData, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read device data: %w", err)
	}
	var data UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode device data: %w", err)
	}
	return &data, nil
}

func (f FileStorage) Save(ctx context.Context, data *UserData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.Path, raw, 0o600)
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu   sync.Mutex
	data *UserData
}

func (m *MemoryStorage) Load(ctx context.Context) (*UserData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	c := *m.data
	return &c, nil
}

func (m *MemoryStorage) Save(ctx context.Context, data *UserData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *data
	m.data = &c
	return nil
}
