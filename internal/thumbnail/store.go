// Package thumbnail keeps the custom thumbnail of each user as a Telegram file id.
package thumbnail

import (
	"context"
	"sync"
)

// Store maps a user to the file id of their thumbnail.
type Store interface {
	// Get returns the stored file id and whether one exists.
	Get(ctx context.Context, userID int64) (string, bool, error)
	// Set stores fileID for the user; a nil fileID deletes the record.
	Set(ctx context.Context, userID int64, fileID *string) error
}

// MemoryStore is an in-process Store for tests and database-less runs.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[int64]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[int64]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, userID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.files[userID]
	return id, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, userID int64, fileID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fileID == nil {
		delete(m.files, userID)
		return nil
	}
	m.files[userID] = *fileID
	return nil
}
