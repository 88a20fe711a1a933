package history

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64][]Message)}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Message(nil), m.sessions[chatID]...), nil
}

func (m *MemoryStore) Append(_ context.Context, chatID int64, msgs ...Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = append(m.sessions[chatID], msgs...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[int64][]Message)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
