package repository

import (
	"context"
	"sync"
)

// MemoryStore keeps the directory in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]string
	chats map[int64]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]string),
		chats: make(map[int64]string),
	}
}

func (s *MemoryStore) AddUser(_ context.Context, id int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = username
	return nil
}

func (s *MemoryStore) AddChat(_ context.Context, id int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[id] = title
	return nil
}

func (s *MemoryStore) RemoveChat(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, id)
	return nil
}

func (s *MemoryStore) UserCount(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) ChatCount(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chats)), nil
}

func (s *MemoryStore) Close() error { return nil }
