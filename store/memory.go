package store

import (
	"context"
	"sync"
)

type inMemory struct {
	mu      sync.RWMutex
	storage map[int64]User
}

// NewMemoryUsers returns an in-memory store with the given users
func NewMemoryUsers(users ...*User) Users {
	m := &inMemory{
		storage: make(map[int64]User, len(users)),
	}
	for _, u := range users {
		m.storage[u.ID] = *u
	}
	return m
}

func (m *inMemory) Get(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.storage[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *inMemory) Put(_ context.Context, user *User) error {
	if err := validate(user); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storage[user.ID] = *user
	return nil
}

func (m *inMemory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.storage, id)
	return nil
}

func (m *inMemory) List(_ context.Context) ([]*User, error) {
	m.mu.RLock()
	list := make([]*User, 0, len(m.storage))
	for _, u := range m.storage {
		list = append(list, &u)
	}
	m.mu.RUnlock()

	sortUsers(list)
	return list, nil
}
