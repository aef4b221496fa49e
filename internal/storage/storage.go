// Package storage provides the key/value stores the tracker persists shopper
// state in: a per-session store scoped to one browsing session and a
// long-lived store that survives across sessions.
package storage

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("storage: key not found")
	// ErrUnavailable is returned by stores that cannot be used at all.
	ErrUnavailable = errors.New("storage: unavailable")
)

// Store is a string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Memory is a process-local Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

// Clear drops every key, as a browser does with session storage on tab close.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.values = make(map[string]string)
	m.mu.Unlock()
}

// Unavailable is a Store that fails every call, standing in for storage the
// host has disabled.
type Unavailable struct{}

func (Unavailable) Get(context.Context, string) (string, error) { return "", ErrUnavailable }
func (Unavailable) Set(context.Context, string, string) error   { return ErrUnavailable }
func (Unavailable) Delete(context.Context, string) error        { return ErrUnavailable }
