package credstore

import (
	"context"
	"sync"
)

// MemoryBackend keeps secrets for the lifetime of the process only
type MemoryBackend struct {
	mu      sync.Mutex
	secrets map[string]string
	// Err, when set, is returned by every operation
	Err error
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{secrets: make(map[string]string)}
}

// Name implements Backend
func (b *MemoryBackend) Name() string {
	return BackendMemory
}

func memoryKey(service, identity string) string {
	return service + "\x00" + identity
}

// Read implements Backend
func (b *MemoryBackend) Read(_ context.Context, service, identity string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return "", b.Err
	}
	secret, ok := b.secrets[memoryKey(service, identity)]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Write implements Backend
func (b *MemoryBackend) Write(_ context.Context, service, identity, secret string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.secrets[memoryKey(service, identity)] = secret
	return nil
}

// Delete implements Backend
func (b *MemoryBackend) Delete(_ context.Context, service, identity string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	key := memoryKey(service, identity)
	if _, ok := b.secrets[key]; !ok {
		return ErrNotFound
	}
	delete(b.secrets, key)
	return nil
}

// MemoryUserRecord is a UserRecord that is not persisted
type MemoryUserRecord struct {
	mu    sync.Mutex
	users map[string]string
}

// NewMemoryUserRecord creates an empty MemoryUserRecord
func NewMemoryUserRecord() *MemoryUserRecord {
	return &MemoryUserRecord{users: make(map[string]string)}
}

// CurrentUser implements UserRecord
func (r *MemoryUserRecord) CurrentUser(service string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[service]
}

// SetCurrentUser implements UserRecord
func (r *MemoryUserRecord) SetCurrentUser(service, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[service] = identity
	return nil
}

// ClearCurrentUser implements UserRecord
func (r *MemoryUserRecord) ClearCurrentUser(service string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, service)
	return nil
}
