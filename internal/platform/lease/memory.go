package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type heldLease struct {
	token   string
	expires time.Time
}

// MemoryLocker is the single-process Locker used with the in-memory store.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]heldLease
	now    func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]heldLease), now: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held, ok := l.leases[key]; ok && l.now().Before(held.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.leases[key] = heldLease{token: token, expires: l.now().Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Renew(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.leases[key]
	if !ok || held.token != token || !l.now().Before(held.expires) {
		return false, nil
	}
	held.expires = l.now().Add(ttl)
	l.leases[key] = held
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held, ok := l.leases[key]; ok && held.token == token {
		delete(l.leases, key)
	}
	return nil
}
