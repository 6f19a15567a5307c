// Package memstore keeps records in process memory. It serves single-node
// deployments and tests.
package memstore

import (
	"context"
	"sync"

	"leetclash/internal/platform/store"
)

type Store struct {
	mu      sync.Mutex
	records map[string][]byte
	feeds   map[string]map[*store.Feed]struct{}
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records: make(map[string][]byte),
		feeds:   make(map[string]map[*store.Feed]struct{}),
	}
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(v), nil
}

func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
	return nil
}

// Transact runs fn under the store lock, so it never conflicts and fn runs
// exactly once.
func (s *Store) Transact(ctx context.Context, key string, fn store.TxFunc) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	if v, ok := s.records[key]; ok {
		current = clone(v)
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	s.setLocked(key, next)
	return clone(next), nil
}

func (s *Store) Subscribe(ctx context.Context, key string, fn func([]byte)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	feed := store.NewFeed(fn)

	s.mu.Lock()
	if s.feeds[key] == nil {
		s.feeds[key] = make(map[*store.Feed]struct{})
	}
	s.feeds[key][feed] = struct{}{}
	if v, ok := s.records[key]; ok {
		feed.Push(clone(v))
	} else {
		feed.Push(nil)
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			feed.Close()
			s.mu.Lock()
			delete(s.feeds[key], feed)
			if len(s.feeds[key]) == 0 {
				delete(s.feeds, key)
			}
			s.mu.Unlock()
		})
	}, nil
}

func (s *Store) setLocked(key string, value []byte) {
	s.records[key] = clone(value)
	for feed := range s.feeds[key] {
		feed.Push(clone(value))
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
