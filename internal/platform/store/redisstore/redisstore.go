// Package redisstore keeps records in Redis so several API nodes can share a
// duel. Transactions use WATCH/MULTI/EXEC and every commit publishes a notice
// on the key's channel.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"leetclash/internal/platform/store"
)

const (
	notice     = "changed"
	retryDelay = 2 * time.Millisecond
)

type Store struct {
	rdb        *redis.Client
	ttl        time.Duration
	maxRetries int
}

var _ store.Store = (*Store)(nil)

// New returns a store writing every record with the given retention ttl.
// A zero ttl keeps records forever.
func New(rdb *redis.Client, ttl time.Duration, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Store{rdb: rdb, ttl: ttl, maxRetries: maxRetries}
}

func channel(key string) string {
	return "updates:" + key
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, s.ttl)
		pipe.Publish(ctx, channel(key), notice)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Transact(ctx context.Context, key string, fn store.TxFunc) ([]byte, error) {
	var committed []byte
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			pipe.Publish(ctx, channel(key), notice)
			return nil
		})
		if err == nil {
			committed = next
		}
		return err
	}

	backoff := retry.WithMaxRetries(uint64(s.maxRetries-1), retry.NewConstant(retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		log.Printf("WARN: transaction on %s gave up after %d attempts", key, s.maxRetries)
		return nil, store.ErrTransactionConflict
	}
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// Subscribe re-reads the key on every notice, so a subscriber never sees a
// value older than one it was already given.
func (s *Store) Subscribe(ctx context.Context, key string, fn func([]byte)) (func(), error) {
	ps := s.rdb.Subscribe(ctx, channel(key))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	feed := store.NewFeed(fn)
	subCtx, cancel := context.WithCancel(context.Background())

	push := func() {
		v, err := s.Read(subCtx, key)
		switch {
		case err == nil:
			feed.Push(v)
		case errors.Is(err, store.ErrNotFound):
			feed.Push(nil)
		case subCtx.Err() == nil:
			log.Printf("ERROR: refreshing subscription on %s: %v", key, err)
		}
	}
	push()

	msgs := ps.Channel()
	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				push()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			feed.Close()
			if err := ps.Close(); err != nil {
				log.Printf("WARN: closing subscription on %s: %v", key, err)
			}
		})
	}, nil
}
