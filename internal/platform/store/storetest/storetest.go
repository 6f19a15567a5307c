// Package storetest holds behaviour every store.Store implementation must
// share.
package storetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"leetclash/internal/platform/store"
)

// Run exercises s against the store contract. newStore must return an empty
// store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("read missing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Read(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("write then read", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Write(ctx, "k", []byte("v1")); err != nil {
			t.Fatal(err)
		}
		got, err := s.Read(ctx, "k")
		if err != nil || string(got) != "v1" {
			t.Fatalf("Read = %q, %v", got, err)
		}
	})

	t.Run("aborted transaction commits nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.Write(ctx, "k", []byte("before"))

		_, err := s.Transact(ctx, "k", func(current []byte) ([]byte, error) {
			return nil, store.ErrAborted
		})
		if !errors.Is(err, store.ErrAborted) {
			t.Fatalf("err = %v, want ErrAborted", err)
		}
		got, _ := s.Read(ctx, "k")
		if string(got) != "before" {
			t.Fatalf("value = %q, want unchanged", got)
		}
	})

	t.Run("transaction sees absent key as nil", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Transact(context.Background(), "fresh", func(current []byte) ([]byte, error) {
			if current != nil {
				return nil, store.ErrAborted
			}
			return []byte("created"), nil
		})
		if err != nil || string(got) != "created" {
			t.Fatalf("Transact = %q, %v", got, err)
		}
	})

	t.Run("concurrent transactions serialize", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const writers = 10

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Transact(ctx, "counter", func(current []byte) ([]byte, error) {
					n := 0
					if current != nil {
						n, _ = strconv.Atoi(string(current))
					}
					return []byte(strconv.Itoa(n + 1)), nil
				})
				if err != nil {
					t.Errorf("Transact: %v", err)
				}
			}()
		}
		wg.Wait()

		got, _ := s.Read(ctx, "counter")
		if string(got) != strconv.Itoa(writers) {
			t.Fatalf("counter = %s, want %d", got, writers)
		}
	})

	t.Run("only one claimant wins a seat", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.Write(ctx, "seat", []byte("open"))

		const claimants = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins []int
		)
		for i := 0; i < claimants; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.Transact(ctx, "seat", func(current []byte) ([]byte, error) {
					if string(current) != "open" {
						return nil, store.ErrAborted
					}
					return []byte("taken by " + strconv.Itoa(i)), nil
				})
				if err == nil {
					mu.Lock()
					wins = append(wins, i)
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if len(wins) != 1 {
			t.Fatalf("%d claimants won, want exactly 1", len(wins))
		}
		got, _ := s.Read(ctx, "seat")
		if string(got) != "taken by "+strconv.Itoa(wins[0]) {
			t.Fatalf("seat = %q, want winner %d", got, wins[0])
		}
	})

	t.Run("subscribe delivers snapshots", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		values := make(chan []byte, 16)
		unsubscribe, err := s.Subscribe(ctx, "watched", func(v []byte) { values <- v })
		if err != nil {
			t.Fatal(err)
		}

		if v := next(t, values); v != nil {
			t.Fatalf("initial value = %q, want nil for an absent key", v)
		}

		_ = s.Write(ctx, "watched", []byte("one"))
		waitFor(t, values, "one")

		_, _ = s.Transact(ctx, "watched", func([]byte) ([]byte, error) { return []byte("two"), nil })
		waitFor(t, values, "two")

		unsubscribe()
		unsubscribe()
		drain(values)
		_ = s.Write(ctx, "watched", []byte("three"))
		select {
		case v := <-values:
			t.Fatalf("received %q after unsubscribe", v)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("subscribe to existing key", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.Write(ctx, "existing", []byte("now"))

		values := make(chan []byte, 4)
		unsubscribe, err := s.Subscribe(ctx, "existing", func(v []byte) { values <- v })
		if err != nil {
			t.Fatal(err)
		}
		defer unsubscribe()
		if v := next(t, values); string(v) != "now" {
			t.Fatalf("initial value = %q, want %q", v, "now")
		}
	})
}

func next(t *testing.T, values <-chan []byte) []byte {
	t.Helper()
	select {
	case v := <-values:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a value")
		return nil
	}
}

// waitFor skips stale deliveries until want arrives.
func waitFor(t *testing.T, values <-chan []byte, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-values:
			if string(v) == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func drain(values <-chan []byte) {
	for {
		select {
		case <-values:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}
