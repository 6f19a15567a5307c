package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leetclash/internal/domain/game"
	"leetclash/internal/domain/model"
	"leetclash/internal/platform/store"
	"leetclash/internal/platform/store/memstore"
)

func sampleDuel(t *testing.T, id string) *model.Match {
	t.Helper()
	m, err := game.NewDuel(id, []model.Problem{{ID: "two_sum", Complexity: "O(n)", Template: "def two_sum():\n    pass"}}, model.DifficultyEasy, "user-a", time.UnixMilli(1_700_000_000_000))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMatchStoreRoundTrip(t *testing.T) {
	s := NewMatchStore(memstore.New(), "games/")
	ctx := context.Background()
	m := sampleDuel(t, "ABC123")

	if err := s.Create(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, m); !errors.Is(err, ErrMatchExists) {
		t.Fatalf("err = %v, want ErrMatchExists", err)
	}

	got, err := s.Get(ctx, "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusWaiting || got.Player(model.PlayerA).UserID != "user-a" {
		t.Fatalf("got = %+v", got)
	}

	if _, err := s.Get(ctx, "NOPE00"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMatchStoreConcurrentJoin(t *testing.T) {
	s := NewMatchStore(memstore.New(), "games/")
	ctx := context.Background()
	if err := s.Create(ctx, sampleDuel(t, "RACE01")); err != nil {
		t.Fatal(err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		aborted int
	)
	for _, user := range []string{"user-b", "user-c"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := s.Update(ctx, "RACE01", func(current *model.Match) (*model.Match, error) {
				next, ok := game.Join(current, user, time.Now())
				if !ok {
					return nil, store.ErrAborted
				}
				return next, nil
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, store.ErrAborted):
				aborted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(user)
	}
	wg.Wait()

	if success != 1 || aborted != 1 {
		t.Fatalf("success = %d, aborted = %d; want exactly one of each", success, aborted)
	}
}

func TestMatchStoreUpdateNilAborts(t *testing.T) {
	s := NewMatchStore(memstore.New(), "games/")
	_, err := s.Update(context.Background(), "GHOST1", func(current *model.Match) (*model.Match, error) {
		if current != nil {
			t.Fatal("absent record should be passed as nil")
		}
		return nil, nil
	})
	if !errors.Is(err, store.ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
}
