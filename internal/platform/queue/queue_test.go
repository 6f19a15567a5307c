package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQueues(t *testing.T) {
	queues := map[string]func(t *testing.T) Queue{
		"redis": func(t *testing.T) Queue {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { rdb.Close() })
			return NewRedisQueue(rdb, "judge_tickets_queue")
		},
		"memory": func(t *testing.T) Queue { return NewMemoryQueue(8) },
	}

	for name, newQueue := range queues {
		t.Run(name, func(t *testing.T) {
			q := newQueue(t)
			ctx := context.Background()

			for _, p := range []string{"first", "second"} {
				if err := q.Push(ctx, []byte(p)); err != nil {
					t.Fatal(err)
				}
			}
			for _, want := range []string{"first", "second"} {
				got, err := q.Pop(ctx)
				if err != nil || string(got) != want {
					t.Fatalf("Pop = %q, %v; want %q", got, err, want)
				}
			}

			stopped, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			if _, err := q.Pop(stopped); !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("Pop on empty queue = %v, want deadline exceeded", err)
			}
		})
	}
}
