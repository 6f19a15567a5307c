// Package queue carries submission tickets from the API to the judge workers.
package queue

import "context"

type Queue interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks until a payload arrives or ctx is done.
	Pop(ctx context.Context) ([]byte, error)
}

// MemoryQueue is the single-process Queue used with the in-memory store.
type MemoryQueue struct {
	ch chan []byte
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan []byte, size)}
}

func (q *MemoryQueue) Push(ctx context.Context, payload []byte) error {
	select {
	case q.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) ([]byte, error) {
	select {
	case p := <-q.ch:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
