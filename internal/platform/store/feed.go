package store

import "sync"

// Feed hands values to a single callback on its own goroutine. Pushes never
// block; a slow callback only sees the newest value.
type Feed struct {
	fn func([]byte)

	// delivering is held from the closed check until fn returns.
	delivering sync.Mutex

	mu      sync.Mutex
	pending []byte
	has     bool
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func NewFeed(fn func([]byte)) *Feed {
	f := &Feed{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *Feed) Push(value []byte) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.pending = value
	f.has = true
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Close stops delivery and waits for a callback already running. No callback
// runs once it returns, so it must not be called from inside the callback.
// Safe to call more than once.
func (f *Feed) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		f.pending = nil
		f.has = false
		close(f.done)
	}
	f.mu.Unlock()

	f.delivering.Lock()
	f.delivering.Unlock()
}

func (f *Feed) run() {
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
		}

		if !f.deliver() {
			return
		}
	}
}

// deliver hands the pending value, if any, to fn. It reports false once the
// feed is closed.
func (f *Feed) deliver() bool {
	f.delivering.Lock()
	defer f.delivering.Unlock()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	if !f.has {
		f.mu.Unlock()
		return true
	}
	value := f.pending
	f.pending, f.has = nil, false
	f.mu.Unlock()

	f.fn(value)
	return true
}
