package bridge

import (
	"context"
	"sync"
)

// Call is the pending result of an asynchronous bridge operation. It
// resolves exactly once.
type Call[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error

	mu        sync.Mutex
	resolved  bool
	callbacks []func(T, error)
}

func newCall[T any]() *Call[T] {
	return &Call[T]{done: make(chan struct{})}
}

// failed returns a Call that is already complete with err.
func failed[T any](err error) *Call[T] {
	c := newCall[T]()
	var zero T
	c.resolve(zero, err)
	return c
}

func (c *Call[T]) resolve(v T, err error) {
	c.once.Do(func() {
		c.value = v
		c.err = err
		close(c.done)

		c.mu.Lock()
		c.resolved = true
		callbacks := c.callbacks
		c.callbacks = nil
		c.mu.Unlock()

		for _, cb := range callbacks {
			go cb(v, err)
		}
	})
}

// Done is closed once the result is available.
func (c *Call[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call resolves or ctx ends. Ending ctx stops the
// wait only; the operation itself keeps running.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then registers cb to run on its own goroutine once the call resolves.
// Each registered callback runs exactly once.
func (c *Call[T]) Then(cb func(T, error)) {
	c.mu.Lock()
	if !c.resolved {
		c.callbacks = append(c.callbacks, cb)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	go cb(c.value, c.err)
}
