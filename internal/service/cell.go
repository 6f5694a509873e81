package service

import (
	"context"
	"sync"

	"github.com/rs/xid"
)

// cellBufferSize is the buffer on each subscriber channel. Every emission
// is a complete current value, so a dropped intermediate value is always
// superseded by the next delivered one.
const cellBufferSize = 16

// Cell is a current-value holder with change notification — the reactive
// state primitive the view-state services publish through.
//
// A Cell always has a value: Get never blocks and Subscribe delivers the
// current value immediately before any updates. Only the owning service
// calls Set; everything else observes.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	subs  map[string]chan T
}

// NewCell creates a Cell holding the given initial value.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value: initial,
		subs:  make(map[string]chan T),
	}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the current value and notifies all subscribers. Delivery is
// non-blocking: a subscriber whose buffer is full misses this value and
// catches up on the next one.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	targets := make([]chan T, 0, len(c.subs))
	for _, ch := range c.subs {
		targets = append(targets, ch)
	}
	c.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribe returns a channel that receives the current value immediately
// and every subsequent Set. Cancelling ctx removes the subscription and
// closes the channel — there is no explicit unsubscribe to forget.
func (c *Cell[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, cellBufferSize)
	id := xid.New().String()

	c.mu.Lock()
	c.subs[id] = ch
	ch <- c.value // buffered, cannot block
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
		c.mu.Unlock()
	}()

	return ch
}
