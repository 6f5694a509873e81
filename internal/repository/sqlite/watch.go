package sqlite

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rs/xid"
)

// watchBufferSize is the channel buffer for each subscriber. A subscriber
// that falls this many snapshots behind starts losing intermediate ones,
// which is fine — every emission is the complete current table, so the next
// delivered snapshot supersedes anything that was dropped.
const watchBufferSize = 16

// watchHub is an in-memory fan-out for full-table snapshots — the "live
// query" half of the store. Writers publish the fresh table after each
// committed mutation; subscribers receive it on their own buffered channel.
//
// Subscriptions are tied to a context: cancelling it removes the subscriber
// and closes its channel, so consumers cannot leak a subscription by
// forgetting an explicit unsubscribe call.
type watchHub[T any] struct {
	mu     sync.RWMutex
	subs   map[string]chan []T
	closed bool
	logger *slog.Logger
}

func newWatchHub[T any](logger *slog.Logger) *watchHub[T] {
	return &watchHub[T]{
		subs:   make(map[string]chan []T),
		logger: logger,
	}
}

// subscribe registers a new watcher and returns its channel. The gateway
// seeds it with the current table right after subscribing, so consumers
// always see the present state without waiting for a write. The channel is
// returned bidirectional for exactly that seeding; everything outside this
// package only ever sees the receive side.
func (h *watchHub[T]) subscribe(ctx context.Context) chan []T {
	ch := make(chan []T, watchBufferSize)
	id := xid.New().String()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	h.subs[id] = ch
	h.mu.Unlock()

	h.logger.Debug("watcher added", slog.String("sub_id", id))

	go func() {
		<-ctx.Done()
		h.unsubscribe(id)
	}()

	return ch
}

// publish fans the snapshot out to every subscriber without blocking.
// Channels that are full are skipped; see watchBufferSize.
func (h *watchHub[T]) publish(snapshot []T) {
	h.mu.RLock()
	targets := make([]chan []T, 0, len(h.subs))
	for _, ch := range h.subs {
		targets = append(targets, ch)
	}
	h.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- snapshot:
		default:
			h.logger.Debug("dropped snapshot for slow watcher")
		}
	}
}

func (h *watchHub[T]) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(ch)

	h.logger.Debug("watcher removed", slog.String("sub_id", id))
}

func (h *watchHub[T]) hasSubscribers() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs) > 0
}

// close tears down all subscriptions. Further publishes are no-ops and
// further subscribes return an already-closed channel.
func (h *watchHub[T]) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
