// Package eventbus implements the Event Bus (spec.md §3/§5/§6, C7): a
// typed subscription mechanism for step and state-change callbacks, with
// a copy-on-write subscriber list so dispatch never blocks subscription
// changes. Generalizes the teacher's single UpdateChan/notifyUpdate
// pattern (sequencer/manager.go) into a reusable, strongly-typed bus.
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/go-drumseq/drumseq/internal/seqlog"
)

// Token identifies a subscription for later removal.
type Token uint64

type subscriber[T any] struct {
	id Token
	fn func(T)
}

// Bus dispatches values of type T to subscribed callbacks. Subscribe and
// Unsubscribe may run concurrently with Publish; Publish always sees a
// consistent snapshot of subscribers.
type Bus[T any] struct {
	mu     sync.Mutex // guards nextID and the subs swap, not reads
	nextID uint64
	subs   atomic.Pointer[[]subscriber[T]]
}

// New creates an empty bus.
func New[T any]() *Bus[T] {
	b := &Bus[T]{}
	empty := make([]subscriber[T], 0)
	b.subs.Store(&empty)
	return b
}

// Subscribe registers a callback and returns a token to unsubscribe it.
// Per spec.md §6, callbacks should be cheap (O(1)); long work must be
// posted elsewhere by the caller.
func (b *Bus[T]) Subscribe(fn func(T)) Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := Token(b.nextID)

	old := *b.subs.Load()
	next := make([]subscriber[T], len(old), len(old)+1)
	copy(next, old)
	next = append(next, subscriber[T]{id: id, fn: fn})
	b.subs.Store(&next)

	return id
}

// Unsubscribe removes a previously registered callback. A no-op if the
// token is unknown (already removed, or from a different bus).
func (b *Bus[T]) Unsubscribe(id Token) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := *b.subs.Load()
	next := make([]subscriber[T], 0, len(old))
	for _, s := range old {
		if s.id != id {
			next = append(next, s)
		}
	}
	b.subs.Store(&next)
}

// Publish dispatches v to every current subscriber. A subscriber that
// panics is recovered and logged; dispatch continues to the rest
// (spec.md §4.2: "Callback exceptions are caught and logged; they do not
// abort the loop").
func (b *Bus[T]) Publish(v T) {
	subs := *b.subs.Load()
	for _, s := range subs {
		invoke(s.fn, v)
	}
}

// Len reports the current subscriber count, mostly useful for tests.
func (b *Bus[T]) Len() int {
	return len(*b.subs.Load())
}

func invoke[T any](fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			seqlog.Log("eventbus", "subscriber panic recovered: %v", r)
		}
	}()
	fn(v)
}
