// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"sync"
)

// Queue is an unbounded in-memory FIFO. Push never blocks the producer;
// Pop blocks until an item is available or the context is done.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	wake  chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{wake: make(chan struct{}, 1)}
}

func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
}

// Pop removes and returns the oldest item. The second return value is false
// only when the context was cancelled before an item became available.
func (q *Queue[T]) Pop(ctx context.Context) (T, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				// Keep other waiters runnable.
				q.signal()
			}
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-q.wake:
		}
	}
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
