// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	assert.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		item, ok := q.Pop(context.Background())
		require.True(t, ok)
		assert.Equal(t, i, item)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	t.Parallel()
	q := NewQueue[string]()
	got := make(chan string, 1)
	go func() {
		item, ok := q.Pop(context.Background())
		if ok {
			got <- item
		}
	}()
	time.Sleep(20 * time.Millisecond)
	q.Push("hello")
	select {
	case item := <-got:
		assert.Equal(t, "hello", item)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestQueuePopCancelled(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := q.Pop(ctx)
	assert.False(t, ok)
}

func TestQueueConcurrentProducersSingleConsumer(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	count := 0
	for n := 0; n < producers*perProducer; n++ {
		_, ok := q.Pop(ctx)
		require.True(t, ok)
		count++
	}
	assert.Equal(t, producers*perProducer, count)
	assert.Equal(t, 0, q.Len())
}

func TestQueueMultipleConsumersAllServed(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const items = 40
	results := make(chan int, items)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, ok := q.Pop(ctx)
				if !ok {
					return
				}
				results <- item
			}
		}()
	}
	for i := 0; i < items; i++ {
		q.Push(i)
	}

	seen := make(map[int]bool)
	for n := 0; n < items; n++ {
		select {
		case item := <-results:
			seen[item] = true
		case <-ctx.Done():
			t.Fatal("timed out waiting for items")
		}
	}
	cancel()
	wg.Wait()
	assert.Len(t, seen, items)
}
