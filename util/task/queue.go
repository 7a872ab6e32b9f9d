// Copyright 2021 MatrixOrigin.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package task

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/phf/go-queue/queue"
)

var (
	// ErrDisposed queue has been disposed
	ErrDisposed = errors.New("queue has been disposed")
)

// Queue a unbounded multi-producer multi-consumer batch queue. Get blocks
// until at least one item is available or the queue is disposed.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    *queue.Queue
	disposed bool
}

// New create a queue
func New(hint int64) *Queue {
	q := &Queue{
		items: queue.New(),
	}
	q.items.Init()
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put add items to the queue, returns ErrDisposed if the queue has been
// disposed
func (q *Queue) Put(items ...interface{}) error {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return ErrDisposed
	}
	for _, item := range items {
		q.items.PushBack(item)
	}
	q.mu.Unlock()

	q.cond.Broadcast()
	return nil
}

// Get fetch up to max items into the given slice, blocking until at least
// one item is available. Returns the number of items fetched and
// ErrDisposed if the queue has been disposed.
func (q *Queue) Get(max int64, items []interface{}) (int64, error) {
	q.mu.Lock()
	for q.items.Len() == 0 && !q.disposed {
		q.cond.Wait()
	}
	if q.disposed {
		q.mu.Unlock()
		return 0, ErrDisposed
	}

	n := int64(0)
	for n < max && q.items.Len() > 0 {
		items[n] = q.items.PopFront()
		n++
	}
	q.mu.Unlock()
	return n, nil
}

// Len returns the number of items in the queue
func (q *Queue) Len() int64 {
	q.mu.Lock()
	v := int64(q.items.Len())
	q.mu.Unlock()
	return v
}

// Dispose dispose the queue, returning all the items still queued. Any
// blocked or future Put and Get return ErrDisposed.
func (q *Queue) Dispose() []interface{} {
	q.mu.Lock()
	var remaining []interface{}
	for q.items.Len() > 0 {
		remaining = append(remaining, q.items.PopFront())
	}
	q.disposed = true
	q.mu.Unlock()

	q.cond.Broadcast()
	return remaining
}
