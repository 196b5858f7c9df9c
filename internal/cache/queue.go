// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"fmt"

	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
)

// DefaultQueueSize is the capacity used when none is configured.
const DefaultQueueSize = 16

// Queue buffers pages on their way to a Store. It is a bounded FIFO: pages
// are flushed in the order they were enqueued. A Queue is owned by a single
// fetch loop and is not safe for concurrent use.
type Queue struct {
	store    Store
	capacity int
	buf      []string
}

// NewQueue creates a queue in front of store. A capacity below 1 uses
// DefaultQueueSize.
func NewQueue(store Store, capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueSize
	}
	return &Queue{
		store:    store,
		capacity: capacity,
		buf:      make([]string, 0, capacity),
	}
}

// Enqueue appends page to the buffer. It fails with ErrQueueFull when the
// buffer is at capacity; the caller must Flush first.
func (q *Queue) Enqueue(page string) error {
	if len(q.buf) >= q.capacity {
		return fmt.Errorf("cannot buffer page, %d pages awaiting flush: %w", len(q.buf), relayerrors.ErrQueueFull)
	}
	q.buf = append(q.buf, page)
	return nil
}

// Flush appends every buffered page to the store, in buffer order, and
// clears the buffer. On failure the buffer is kept so nothing is silently
// lost; the next fetch purges it.
func (q *Queue) Flush(ctx context.Context) error {
	if len(q.buf) == 0 {
		return nil
	}
	if err := q.store.Append(ctx, q.buf...); err != nil {
		return fmt.Errorf("failed to flush %d pages to cache: %w", len(q.buf), err)
	}
	q.buf = q.buf[:0]
	return nil
}

// Purge discards buffered pages without writing them.
func (q *Queue) Purge() {
	clear(q.buf)
	q.buf = q.buf[:0]
}

// Len returns the number of buffered pages.
func (q *Queue) Len() int {
	return len(q.buf)
}
