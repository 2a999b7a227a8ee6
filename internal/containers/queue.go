/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package containers

import (
	"sync"
	"sync/atomic"

	"github.com/noctarius/postgres-event-streamer/internal/functional"
)

// Queue is a bounded hand-off between a single producer and its
// consumers. Push blocks when the queue runs full, which is the
// backpressure that throttles the upstream producer.
type Queue[E any] struct {
	queueChan chan E
	done      chan struct{}
	closeOnce sync.Once
	locked    atomic.Bool
}

func NewQueue[E any](
	maxSize int,
) *Queue[E] {

	return &Queue[E]{
		queueChan: make(chan E, maxSize),
		done:      make(chan struct{}),
	}
}

// Push enqueues v, blocking while the queue is at capacity. A locked
// queue rejects the element and returns false; a producer parked at
// capacity unblocks with false when the queue closes.
func (rq *Queue[E]) Push(
	v E,
) bool {

	if rq.locked.Load() {
		return false
	}

	select {
	case rq.queueChan <- v:
		return true
	case <-rq.done:
		return false
	}
}

// Pop dequeues the next element without blocking, returning the zero
// value when the queue is currently empty.
func (rq *Queue[E]) Pop() E {
	select {
	case v := <-rq.queueChan:
		return v
	default:
		return functional.Zero[E]()
	}
}

// Channel exposes the receiving end for select-based consumers.
func (rq *Queue[E]) Channel() <-chan E {
	return rq.queueChan
}

// Done is closed when the queue shuts down. Buffered elements remain
// consumable, allowing a graceful drain.
func (rq *Queue[E]) Done() <-chan struct{} {
	return rq.done
}

// Close locks the queue and unblocks producers parked at capacity.
// The element channel is never closed from under a blocked sender,
// consumers observe termination through Done instead.
func (rq *Queue[E]) Close() {
	rq.locked.Store(true)
	rq.closeOnce.Do(func() {
		close(rq.done)
	})
}

// Lock prevents further Push calls. Elements still enqueued remain
// consumable, allowing a graceful drain during shutdown.
func (rq *Queue[E]) Lock() {
	rq.locked.CompareAndSwap(false, true)
}
