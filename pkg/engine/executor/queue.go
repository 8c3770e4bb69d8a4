package executor

import (
	"context"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
)

// BatchQueue is a bounded FIFO hand-off of record batches between the sink of
// one pipeline and a source operator of another. Enqueue never rejects a
// batch; instead it returns a ContinueFuture once the queue is at capacity,
// which resolves when a consumer frees space or the queue is closed.
type BatchQueue struct {
	schema   *arrow.Schema
	capacity int

	mtx          sync.Mutex
	batches      []arrow.Record
	spaceWaiters []chan struct{}
	dataWaiters  []chan struct{}
	finished     bool
	closed       bool
}

// NewBatchQueue creates a queue holding up to capacity batches of the given
// schema.
func NewBatchQueue(capacity int, schema *arrow.Schema) *BatchQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &BatchQueue{schema: schema, capacity: capacity}
}

// Schema returns the schema of the batches flowing through the queue.
func (q *BatchQueue) Schema() *arrow.Schema { return q.schema }

// Enqueue appends a batch to the queue. The returned ContinueFuture is
// non-nil if the queue is at or over capacity after the append; the producer
// must wait for it before enqueueing more.
func (q *BatchQueue) Enqueue(batch arrow.Record) (ContinueFuture, error) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if q.closed {
		return nil, EOF
	}

	q.batches = append(q.batches, batch)
	q.notifyData()

	if len(q.batches) < q.capacity {
		return nil, nil
	}
	wait := make(chan struct{})
	q.spaceWaiters = append(q.spaceWaiters, wait)
	return wait, nil
}

// Dequeue removes and returns the oldest batch, blocking until one is
// available. It returns EOF once the queue is finished and drained, or
// closed.
func (q *BatchQueue) Dequeue(ctx context.Context) (arrow.Record, error) {
	for {
		q.mtx.Lock()
		if len(q.batches) > 0 {
			batch := q.batches[0]
			q.batches = q.batches[1:]
			if len(q.batches) < q.capacity {
				q.notifySpace()
			}
			q.mtx.Unlock()
			return batch, nil
		}
		if q.finished || q.closed {
			q.mtx.Unlock()
			return nil, EOF
		}
		wait := make(chan struct{})
		q.dataWaiters = append(q.dataWaiters, wait)
		q.mtx.Unlock()

		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-wait:
		}
	}
}

// Finish marks the producing side as done. Queued batches remain readable.
func (q *BatchQueue) Finish() {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.finished = true
	q.notifyData()
}

// Close discards queued batches and wakes all blocked producers and
// consumers.
func (q *BatchQueue) Close() {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.closed = true
	q.batches = nil
	q.notifySpace()
	q.notifyData()
}

func (q *BatchQueue) notifySpace() {
	for _, w := range q.spaceWaiters {
		close(w)
	}
	q.spaceWaiters = nil
}

func (q *BatchQueue) notifyData() {
	for _, w := range q.dataWaiters {
		close(w)
	}
	q.dataWaiters = nil
}
