package executor

import (
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
)

// LocalExchange fans batches out to a fixed number of partitions inside one
// task. Producers are the sinks of upstream pipelines; each consumer driver
// reads exactly one partition. The exchange owns one bounded queue per
// partition and finishes them once the last producer is done.
type LocalExchange struct {
	queues []*BatchQueue

	mtx       sync.Mutex
	producers int
}

// NewLocalExchange creates an exchange with one queue of the given capacity
// per partition.
func NewLocalExchange(partitions, capacity int, schema *arrow.Schema) *LocalExchange {
	queues := make([]*BatchQueue, partitions)
	for i := range queues {
		queues[i] = NewBatchQueue(capacity, schema)
	}
	return &LocalExchange{queues: queues}
}

// Partitions returns the number of partitions of the exchange.
func (x *LocalExchange) Partitions() int { return len(x.queues) }

// Queue returns the queue feeding the given partition.
func (x *LocalExchange) Queue(partition int) *BatchQueue { return x.queues[partition] }

// AddProducer registers one more producer writing into the exchange.
func (x *LocalExchange) AddProducer() {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	x.producers++
}

// FinishProducer marks one producer as done. Once all producers are done, the
// partition queues are finished and consumers drain whatever is left.
func (x *LocalExchange) FinishProducer() {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	x.producers--
	if x.producers <= 0 {
		for _, q := range x.queues {
			q.Finish()
		}
	}
}

// Partition routes each row of the batch to a partition by hashing the key
// column, and enqueues the per-partition sub-batches. The returned future is
// non-nil if any destination queue is at capacity.
func (x *LocalExchange) Partition(batch arrow.Record, keyColumn string) (ContinueFuture, error) {
	keyIdx, err := columnIndex(batch.Schema(), keyColumn)
	if err != nil {
		return nil, err
	}
	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}

	parts := make([][][]any, len(x.queues))
	for _, row := range rows {
		p := int(hashValue(row[keyIdx]) % uint64(len(x.queues)))
		parts[p] = append(parts[p], row)
	}

	var futures []ContinueFuture
	for p, part := range parts {
		if len(part) == 0 {
			continue
		}
		sub, err := rowsToRecord(batch.Schema(), part)
		if err != nil {
			return nil, err
		}
		future, err := x.queues[p].Enqueue(sub)
		if err != nil {
			return nil, err
		}
		if future != nil {
			futures = append(futures, future)
		}
	}
	return mergeFutures(futures), nil
}

// Close closes all partition queues, waking blocked producers and consumers.
func (x *LocalExchange) Close() {
	for _, q := range x.queues {
		q.Close()
	}
}

// mergeFutures combines several futures into one that resolves once all of
// them have resolved.
func mergeFutures(futures []ContinueFuture) ContinueFuture {
	switch len(futures) {
	case 0:
		return nil
	case 1:
		return futures[0]
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, f := range futures {
			<-f
		}
	}()
	return done
}
