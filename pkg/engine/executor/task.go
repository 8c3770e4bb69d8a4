package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/GuChangyang/presto/pkg/engine/internal/errors"
)

// defaultQueueCapacity bounds the hand-off queues between pipelines. A small
// capacity keeps memory flat; blocked producers yield via ContinueFutures.
const defaultQueueCapacity = 8

// Split is one unit of scannable input assigned to a table scan operator at
// run time.
type Split interface {
	// Next returns the next batch of the split, or EOF once exhausted.
	Next(ctx context.Context) (arrow.Record, error)
	// Close releases resources held by the split.
	Close() error
}

// splitQueue queues splits assigned to one table scan node.
type splitQueue struct {
	mtx     sync.Mutex
	splits  []Split
	noMore  bool
	waiters []chan struct{}
}

// next returns the next assigned split, blocking until one is available. It
// returns EOF once no more splits will arrive.
func (q *splitQueue) next(ctx context.Context) (Split, error) {
	for {
		q.mtx.Lock()
		if len(q.splits) > 0 {
			split := q.splits[0]
			q.splits = q.splits[1:]
			q.mtx.Unlock()
			return split, nil
		}
		if q.noMore {
			q.mtx.Unlock()
			return nil, EOF
		}
		wait := make(chan struct{})
		q.waiters = append(q.waiters, wait)
		q.mtx.Unlock()

		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-wait:
		}
	}
}

func (q *splitQueue) add(split Split) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.splits = append(q.splits, split)
	q.notify()
}

func (q *splitQueue) finish() {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.noMore = true
	q.notify()
}

func (q *splitQueue) notify() {
	for _, w := range q.waiters {
		close(w)
	}
	q.waiters = nil
}

// Task owns the cross-pipeline coordination state of one executing plan:
// local merge sources, merge join sources, local exchanges, join bridges,
// scan split queues and output buffers. Operators look these structures up by
// identity; the structures synchronize themselves.
type Task struct {
	TaskID string

	logger log.Logger

	mtx               sync.Mutex
	localMergeSources []*BatchQueue
	mergeJoinSources  map[string]*BatchQueue
	localExchanges    map[string]*LocalExchange
	hashJoinBridges   map[string]*hashJoinBridge
	nestedLoopBridges map[string]*nestedLoopJoinBridge
	splitQueues       map[string]*splitQueue
	uniqueIDCounters  map[string]*atomic.Int64
	outputBuffers     *LocalExchange
}

// NewTask creates an empty task context.
func NewTask(taskID string, logger log.Logger) *Task {
	return &Task{
		TaskID: taskID,
		logger: log.With(logger, "task", taskID),

		mergeJoinSources:  make(map[string]*BatchQueue),
		localExchanges:    make(map[string]*LocalExchange),
		hashJoinBridges:   make(map[string]*hashJoinBridge),
		nestedLoopBridges: make(map[string]*nestedLoopJoinBridge),
		splitQueues:       make(map[string]*splitQueue),
		uniqueIDCounters:  make(map[string]*atomic.Int64),
	}
}

// CreateLocalMergeSources pre-creates the queues through which the drivers of
// the adjacent upstream pipeline feed a LocalMerge operator. It must be
// called exactly once per task, before the merge operator reads.
func (t *Task) CreateLocalMergeSources(count int, schema *arrow.Schema) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.localMergeSources != nil {
		return fmt.Errorf("%w: local merge sources already created", errors.ErrInvalidPlan)
	}
	t.localMergeSources = make([]*BatchQueue, count)
	for i := range t.localMergeSources {
		t.localMergeSources[i] = NewBatchQueue(defaultQueueCapacity, schema)
	}
	return nil
}

// LocalMergeSource returns the merge input queue owned by the producer driver
// with the given id.
func (t *Task) LocalMergeSource(driverID int) (*BatchQueue, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if driverID < 0 || driverID >= len(t.localMergeSources) {
		return nil, fmt.Errorf("%w: local merge source %d", errors.ErrNotFound, driverID)
	}
	return t.localMergeSources[driverID], nil
}

// CreateMergeJoinSource registers the hand-off queue for the build side of
// the merge join node with the given id. Creating the same source twice is a
// no-op so that probe instantiation and sink wiring can race-freely share it.
func (t *Task) CreateMergeJoinSource(nodeID string, schema *arrow.Schema) *BatchQueue {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if source, ok := t.mergeJoinSources[nodeID]; ok {
		return source
	}
	source := NewBatchQueue(defaultQueueCapacity, schema)
	t.mergeJoinSources[nodeID] = source
	return source
}

// MergeJoinSource returns the hand-off queue of the merge join node with the
// given id.
func (t *Task) MergeJoinSource(nodeID string) (*BatchQueue, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	source, ok := t.mergeJoinSources[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: merge join source %q", errors.ErrNotFound, nodeID)
	}
	return source, nil
}

// localExchange returns the local exchange of the given plan node, creating
// it on first use.
func (t *Task) localExchange(nodeID string, partitions int, schema *arrow.Schema) *LocalExchange {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if x, ok := t.localExchanges[nodeID]; ok {
		return x
	}
	x := NewLocalExchange(partitions, defaultQueueCapacity, schema)
	t.localExchanges[nodeID] = x
	return x
}

func (t *Task) hashJoinBridge(nodeID string) *hashJoinBridge {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if b, ok := t.hashJoinBridges[nodeID]; ok {
		return b
	}
	b := newHashJoinBridge()
	t.hashJoinBridges[nodeID] = b
	return b
}

func (t *Task) nestedLoopJoinBridge(nodeID string) *nestedLoopJoinBridge {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if b, ok := t.nestedLoopBridges[nodeID]; ok {
		return b
	}
	b := newNestedLoopJoinBridge()
	t.nestedLoopBridges[nodeID] = b
	return b
}

func (t *Task) splitQueue(nodeID string) *splitQueue {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if q, ok := t.splitQueues[nodeID]; ok {
		return q
	}
	q := &splitQueue{}
	t.splitQueues[nodeID] = q
	return q
}

// AddSplit assigns a split to the table scan node with the given id.
func (t *Task) AddSplit(nodeID string, split Split) {
	t.splitQueue(nodeID).add(split)
}

// NoMoreSplits signals that the table scan node with the given id will
// receive no further splits.
func (t *Task) NoMoreSplits(nodeID string) {
	t.splitQueue(nodeID).finish()
}

// uniqueIDCounter returns the shared counter backing an AssignUniqueID node.
func (t *Task) uniqueIDCounter(nodeID string) *atomic.Int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if c, ok := t.uniqueIDCounters[nodeID]; ok {
		return c
	}
	c := &atomic.Int64{}
	t.uniqueIDCounters[nodeID] = c
	return c
}

// createOutputBuffers returns the exchange backing the task's partitioned
// output, creating it on first use.
func (t *Task) createOutputBuffers(partitions int, schema *arrow.Schema) *LocalExchange {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.outputBuffers == nil {
		t.outputBuffers = NewLocalExchange(partitions, defaultQueueCapacity, schema)
	}
	return t.outputBuffers
}

// OutputBuffer returns the queue holding the task's output for the given
// partition, for consumption by downstream exchanges.
func (t *Task) OutputBuffer(partition int) (*BatchQueue, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.outputBuffers == nil || partition < 0 || partition >= t.outputBuffers.Partitions() {
		return nil, fmt.Errorf("%w: output buffer %d", errors.ErrNotFound, partition)
	}
	return t.outputBuffers.Queue(partition), nil
}

// Close wakes every blocked producer and consumer and discards all queued
// state. It is safe to call Close while drivers are still running; they
// observe EOF on their next queue operation.
func (t *Task) Close() {
	level.Debug(t.logger).Log("msg", "closing task")

	t.mtx.Lock()
	defer t.mtx.Unlock()
	for _, q := range t.localMergeSources {
		q.Close()
	}
	for _, q := range t.mergeJoinSources {
		q.Close()
	}
	for _, x := range t.localExchanges {
		x.Close()
	}
	if t.outputBuffers != nil {
		t.outputBuffers.Close()
	}
}
