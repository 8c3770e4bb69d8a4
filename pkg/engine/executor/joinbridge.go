package executor

import (
	"context"
	"sync"
)

// hashTable maps a join key value to the materialized build-side rows
// carrying that key.
type hashTable map[any][][]any

// hashJoinBridge hands the build-side hash table from the build pipeline's
// sink to the probe operators of the adjacent pipeline. Probe drivers block
// until every build driver has finished.
type hashJoinBridge struct {
	mtx       sync.Mutex
	producers int
	table     hashTable
	built     chan struct{}
}

func newHashJoinBridge() *hashJoinBridge {
	return &hashJoinBridge{
		table: make(hashTable),
		built: make(chan struct{}),
	}
}

func (b *hashJoinBridge) addProducer() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.producers++
}

// addRow inserts one build-side row under its join key.
func (b *hashJoinBridge) addRow(key any, row []any) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.table[key] = append(b.table[key], row)
}

// producerFinished marks one build driver as done. The table becomes visible
// to probes once the last producer finishes.
func (b *hashJoinBridge) producerFinished() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.producers--
	if b.producers <= 0 {
		select {
		case <-b.built:
		default:
			close(b.built)
		}
	}
}

// waitForTable blocks until the build side is complete.
func (b *hashJoinBridge) waitForTable(ctx context.Context) (hashTable, error) {
	select {
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case <-b.built:
		return b.table, nil
	}
}

// nestedLoopJoinBridge hands the fully materialized build side of a cross
// join to the probe operators.
type nestedLoopJoinBridge struct {
	mtx       sync.Mutex
	producers int
	rows      [][]any
	built     chan struct{}
}

func newNestedLoopJoinBridge() *nestedLoopJoinBridge {
	return &nestedLoopJoinBridge{built: make(chan struct{})}
}

func (b *nestedLoopJoinBridge) addProducer() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.producers++
}

func (b *nestedLoopJoinBridge) addRows(rows [][]any) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.rows = append(b.rows, rows...)
}

func (b *nestedLoopJoinBridge) producerFinished() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.producers--
	if b.producers <= 0 {
		select {
		case <-b.built:
		default:
			close(b.built)
		}
	}
}

func (b *nestedLoopJoinBridge) waitForRows(ctx context.Context) ([][]any, error) {
	select {
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case <-b.built:
		return b.rows, nil
	}
}
