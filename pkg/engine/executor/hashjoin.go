package executor

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// hashBuild is the sink of a hash join's build pipeline. It accumulates the
// build side into the join bridge shared with the probe operators and emits
// no downstream batches.
type hashBuild struct {
	baseOperator

	bridge   *hashJoinBridge
	keyIdx   int
	finished bool
}

func newHashBuild(id int, dctx *DriverCtx, node *physical.HashJoin) (*hashBuild, error) {
	keyIdx, err := columnIndex(node.Right.Schema(), node.RightKey)
	if err != nil {
		return nil, err
	}
	bridge := dctx.Task.hashJoinBridge(node.ID())
	bridge.addProducer()
	return &hashBuild{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		bridge:       bridge,
		keyIdx:       keyIdx,
	}, nil
}

func (o *hashBuild) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		key := row[o.keyIdx]
		if key == nil {
			// Null keys never match an equi-join.
			continue
		}
		o.bridge.addRow(key, row)
	}
	return nil, nil
}

func (o *hashBuild) NoMoreInput() {
	o.bridge.producerFinished()
	o.finished = true
}

func (o *hashBuild) GetOutput(context.Context) (arrow.Record, error) { return nil, nil }

func (o *hashBuild) Finished() bool { return o.finished }

func (o *hashBuild) Close() error { return nil }

// hashProbe joins probe-side batches against the build-side hash table. The
// first input batch blocks until the build pipeline has finished.
type hashProbe struct {
	baseOperator

	node   *physical.HashJoin
	bridge *hashJoinBridge
	keyIdx int

	table hashTable

	pending     []arrow.Record
	noMoreInput bool
}

func newHashProbe(id int, dctx *DriverCtx, node *physical.HashJoin) (*hashProbe, error) {
	keyIdx, err := columnIndex(node.Left.Schema(), node.LeftKey)
	if err != nil {
		return nil, err
	}
	return &hashProbe{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		bridge:       dctx.Task.hashJoinBridge(node.ID()),
		keyIdx:       keyIdx,
	}, nil
}

func (o *hashProbe) AddInput(ctx context.Context, batch arrow.Record) (ContinueFuture, error) {
	if o.table == nil {
		table, err := o.bridge.waitForTable(ctx)
		if err != nil {
			return nil, err
		}
		o.table = table
	}

	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}
	var out [][]any
	for _, row := range rows {
		key := row[o.keyIdx]
		if key == nil {
			continue
		}
		for _, buildRow := range o.table[key] {
			joined := make([]any, 0, len(row)+len(buildRow))
			joined = append(joined, row...)
			joined = append(joined, buildRow...)
			out = append(out, joined)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}

	record, err := rowsToRecord(o.node.Schema(), out)
	if err != nil {
		return nil, err
	}
	o.pending = append(o.pending, record)
	return nil, nil
}

func (o *hashProbe) NoMoreInput() { o.noMoreInput = true }

func (o *hashProbe) GetOutput(context.Context) (arrow.Record, error) {
	if len(o.pending) == 0 {
		return nil, nil
	}
	batch := o.pending[0]
	o.pending = o.pending[1:]
	return batch, nil
}

func (o *hashProbe) Finished() bool { return o.noMoreInput && len(o.pending) == 0 }

func (o *hashProbe) Close() error { return nil }
