package executor

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// nestedLoopJoinBuild is the sink of a cross join's build pipeline. It
// materializes every build-side row for later probing.
type nestedLoopJoinBuild struct {
	baseOperator

	bridge   *nestedLoopJoinBridge
	finished bool
}

func newNestedLoopJoinBuild(id int, dctx *DriverCtx, node *physical.NestedLoopJoin) *nestedLoopJoinBuild {
	bridge := dctx.Task.nestedLoopJoinBridge(node.ID())
	bridge.addProducer()
	return &nestedLoopJoinBuild{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		bridge:       bridge,
	}
}

func (o *nestedLoopJoinBuild) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}
	o.bridge.addRows(rows)
	return nil, nil
}

func (o *nestedLoopJoinBuild) NoMoreInput() {
	o.bridge.producerFinished()
	o.finished = true
}

func (o *nestedLoopJoinBuild) GetOutput(context.Context) (arrow.Record, error) { return nil, nil }

func (o *nestedLoopJoinBuild) Finished() bool { return o.finished }

func (o *nestedLoopJoinBuild) Close() error { return nil }

// nestedLoopJoinProbe emits the cross product of each probe batch with the
// materialized build side.
type nestedLoopJoinProbe struct {
	baseOperator

	node   *physical.NestedLoopJoin
	bridge *nestedLoopJoinBridge

	buildRows [][]any
	built     bool

	pending     []arrow.Record
	noMoreInput bool
}

func newNestedLoopJoinProbe(id int, dctx *DriverCtx, node *physical.NestedLoopJoin) *nestedLoopJoinProbe {
	return &nestedLoopJoinProbe{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		bridge:       dctx.Task.nestedLoopJoinBridge(node.ID()),
	}
}

func (o *nestedLoopJoinProbe) AddInput(ctx context.Context, batch arrow.Record) (ContinueFuture, error) {
	if !o.built {
		rows, err := o.bridge.waitForRows(ctx)
		if err != nil {
			return nil, err
		}
		o.buildRows = rows
		o.built = true
	}
	if len(o.buildRows) == 0 {
		return nil, nil
	}

	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}
	out := make([][]any, 0, len(rows)*len(o.buildRows))
	for _, row := range rows {
		for _, buildRow := range o.buildRows {
			joined := make([]any, 0, len(row)+len(buildRow))
			joined = append(joined, row...)
			joined = append(joined, buildRow...)
			out = append(out, joined)
		}
	}

	record, err := rowsToRecord(o.node.Schema(), out)
	if err != nil {
		return nil, err
	}
	o.pending = append(o.pending, record)
	return nil, nil
}

func (o *nestedLoopJoinProbe) NoMoreInput() { o.noMoreInput = true }

func (o *nestedLoopJoinProbe) GetOutput(context.Context) (arrow.Record, error) {
	if len(o.pending) == 0 {
		return nil, nil
	}
	batch := o.pending[0]
	o.pending = o.pending[1:]
	return batch, nil
}

func (o *nestedLoopJoinProbe) Finished() bool { return o.noMoreInput && len(o.pending) == 0 }

func (o *nestedLoopJoinProbe) Close() error { return nil }
