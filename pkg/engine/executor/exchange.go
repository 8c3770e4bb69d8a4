package executor

import (
	"context"
	"errors"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// ExchangeClient fetches batches produced by other tasks. Implementations
// own the transport; Next returns EOF once all upstream tasks are drained.
type ExchangeClient interface {
	Next(ctx context.Context) (arrow.Record, error)
	Close() error
}

// exchange is the source operator reading remote task output through an
// exchange client.
type exchange struct {
	baseOperator

	client ExchangeClient
	done   bool
}

func newExchange(id int, node *physical.Exchange, client ExchangeClient) *exchange {
	return &exchange{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		client:       client,
	}
}

func (o *exchange) AddInput(context.Context, arrow.Record) (ContinueFuture, error) {
	return nil, errNoInputExpected(o)
}

func (o *exchange) NoMoreInput() {}

func (o *exchange) GetOutput(ctx context.Context) (arrow.Record, error) {
	if o.done {
		return nil, nil
	}
	batch, err := o.client.Next(ctx)
	if errors.Is(err, EOF) {
		o.done = true
		return nil, nil
	}
	return batch, err
}

func (o *exchange) Finished() bool { return o.done }

func (o *exchange) Close() error { return o.client.Close() }

// mergeExchange reads sorted remote streams through an exchange client and
// re-emits them as one ordered stream. The client multiplexes its upstreams,
// so ordering across batches is restored by buffering and sorting before
// emission.
type mergeExchange struct {
	baseOperator

	node   *physical.MergeExchange
	client ExchangeClient
	keyIdx int

	buf     *sortBuffer
	drained bool
	emitted bool
}

func newMergeExchange(id int, node *physical.MergeExchange, client ExchangeClient) (*mergeExchange, error) {
	keyIdx, err := columnIndex(node.Schema(), node.SortKey)
	if err != nil {
		return nil, err
	}
	return &mergeExchange{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		client:       client,
		keyIdx:       keyIdx,
		buf:          &sortBuffer{keyIndex: keyIdx, ascending: node.Ascending},
	}, nil
}

func (o *mergeExchange) AddInput(context.Context, arrow.Record) (ContinueFuture, error) {
	return nil, errNoInputExpected(o)
}

func (o *mergeExchange) NoMoreInput() {}

func (o *mergeExchange) GetOutput(ctx context.Context) (arrow.Record, error) {
	if o.emitted {
		return nil, nil
	}
	for !o.drained {
		batch, err := o.client.Next(ctx)
		if errors.Is(err, EOF) {
			o.drained = true
			break
		}
		if err != nil {
			return nil, err
		}
		if err := o.buf.add(batch); err != nil {
			return nil, err
		}
	}

	o.emitted = true
	o.buf.sort()
	if o.buf.err != nil {
		return nil, o.buf.err
	}
	if len(o.buf.rows) == 0 {
		return nil, nil
	}
	return rowsToRecord(o.node.Schema(), o.buf.rows)
}

func (o *mergeExchange) Finished() bool { return o.emitted }

func (o *mergeExchange) Close() error { return o.client.Close() }

// partitionedOutput is the terminal operator of a task producing partitioned
// results. It routes batches into the task's output buffers, from which
// downstream exchange clients read.
type partitionedOutput struct {
	baseOperator

	node    *physical.PartitionedOutput
	buffers *LocalExchange

	finished bool
}

func newPartitionedOutput(id int, dctx *DriverCtx, node *physical.PartitionedOutput) *partitionedOutput {
	buffers := dctx.Task.createOutputBuffers(node.Partitions, node.Schema())
	buffers.AddProducer()
	return &partitionedOutput{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		buffers:      buffers,
	}
}

func (o *partitionedOutput) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	return o.buffers.Partition(batch, o.node.PartitionKey)
}

func (o *partitionedOutput) NoMoreInput() {
	o.buffers.FinishProducer()
	o.finished = true
}

func (o *partitionedOutput) GetOutput(context.Context) (arrow.Record, error) { return nil, nil }

func (o *partitionedOutput) Finished() bool { return o.finished }

func (o *partitionedOutput) Close() error { return nil }
