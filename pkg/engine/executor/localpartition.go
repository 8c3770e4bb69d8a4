package executor

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// localPartition is the sink of a pipeline feeding a local exchange. It
// hashes each row's partition key and routes the row to the matching
// partition queue.
type localPartition struct {
	baseOperator

	node     *physical.LocalPartition
	exchange *LocalExchange
	finished bool
}

func newLocalPartition(id int, dctx *DriverCtx, node *physical.LocalPartition) *localPartition {
	exchange := dctx.Task.localExchange(node.ID(), node.Partitions, node.Schema())
	exchange.AddProducer()
	return &localPartition{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		exchange:     exchange,
	}
}

func (o *localPartition) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	return o.exchange.Partition(batch, o.node.PartitionKey)
}

func (o *localPartition) NoMoreInput() {
	o.exchange.FinishProducer()
	o.finished = true
}

func (o *localPartition) GetOutput(context.Context) (arrow.Record, error) { return nil, nil }

func (o *localPartition) Finished() bool { return o.finished }

func (o *localPartition) Close() error { return nil }

// localExchangeSource is the source operator of a pipeline consuming a local
// exchange. Each driver reads the partition matching its driver id.
type localExchangeSource struct {
	baseOperator

	queue *BatchQueue
	done  bool
}

func newLocalExchangeSource(id int, dctx *DriverCtx, node *physical.LocalPartition) *localExchangeSource {
	exchange := dctx.Task.localExchange(node.ID(), node.Partitions, node.Schema())
	return &localExchangeSource{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		queue:        exchange.Queue(dctx.DriverID),
	}
}

func (o *localExchangeSource) AddInput(context.Context, arrow.Record) (ContinueFuture, error) {
	return nil, errNoInputExpected(o)
}

func (o *localExchangeSource) NoMoreInput() {}

func (o *localExchangeSource) GetOutput(ctx context.Context) (arrow.Record, error) {
	if o.done {
		return nil, nil
	}
	batch, err := o.queue.Dequeue(ctx)
	if err == EOF {
		o.done = true
		return nil, nil
	}
	return batch, err
}

func (o *localExchangeSource) Finished() bool { return o.done }

func (o *localExchangeSource) Close() error { return nil }
