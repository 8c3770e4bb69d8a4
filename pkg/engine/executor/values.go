package executor

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// values emits a fixed list of in-memory batches.
type values struct {
	baseOperator

	batches []arrow.Record
	next    int
}

func newValues(id int, node *physical.Values) *values {
	return &values{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		batches:      node.Batches,
	}
}

func (o *values) AddInput(context.Context, arrow.Record) (ContinueFuture, error) {
	return nil, errNoInputExpected(o)
}

func (o *values) NoMoreInput() {}

func (o *values) GetOutput(context.Context) (arrow.Record, error) {
	if o.next >= len(o.batches) {
		return nil, nil
	}
	batch := o.batches[o.next]
	o.next++
	return batch, nil
}

func (o *values) Finished() bool { return o.next >= len(o.batches) }

func (o *values) Close() error { return nil }
