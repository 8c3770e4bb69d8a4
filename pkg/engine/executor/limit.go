package executor

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// limit skips the first Skip rows and then passes through at most Fetch
// rows. Skip and fetch may cross batch boundaries, so the remainders are
// reduced as batches stream through.
type limit struct {
	baseOperator

	skipRemaining  int64
	fetchRemaining int64

	pending     []arrow.Record
	noMoreInput bool
}

func newLimit(id int, node *physical.Limit) *limit {
	return &limit{
		baseOperator:   baseOperator{id: id, nodeID: node.ID()},
		skipRemaining:  node.Skip,
		fetchRemaining: node.Fetch,
	}
}

func (o *limit) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	if o.fetchRemaining <= 0 {
		return nil, nil
	}

	start := min(o.skipRemaining, batch.NumRows())
	end := min(start+o.fetchRemaining, batch.NumRows())
	o.skipRemaining -= start
	o.fetchRemaining -= end - start

	if end-start <= 0 {
		return nil, nil
	}
	o.pending = append(o.pending, batch.NewSlice(start, end))
	return nil, nil
}

func (o *limit) NoMoreInput() { o.noMoreInput = true }

func (o *limit) GetOutput(context.Context) (arrow.Record, error) {
	if len(o.pending) == 0 {
		return nil, nil
	}
	batch := o.pending[0]
	o.pending = o.pending[1:]
	return batch, nil
}

func (o *limit) Finished() bool {
	return len(o.pending) == 0 && (o.noMoreInput || o.fetchRemaining <= 0)
}

func (o *limit) Close() error { return nil }
