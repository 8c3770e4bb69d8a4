package executor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/internal/errors"
	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// unnest flattens a list column into one row per element, repeating the
// remaining columns. Rows whose list is null or empty are dropped.
type unnest struct {
	baseOperator

	node    *physical.Unnest
	listIdx int

	pending     []arrow.Record
	noMoreInput bool
}

func newUnnest(id int, node *physical.Unnest) (*unnest, error) {
	listIdx, err := columnIndex(node.Input.Schema(), node.ListColumn)
	if err != nil {
		return nil, err
	}
	return &unnest{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		listIdx:      listIdx,
	}, nil
}

func (o *unnest) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}
	var out [][]any
	for _, row := range rows {
		list, _ := row[o.listIdx].([]any)
		for _, elem := range list {
			flat := make([]any, 0, len(row))
			for i, v := range row {
				if i == o.listIdx {
					flat = append(flat, elem)
					continue
				}
				flat = append(flat, v)
			}
			out = append(out, flat)
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

func (o *unnest) NoMoreInput() { o.noMoreInput = true }

func (o *unnest) GetOutput(context.Context) (arrow.Record, error) {
	if len(o.pending) == 0 {
		return nil, nil
	}
	batch := o.pending[0]
	o.pending = o.pending[1:]
	return batch, nil
}

func (o *unnest) Finished() bool { return o.noMoreInput && len(o.pending) == 0 }

func (o *unnest) Close() error { return nil }

// enforceSingleRow passes its input through and fails once more than one row
// has been observed.
type enforceSingleRow struct {
	baseOperator

	seen int64

	pending     arrow.Record
	noMoreInput bool
}

func newEnforceSingleRow(id int, node *physical.EnforceSingleRow) *enforceSingleRow {
	return &enforceSingleRow{baseOperator: baseOperator{id: id, nodeID: node.ID()}}
}

func (o *enforceSingleRow) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	o.seen += batch.NumRows()
	if o.seen > 1 {
		return nil, fmt.Errorf("%w: scalar subquery returned %d rows", errors.ErrInvalidPlan, o.seen)
	}
	if batch.NumRows() > 0 {
		o.pending = batch
	}
	return nil, nil
}

func (o *enforceSingleRow) NoMoreInput() { o.noMoreInput = true }

func (o *enforceSingleRow) GetOutput(context.Context) (arrow.Record, error) {
	batch := o.pending
	o.pending = nil
	return batch, nil
}

func (o *enforceSingleRow) Finished() bool { return o.noMoreInput && o.pending == nil }

func (o *enforceSingleRow) Close() error { return nil }

// assignUniqueID appends an int64 column of identifiers drawn from a counter
// shared by all drivers of the task.
type assignUniqueID struct {
	baseOperator

	node    *physical.AssignUniqueID
	counter *atomic.Int64

	pending     []arrow.Record
	noMoreInput bool
}

func newAssignUniqueID(id int, dctx *DriverCtx, node *physical.AssignUniqueID) *assignUniqueID {
	return &assignUniqueID{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		counter:      dctx.Task.uniqueIDCounter(node.ID()),
	}
}

func (o *assignUniqueID) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}
	// Reserve a contiguous id range for the whole batch.
	first := o.counter.Add(int64(len(rows))) - int64(len(rows))
	for i := range rows {
		rows[i] = append(rows[i], first+int64(i))
	}
	record, err := rowsToRecord(o.node.Schema(), rows)
	if err != nil {
		return nil, err
	}
	o.pending = append(o.pending, record)
	return nil, nil
}

func (o *assignUniqueID) NoMoreInput() { o.noMoreInput = true }

func (o *assignUniqueID) GetOutput(context.Context) (arrow.Record, error) {
	if len(o.pending) == 0 {
		return nil, nil
	}
	batch := o.pending[0]
	o.pending = o.pending[1:]
	return batch, nil
}

func (o *assignUniqueID) Finished() bool { return o.noMoreInput && len(o.pending) == 0 }

func (o *assignUniqueID) Close() error { return nil }
