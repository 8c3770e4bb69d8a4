package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/internal/errors"
	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// BatchWriter is the connector-side contract of a TableWrite node: an insert
// table handle that accepts batches.
type BatchWriter interface {
	physical.InsertTableHandle

	Write(ctx context.Context, batch arrow.Record) error
}

// tableWriter appends its input to a connector table and emits a single
// batch holding the number of written rows.
type tableWriter struct {
	baseOperator

	node   *physical.TableWrite
	writer BatchWriter

	written int64

	noMoreInput bool
	emitted     bool
}

func newTableWriter(id int, node *physical.TableWrite) (*tableWriter, error) {
	writer, ok := node.Handle.(BatchWriter)
	if !ok {
		return nil, fmt.Errorf("%w: insert table handle of node %s does not accept batches", errors.ErrInvalidPlan, node.ID())
	}
	return &tableWriter{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		writer:       writer,
	}, nil
}

func (o *tableWriter) AddInput(ctx context.Context, batch arrow.Record) (ContinueFuture, error) {
	if err := o.writer.Write(ctx, batch); err != nil {
		return nil, err
	}
	o.written += batch.NumRows()
	return nil, nil
}

func (o *tableWriter) NoMoreInput() { o.noMoreInput = true }

func (o *tableWriter) GetOutput(context.Context) (arrow.Record, error) {
	if !o.noMoreInput || o.emitted {
		return nil, nil
	}
	o.emitted = true
	return rowsToRecord(o.node.Schema(), [][]any{{o.written}})
}

func (o *tableWriter) Finished() bool { return o.noMoreInput && o.emitted }

func (o *tableWriter) Close() error { return nil }
