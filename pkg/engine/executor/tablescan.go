package executor

import (
	"context"
	"errors"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// tableScan reads batches from the splits assigned to its plan node by the
// owning task. Reading blocks until a split is available or the task signals
// that no more splits will arrive.
type tableScan struct {
	baseOperator

	splits  *splitQueue
	current Split
	done    bool
}

func newTableScan(id int, dctx *DriverCtx, node *physical.TableScan) *tableScan {
	return &tableScan{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		splits:       dctx.Task.splitQueue(node.ID()),
	}
}

func (o *tableScan) AddInput(context.Context, arrow.Record) (ContinueFuture, error) {
	return nil, errNoInputExpected(o)
}

func (o *tableScan) NoMoreInput() {}

func (o *tableScan) GetOutput(ctx context.Context) (arrow.Record, error) {
	for !o.done {
		if o.current == nil {
			split, err := o.splits.next(ctx)
			if errors.Is(err, EOF) {
				o.done = true
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			o.current = split
		}

		batch, err := o.current.Next(ctx)
		if errors.Is(err, EOF) {
			if err := o.current.Close(); err != nil {
				return nil, err
			}
			o.current = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		return batch, nil
	}
	return nil, nil
}

func (o *tableScan) Finished() bool { return o.done }

func (o *tableScan) Close() error {
	if o.current != nil {
		return o.current.Close()
	}
	return nil
}
