package executor

import (
	"context"
	"errors"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// mergeJoin joins two inputs sorted by their join keys. The left side is
// streamed in through AddInput; the right side arrives through the task's
// merge join source, fed by the sink of the right-hand pipeline. Matching
// runs of equal keys are joined pairwise once both sides are complete.
type mergeJoin struct {
	baseOperator

	node     *physical.MergeJoin
	source   *BatchQueue
	leftIdx  int
	rightIdx int

	leftRows [][]any

	noMoreInput bool
	emitted     bool
}

func newMergeJoin(id int, dctx *DriverCtx, node *physical.MergeJoin) (*mergeJoin, error) {
	leftIdx, err := columnIndex(node.Left.Schema(), node.LeftKey)
	if err != nil {
		return nil, err
	}
	rightIdx, err := columnIndex(node.Right.Schema(), node.RightKey)
	if err != nil {
		return nil, err
	}
	source, err := dctx.Task.MergeJoinSource(node.ID())
	if err != nil {
		return nil, err
	}
	return &mergeJoin{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		source:       source,
		leftIdx:      leftIdx,
		rightIdx:     rightIdx,
	}, nil
}

func (o *mergeJoin) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}
	o.leftRows = append(o.leftRows, rows...)
	return nil, nil
}

func (o *mergeJoin) NoMoreInput() { o.noMoreInput = true }

func (o *mergeJoin) GetOutput(ctx context.Context) (arrow.Record, error) {
	if !o.noMoreInput || o.emitted {
		return nil, nil
	}
	o.emitted = true

	rightRows, err := o.drainRight(ctx)
	if err != nil {
		return nil, err
	}

	out, err := o.join(o.leftRows, rightRows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return rowsToRecord(o.node.Schema(), out)
}

func (o *mergeJoin) drainRight(ctx context.Context) ([][]any, error) {
	var rows [][]any
	for {
		batch, err := o.source.Dequeue(ctx)
		if errors.Is(err, EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		more, err := batchRows(batch)
		if err != nil {
			return nil, err
		}
		rows = append(rows, more...)
	}
}

// join walks both sorted row lists, pairing runs of equal keys.
func (o *mergeJoin) join(left, right [][]any) ([][]any, error) {
	var out [][]any
	l, r := 0, 0
	for l < len(left) && r < len(right) {
		lk := left[l][o.leftIdx]
		rk := right[r][o.rightIdx]
		if lk == nil {
			l++
			continue
		}
		if rk == nil {
			r++
			continue
		}
		cmp, err := compareValues(lk, rk)
		if err != nil {
			return nil, err
		}
		switch {
		case cmp < 0:
			l++
		case cmp > 0:
			r++
		default:
			lEnd := l
			for lEnd < len(left) && left[lEnd][o.leftIdx] == lk {
				lEnd++
			}
			rEnd := r
			for rEnd < len(right) && right[rEnd][o.rightIdx] == rk {
				rEnd++
			}
			for i := l; i < lEnd; i++ {
				for j := r; j < rEnd; j++ {
					joined := make([]any, 0, len(left[i])+len(right[j]))
					joined = append(joined, left[i]...)
					joined = append(joined, right[j]...)
					out = append(out, joined)
				}
			}
			l, r = lEnd, rEnd
		}
	}
	return out, nil
}

func (o *mergeJoin) Finished() bool { return o.noMoreInput && o.emitted }

func (o *mergeJoin) Close() error { return nil }
