package executor

import (
	"context"
	"errors"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// mergeBatchSize caps the rows per batch emitted by merging operators.
const mergeBatchSize = 1024

// mergeCursor tracks the read position in one sorted input stream of a
// merge.
type mergeCursor struct {
	next func(ctx context.Context) (arrow.Record, error)

	rows      [][]any
	pos       int
	exhausted bool
}

// peek returns the current row of the cursor, refilling from the stream as
// needed. It returns nil once the stream is exhausted.
func (c *mergeCursor) peek(ctx context.Context) ([]any, error) {
	for !c.exhausted && c.pos >= len(c.rows) {
		batch, err := c.next(ctx)
		if errors.Is(err, EOF) {
			c.exhausted = true
			break
		}
		if err != nil {
			return nil, err
		}
		c.rows, err = batchRows(batch)
		if err != nil {
			return nil, err
		}
		c.pos = 0
	}
	if c.exhausted && c.pos >= len(c.rows) {
		return nil, nil
	}
	return c.rows[c.pos], nil
}

func (c *mergeCursor) advance() { c.pos++ }

// mergeSortedCursors performs one step of a k-way merge over sorted streams.
// It emits up to mergeBatchSize rows per call and returns nil once every
// cursor is exhausted.
func mergeSortedCursors(ctx context.Context, cursors []*mergeCursor, keyIdx int, ascending bool, schema *arrow.Schema) (arrow.Record, error) {
	var out [][]any
	for len(out) < mergeBatchSize {
		var best *mergeCursor
		var bestRow []any
		for _, c := range cursors {
			row, err := c.peek(ctx)
			if err != nil {
				return nil, err
			}
			if row == nil {
				continue
			}
			if best == nil {
				best, bestRow = c, row
				continue
			}
			cmp, err := compareValues(row[keyIdx], bestRow[keyIdx])
			if err != nil {
				return nil, err
			}
			if (ascending && cmp < 0) || (!ascending && cmp > 0) {
				best, bestRow = c, row
			}
		}
		if best == nil {
			break
		}
		best.advance()
		out = append(out, bestRow)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return rowsToRecord(schema, out)
}

// localMerge combines the sorted streams of the adjacent upstream pipeline's
// drivers into one ordered stream. It reads the per-driver merge sources
// pre-created on the task and must run single-threaded.
type localMerge struct {
	baseOperator

	node       *physical.LocalMerge
	task       *Task
	numSources int
	keyIdx     int

	cursors []*mergeCursor
	done    bool
}

func newLocalMerge(id int, dctx *DriverCtx, node *physical.LocalMerge, numSources int) (*localMerge, error) {
	keyIdx, err := columnIndex(node.Schema(), node.SortKey)
	if err != nil {
		return nil, err
	}
	return &localMerge{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		task:         dctx.Task,
		numSources:   numSources,
		keyIdx:       keyIdx,
	}, nil
}

func (o *localMerge) AddInput(context.Context, arrow.Record) (ContinueFuture, error) {
	return nil, errNoInputExpected(o)
}

func (o *localMerge) NoMoreInput() {}

func (o *localMerge) GetOutput(ctx context.Context) (arrow.Record, error) {
	if o.done {
		return nil, nil
	}
	if o.cursors == nil {
		for i := 0; i < o.numSources; i++ {
			source, err := o.task.LocalMergeSource(i)
			if err != nil {
				return nil, err
			}
			o.cursors = append(o.cursors, &mergeCursor{next: source.Dequeue})
		}
	}

	batch, err := mergeSortedCursors(ctx, o.cursors, o.keyIdx, o.node.Ascending, o.node.Schema())
	if err != nil {
		return nil, err
	}
	if batch == nil {
		o.done = true
	}
	return batch, nil
}

func (o *localMerge) Finished() bool { return o.done }

func (o *localMerge) Close() error { return nil }
