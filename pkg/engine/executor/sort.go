package executor

import (
	"context"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// sortBuffer accumulates all input rows and orders them by a single key
// column once input is exhausted. It backs both the orderBy and topN
// operators.
type sortBuffer struct {
	schema    *arrow.Schema
	keyIndex  int
	ascending bool

	rows [][]any
	err  error
}

func newSortBuffer(schema *arrow.Schema, key string, ascending bool) (*sortBuffer, error) {
	idx, err := columnIndex(schema, key)
	if err != nil {
		return nil, err
	}
	return &sortBuffer{schema: schema, keyIndex: idx, ascending: ascending}, nil
}

func (b *sortBuffer) add(batch arrow.Record) error {
	rows, err := batchRows(batch)
	if err != nil {
		return err
	}
	b.rows = append(b.rows, rows...)
	return nil
}

func (b *sortBuffer) sort() {
	sort.SliceStable(b.rows, func(i, j int) bool {
		cmp, err := compareValues(b.rows[i][b.keyIndex], b.rows[j][b.keyIndex])
		if err != nil {
			b.err = err
			return false
		}
		if b.ascending {
			return cmp < 0
		}
		return cmp > 0
	})
}

// orderBy fully sorts its input. It emits a single batch once all input has
// been consumed.
type orderBy struct {
	baseOperator

	buffer *sortBuffer

	noMoreInput bool
	emitted     bool
}

func newOrderBy(id int, node *physical.OrderBy) (*orderBy, error) {
	buffer, err := newSortBuffer(node.Schema(), node.SortKey, node.Ascending)
	if err != nil {
		return nil, err
	}
	return &orderBy{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		buffer:       buffer,
	}, nil
}

func (o *orderBy) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	return nil, o.buffer.add(batch)
}

func (o *orderBy) NoMoreInput() { o.noMoreInput = true }

func (o *orderBy) GetOutput(context.Context) (arrow.Record, error) {
	if !o.noMoreInput || o.emitted {
		return nil, nil
	}
	o.emitted = true
	o.buffer.sort()
	if o.buffer.err != nil {
		return nil, o.buffer.err
	}
	if len(o.buffer.rows) == 0 {
		return nil, nil
	}
	return rowsToRecord(o.buffer.schema, o.buffer.rows)
}

func (o *orderBy) Finished() bool { return o.noMoreInput && o.emitted }

func (o *orderBy) Close() error { return nil }

// topN emits the first Count rows of its input in sort order.
type topN struct {
	baseOperator

	buffer *sortBuffer
	count  int64

	noMoreInput bool
	emitted     bool
}

func newTopN(id int, node *physical.TopN) (*topN, error) {
	buffer, err := newSortBuffer(node.Schema(), node.SortKey, node.Ascending)
	if err != nil {
		return nil, err
	}
	return &topN{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		buffer:       buffer,
		count:        node.Count,
	}, nil
}

func (o *topN) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	return nil, o.buffer.add(batch)
}

func (o *topN) NoMoreInput() { o.noMoreInput = true }

func (o *topN) GetOutput(context.Context) (arrow.Record, error) {
	if !o.noMoreInput || o.emitted {
		return nil, nil
	}
	o.emitted = true
	o.buffer.sort()
	if o.buffer.err != nil {
		return nil, o.buffer.err
	}
	rows := o.buffer.rows
	if int64(len(rows)) > o.count {
		rows = rows[:o.count]
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowsToRecord(o.buffer.schema, rows)
}

func (o *topN) Finished() bool { return o.noMoreInput && o.emitted }

func (o *topN) Close() error { return nil }
