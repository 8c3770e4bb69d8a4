package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/internal/types"
	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// aggSpec is one aggregate function resolved against the input schema.
type aggSpec struct {
	op     types.AggregateOpKind
	argIdx int // -1 for COUNT over raw input
}

// resolveAggregates maps the node's aggregate list to input column indices.
// Final and intermediate steps consume the partial results emitted under the
// aggregate's own output name, so COUNT combines by summing partial counts.
func resolveAggregates(node *physical.Aggregation) ([]aggSpec, error) {
	input := node.Input.Schema()
	combining := node.Step == physical.AggregationFinal || node.Step == physical.AggregationIntermediate

	specs := make([]aggSpec, 0, len(node.Aggregates))
	for _, agg := range node.Aggregates {
		spec := aggSpec{op: agg.Op, argIdx: -1}
		arg := agg.Arg
		if combining {
			arg = agg.Name
			if agg.Op == types.AggregateOpKindCount {
				spec.op = types.AggregateOpKindSum
			}
		}
		if spec.op != types.AggregateOpKindCount {
			idx, err := columnIndex(input, arg)
			if err != nil {
				return nil, err
			}
			spec.argIdx = idx
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// aggAccumulator folds int64 values for one group and one aggregate.
type aggAccumulator struct {
	op    types.AggregateOpKind
	value int64
	seen  bool
}

func (a *aggAccumulator) add(row []any, spec aggSpec) error {
	if spec.op == types.AggregateOpKindCount {
		a.value++
		a.seen = true
		return nil
	}
	raw := row[spec.argIdx]
	if raw == nil {
		return nil
	}
	v, ok := raw.(int64)
	if !ok {
		return fmt.Errorf("%s expects an int64 column, got %T", spec.op, raw)
	}
	switch {
	case !a.seen:
		a.value = v
	case spec.op == types.AggregateOpKindSum:
		a.value += v
	case spec.op == types.AggregateOpKindMin && v < a.value:
		a.value = v
	case spec.op == types.AggregateOpKindMax && v > a.value:
		a.value = v
	}
	a.seen = true
	return nil
}

// hashAggregation groups its input by one key column and computes the node's
// aggregate functions per group. All output is emitted once input ends, in
// group insertion order so that repeated runs stay deterministic.
type hashAggregation struct {
	baseOperator

	node     *physical.Aggregation
	specs    []aggSpec
	groupIdx int // -1 for global aggregation

	groups     map[any][]*aggAccumulator
	groupOrder []any

	noMoreInput bool
	emitted     bool
}

func newHashAggregation(id int, node *physical.Aggregation) (*hashAggregation, error) {
	specs, err := resolveAggregates(node)
	if err != nil {
		return nil, err
	}
	groupIdx := -1
	if node.GroupKey != "" {
		groupIdx, err = columnIndex(node.Input.Schema(), node.GroupKey)
		if err != nil {
			return nil, err
		}
	}
	return &hashAggregation{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		specs:        specs,
		groupIdx:     groupIdx,
		groups:       make(map[any][]*aggAccumulator),
	}, nil
}

func (o *hashAggregation) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		var key any
		if o.groupIdx >= 0 {
			key = row[o.groupIdx]
		}
		accs, ok := o.groups[key]
		if !ok {
			accs = make([]*aggAccumulator, len(o.specs))
			for i, spec := range o.specs {
				accs[i] = &aggAccumulator{op: spec.op}
			}
			o.groups[key] = accs
			o.groupOrder = append(o.groupOrder, key)
		}
		for i, spec := range o.specs {
			if err := accs[i].add(row, spec); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func (o *hashAggregation) NoMoreInput() { o.noMoreInput = true }

func (o *hashAggregation) GetOutput(context.Context) (arrow.Record, error) {
	if !o.noMoreInput || o.emitted {
		return nil, nil
	}
	o.emitted = true

	// A global aggregation emits one row even for empty input.
	if o.groupIdx < 0 && len(o.groupOrder) == 0 {
		o.groups[nil] = make([]*aggAccumulator, len(o.specs))
		for i, spec := range o.specs {
			o.groups[nil][i] = &aggAccumulator{op: spec.op}
		}
		o.groupOrder = append(o.groupOrder, nil)
	}

	rows := make([][]any, 0, len(o.groupOrder))
	for _, key := range o.groupOrder {
		rows = append(rows, aggResultRow(key, o.groupIdx >= 0, o.groups[key]))
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowsToRecord(o.node.Schema(), rows)
}

func (o *hashAggregation) Finished() bool { return o.noMoreInput && o.emitted }

func (o *hashAggregation) Close() error { return nil }

func aggResultRow(key any, grouped bool, accs []*aggAccumulator) []any {
	row := make([]any, 0, len(accs)+1)
	if grouped {
		row = append(row, key)
	}
	for _, acc := range accs {
		if !acc.seen && acc.op != types.AggregateOpKindCount {
			row = append(row, nil)
			continue
		}
		row = append(row, acc.value)
	}
	return row
}

// streamingAggregation computes per-group aggregates over input sorted by
// the group key, emitting each group as soon as the key advances.
type streamingAggregation struct {
	baseOperator

	node     *physical.Aggregation
	specs    []aggSpec
	groupIdx int

	currentKey any
	current    []*aggAccumulator
	pendingRow [][]any

	noMoreInput bool
	flushed     bool
}

func newStreamingAggregation(id int, node *physical.Aggregation) (*streamingAggregation, error) {
	specs, err := resolveAggregates(node)
	if err != nil {
		return nil, err
	}
	if node.GroupKey == "" {
		return nil, fmt.Errorf("streaming aggregation %s requires a group key", node.ID())
	}
	groupIdx, err := columnIndex(node.Input.Schema(), node.GroupKey)
	if err != nil {
		return nil, err
	}
	return &streamingAggregation{
		baseOperator: baseOperator{id: id, nodeID: node.ID()},
		node:         node,
		specs:        specs,
		groupIdx:     groupIdx,
	}, nil
}

func (o *streamingAggregation) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		key := row[o.groupIdx]
		if o.current == nil || key != o.currentKey {
			o.flushCurrent()
			o.currentKey = key
			o.current = make([]*aggAccumulator, len(o.specs))
			for i, spec := range o.specs {
				o.current[i] = &aggAccumulator{op: spec.op}
			}
		}
		for i, spec := range o.specs {
			if err := o.current[i].add(row, spec); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func (o *streamingAggregation) flushCurrent() {
	if o.current == nil {
		return
	}
	o.pendingRow = append(o.pendingRow, aggResultRow(o.currentKey, true, o.current))
	o.current = nil
}

func (o *streamingAggregation) NoMoreInput() { o.noMoreInput = true }

func (o *streamingAggregation) GetOutput(context.Context) (arrow.Record, error) {
	if o.noMoreInput && !o.flushed {
		o.flushCurrent()
		o.flushed = true
	}
	if len(o.pendingRow) == 0 {
		return nil, nil
	}
	rows := o.pendingRow
	o.pendingRow = nil
	return rowsToRecord(o.node.Schema(), rows)
}

func (o *streamingAggregation) Finished() bool {
	return o.noMoreInput && o.flushed && len(o.pendingRow) == 0
}

func (o *streamingAggregation) Close() error { return nil }
