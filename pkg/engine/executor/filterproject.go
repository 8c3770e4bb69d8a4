package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// filterProject is the fused evaluation of an optional filter followed by an
// optional projection. Fusing the two avoids materializing the post-filter
// batch before the projection runs. A lone filter acts as filter plus
// identity projection; a lone projection as an always-true predicate plus
// projection.
type filterProject struct {
	baseOperator

	filter  *physical.Filter
	project *physical.Projection
	schema  *arrow.Schema

	evaluator expressionEvaluator

	pending     []arrow.Record
	noMoreInput bool
}

func newFilterProject(id int, filter *physical.Filter, project *physical.Projection) (*filterProject, error) {
	if filter == nil && project == nil {
		return nil, fmt.Errorf("filter project needs at least one of filter and projection")
	}

	var nodeID string
	var schema *arrow.Schema
	switch {
	case project != nil:
		nodeID = project.ID()
		schema = project.Schema()
	default:
		nodeID = filter.ID()
		schema = filter.Schema()
	}
	if filter != nil {
		nodeID = filter.ID()
	}

	return &filterProject{
		baseOperator: baseOperator{id: id, nodeID: nodeID},
		filter:       filter,
		project:      project,
		schema:       schema,
	}, nil
}

func (o *filterProject) AddInput(ctx context.Context, batch arrow.Record) (ContinueFuture, error) {
	keep, err := o.filterMask(batch)
	if err != nil {
		return nil, err
	}

	out, err := o.projectRows(batch, keep)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	record, err := rowsToRecord(o.schema, out)
	if err != nil {
		return nil, err
	}
	o.pending = append(o.pending, record)
	return nil, nil
}

// filterMask returns the indices of rows passing the predicate. Without a
// filter node, every row passes.
func (o *filterProject) filterMask(batch arrow.Record) ([]int, error) {
	keep := make([]int, 0, batch.NumRows())
	if o.filter == nil {
		for i := 0; i < int(batch.NumRows()); i++ {
			keep = append(keep, i)
		}
		return keep, nil
	}

	mask, err := o.evaluator.eval(o.filter.Predicate, batch)
	if err != nil {
		return nil, err
	}
	for i := 0; i < mask.rows; i++ {
		v, err := mask.at(i)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		pass, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("filter predicate returned non-boolean type %T", v)
		}
		if pass {
			keep = append(keep, i)
		}
	}
	return keep, nil
}

// projectRows evaluates the projection for the kept rows. Without a
// projection node, the kept rows are copied as-is.
func (o *filterProject) projectRows(batch arrow.Record, keep []int) ([][]any, error) {
	if o.project == nil {
		rows, err := batchRows(batch)
		if err != nil {
			return nil, err
		}
		out := make([][]any, 0, len(keep))
		for _, i := range keep {
			out = append(out, rows[i])
		}
		return out, nil
	}

	vectors := make([]*vector, 0, len(o.project.Expressions))
	for _, expr := range o.project.Expressions {
		vec, err := o.evaluator.eval(expr, batch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}

	out := make([][]any, 0, len(keep))
	for _, i := range keep {
		row := make([]any, len(vectors))
		for c, vec := range vectors {
			v, err := vec.at(i)
			if err != nil {
				return nil, err
			}
			row[c] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func (o *filterProject) NoMoreInput() { o.noMoreInput = true }

func (o *filterProject) GetOutput(context.Context) (arrow.Record, error) {
	if len(o.pending) == 0 {
		return nil, nil
	}
	batch := o.pending[0]
	o.pending = o.pending[1:]
	return batch, nil
}

func (o *filterProject) Finished() bool {
	return o.noMoreInput && len(o.pending) == 0
}

func (o *filterProject) Close() error { return nil }
