package executor

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"github.com/GuChangyang/presto/pkg/engine/internal/errors"
	"github.com/GuChangyang/presto/pkg/engine/internal/types"
	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// fakeHandle is an insert table handle with a fixed threading capability.
type fakeHandle bool

func (h fakeHandle) SupportsMultiThreading() bool { return bool(h) }

// customNode is a plan node outside the built-in set, handled only through
// registered operator factories.
type customNode struct {
	id     string
	input  physical.Node
	schema *arrow.Schema
}

func (n *customNode) ID() string              { return n.id }
func (n *customNode) Type() physical.NodeType { return physical.NodeType(1000) }
func (n *customNode) Schema() *arrow.Schema   { return n.schema }

func (n *customNode) Sources() []physical.Node {
	if n.input == nil {
		return nil
	}
	return []physical.Node{n.input}
}

// passthroughOperator forwards batches unchanged.
type passthroughOperator struct {
	baseOperator

	pending     []arrow.Record
	noMoreInput bool
}

func (o *passthroughOperator) AddInput(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	o.pending = append(o.pending, batch)
	return nil, nil
}

func (o *passthroughOperator) NoMoreInput() { o.noMoreInput = true }

func (o *passthroughOperator) GetOutput(context.Context) (arrow.Record, error) {
	if len(o.pending) == 0 {
		return nil, nil
	}
	batch := o.pending[0]
	o.pending = o.pending[1:]
	return batch, nil
}

func (o *passthroughOperator) Finished() bool { return o.noMoreInput && len(o.pending) == 0 }

func (o *passthroughOperator) Close() error { return nil }

// customFactory serves customNode with a passthrough operator and a fixed
// driver cap.
type customFactory struct {
	cap int
}

func (f *customFactory) ToOperator(_ *DriverCtx, id int, node physical.Node) (Operator, bool, error) {
	n, ok := node.(*customNode)
	if !ok {
		return nil, false, nil
	}
	return &passthroughOperator{baseOperator: baseOperator{id: id, nodeID: n.ID()}}, true, nil
}

func (f *customFactory) MaxDrivers(node physical.Node) (int, bool) {
	if _, ok := node.(*customNode); !ok {
		return 0, false
	}
	return f.cap, true
}

func nodeIDs(nodes []physical.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID())
	}
	return ids
}

func TestLocalPlanner_ScanFilterProjectJoin(t *testing.T) {
	probeSchema := int64Schema("x", "y")
	buildSchema := int64Schema("k", "v")
	joinSchema := int64Schema("x", "y", "k", "v")

	scan := &physical.TableScan{NodeID: "scan", Table: "orders", Output: probeSchema}
	filter := &physical.Filter{
		NodeID: "filter",
		Input:  scan,
		Predicate: &physical.BinaryExpr{
			Left:  &physical.ColumnExpr{Name: "x"},
			Right: physical.NewLiteral(int64(0)),
			Op:    types.BinaryOpKindGt,
		},
	}
	project := &physical.Projection{
		NodeID: "project",
		Input:  filter,
		Expressions: []physical.Expression{
			&physical.ColumnExpr{Name: "x"},
			&physical.ColumnExpr{Name: "y"},
		},
		Output: probeSchema,
	}

	scan2 := &physical.TableScan{NodeID: "scan2", Table: "items", Output: buildSchema}
	project2 := &physical.Projection{
		NodeID: "project2",
		Input:  scan2,
		Expressions: []physical.Expression{
			&physical.ColumnExpr{Name: "k"},
			&physical.ColumnExpr{Name: "v"},
		},
		Output: buildSchema,
	}

	join := &physical.HashJoin{
		NodeID:   "join",
		Left:     project,
		Right:    project2,
		LeftKey:  "x",
		RightKey: "k",
		Output:   joinSchema,
	}
	output := &physical.PartitionedOutput{
		NodeID:       "output",
		Input:        join,
		PartitionKey: "x",
		Partitions:   2,
	}

	planner := newTestPlanner()
	factories, err := planner.Plan(context.Background(), output, nil)
	require.NoError(t, err)
	require.Len(t, factories, 2)

	t.Run("probe pipeline produces the output", func(t *testing.T) {
		f := factories[0]
		require.Equal(t, []string{"scan", "filter", "project", "join", "output"}, nodeIDs(f.Nodes))
		require.True(t, f.OutputDriver)
		require.True(t, f.InputDriver)
		require.Equal(t, MaxDriversUnbounded, f.MaxDrivers)
	})

	t.Run("build pipeline ends in a sink", func(t *testing.T) {
		f := factories[1]
		require.Equal(t, []string{"scan2", "project2"}, nodeIDs(f.Nodes))
		require.False(t, f.OutputDriver)
		require.True(t, f.InputDriver)
		require.NotNil(t, f.consumerSupplier)
	})

	t.Run("probe driver fuses filter and projection", func(t *testing.T) {
		task := newTestTask()
		numDrivers := func(int) int { return 1 }

		driver, err := factories[0].CreateDriver(&DriverCtx{Task: task}, nil, numDrivers)
		require.NoError(t, err)

		ops := driver.Operators()
		require.Len(t, ops, 4)
		require.IsType(t, &tableScan{}, ops[0])
		require.IsType(t, &filterProject{}, ops[1])
		require.IsType(t, &hashProbe{}, ops[2])
		require.IsType(t, &partitionedOutput{}, ops[3])
		for i, op := range ops {
			require.Equal(t, i, op.OperatorID())
		}

		buildDriver, err := factories[1].CreateDriver(&DriverCtx{Task: task, PipelineID: 1}, nil, numDrivers)
		require.NoError(t, err)

		buildOps := buildDriver.Operators()
		require.Len(t, buildOps, 3)
		require.IsType(t, &tableScan{}, buildOps[0])
		require.IsType(t, &filterProject{}, buildOps[1])
		require.IsType(t, &hashBuild{}, buildOps[2])
	})

	t.Run("planning is deterministic", func(t *testing.T) {
		again, err := planner.Plan(context.Background(), output, nil)
		require.NoError(t, err)
		require.Len(t, again, len(factories))
		for i := range factories {
			require.Equal(t, nodeIDs(factories[i].Nodes), nodeIDs(again[i].Nodes))
		}
	})
}

func TestLocalPlanner_LocalMerge(t *testing.T) {
	schema := int64Schema("x")
	scan := &physical.TableScan{NodeID: "scan", Table: "t", Output: schema}
	sort := &physical.OrderBy{NodeID: "sort", Input: scan, SortKey: "x", Ascending: true, Partial: true}
	merge := &physical.LocalMerge{NodeID: "merge", Inputs: []physical.Node{sort}, SortKey: "x", Ascending: true}

	collector := &rowCollector{}
	factories, err := newTestPlanner().Plan(context.Background(), merge, collector.factory)
	require.NoError(t, err)
	require.Len(t, factories, 2)

	require.Equal(t, []string{"merge"}, nodeIDs(factories[0].Nodes))
	require.Equal(t, 1, factories[0].MaxDrivers)
	require.False(t, factories[0].InputDriver)

	require.Equal(t, []string{"scan", "sort"}, nodeIDs(factories[1].Nodes))
	require.Equal(t, MaxDriversUnbounded, factories[1].MaxDrivers)
	require.NotNil(t, factories[1].consumerSupplier)
}

func TestLocalPlanner_MaxDrivers(t *testing.T) {
	schema := int64Schema("x")
	scan := &physical.TableScan{NodeID: "scan", Table: "t", Output: schema}

	for _, tt := range []struct {
		name string
		root physical.Node
		want int
	}{
		{
			name: "final limit runs single-threaded",
			root: &physical.Limit{NodeID: "limit", Input: scan, Fetch: 10},
			want: 1,
		},
		{
			name: "partial limit is unconstrained",
			root: &physical.Limit{NodeID: "limit", Input: scan, Fetch: 10, Partial: true},
			want: MaxDriversUnbounded,
		},
		{
			name: "final topN runs single-threaded",
			root: &physical.TopN{NodeID: "topn", Input: scan, SortKey: "x", Count: 5},
			want: 1,
		},
		{
			name: "partial topN is unconstrained",
			root: &physical.TopN{NodeID: "topn", Input: scan, SortKey: "x", Count: 5, Partial: true},
			want: MaxDriversUnbounded,
		},
		{
			name: "final orderBy runs single-threaded",
			root: &physical.OrderBy{NodeID: "sort", Input: scan, SortKey: "x"},
			want: 1,
		},
		{
			name: "final aggregation runs single-threaded",
			root: &physical.Aggregation{
				NodeID: "agg", Input: scan, Step: physical.AggregationFinal,
				Aggregates: []physical.Aggregate{{Name: "count", Op: types.AggregateOpKindCount}},
				Output:     int64Schema("count"),
			},
			want: 1,
		},
		{
			name: "partial aggregation is unconstrained",
			root: &physical.Aggregation{
				NodeID: "agg", Input: scan, Step: physical.AggregationPartial,
				Aggregates: []physical.Aggregate{{Name: "count", Op: types.AggregateOpKindCount}},
				Output:     int64Schema("count"),
			},
			want: MaxDriversUnbounded,
		},
		{
			name: "values runs single-threaded",
			root: &physical.Values{NodeID: "values", Output: schema},
			want: 1,
		},
		{
			name: "parallelizable values is unconstrained",
			root: &physical.Values{NodeID: "values", Output: schema, Parallelizable: true},
			want: MaxDriversUnbounded,
		},
		{
			name: "merge exchange runs single-threaded",
			root: &physical.MergeExchange{NodeID: "mergex", Output: schema, SortKey: "x"},
			want: 1,
		},
		{
			name: "single-threaded table write",
			root: &physical.TableWrite{NodeID: "write", Input: scan, Handle: fakeHandle(false), Output: int64Schema("rows")},
			want: 1,
		},
		{
			name: "multi-threaded table write is unconstrained",
			root: &physical.TableWrite{NodeID: "write", Input: scan, Handle: fakeHandle(true), Output: int64Schema("rows")},
			want: MaxDriversUnbounded,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			collector := &rowCollector{}
			factories, err := newTestPlanner().Plan(context.Background(), tt.root, collector.factory)
			require.NoError(t, err)
			require.Len(t, factories, 1)
			require.Equal(t, tt.want, factories[0].MaxDrivers)
		})
	}
}

func TestLocalPlanner_OperatorFactory(t *testing.T) {
	schema := int64Schema("x")
	custom := &customNode{id: "custom", input: &physical.TableScan{NodeID: "scan", Table: "t", Output: schema}, schema: schema}

	t.Run("registered cap bounds the pipeline", func(t *testing.T) {
		unregister := RegisterOperatorFactory(&customFactory{cap: 3})
		defer unregister()

		collector := &rowCollector{}
		factories, err := newTestPlanner().Plan(context.Background(), custom, collector.factory)
		require.NoError(t, err)
		require.Len(t, factories, 1)
		require.Equal(t, 3, factories[0].MaxDrivers)
	})

	t.Run("cap of zero fails planning", func(t *testing.T) {
		unregister := RegisterOperatorFactory(&customFactory{cap: 0})
		defer unregister()

		collector := &rowCollector{}
		_, err := newTestPlanner().Plan(context.Background(), custom, collector.factory)
		require.ErrorIs(t, err, errors.ErrInvalidPlan)
	})

	t.Run("unhandled node fails driver creation", func(t *testing.T) {
		collector := &rowCollector{}
		factories, err := newTestPlanner().Plan(context.Background(), custom, collector.factory)
		require.NoError(t, err)

		dctx := &DriverCtx{Task: newTestTask(), PipelineID: 0, DriverID: 0}
		_, err = factories[0].CreateDriver(dctx, nil, func(int) int { return 1 })
		require.ErrorIs(t, err, errors.ErrUnsupportedNode)
	})

	t.Run("registered factory serves the node", func(t *testing.T) {
		unregister := RegisterOperatorFactory(&customFactory{cap: 3})
		defer unregister()

		collector := &rowCollector{}
		factories, err := newTestPlanner().Plan(context.Background(), custom, collector.factory)
		require.NoError(t, err)

		dctx := &DriverCtx{Task: newTestTask(), PipelineID: 0, DriverID: 0}
		driver, err := factories[0].CreateDriver(dctx, nil, func(int) int { return 1 })
		require.NoError(t, err)

		ops := driver.Operators()
		require.Len(t, ops, 3) // scan, custom, sink
		require.IsType(t, &passthroughOperator{}, ops[1])
	})
}

func TestLocalPlanner_ExchangeNeedsClient(t *testing.T) {
	schema := int64Schema("x")
	node := &physical.Exchange{NodeID: "exchange", Output: schema}

	collector := &rowCollector{}
	factories, err := newTestPlanner().Plan(context.Background(), node, collector.factory)
	require.NoError(t, err)

	dctx := &DriverCtx{Task: newTestTask(), PipelineID: 0, DriverID: 0}
	_, err = factories[0].CreateDriver(dctx, nil, func(int) int { return 1 })
	require.ErrorIs(t, err, errors.ErrInvalidPlan)
}
