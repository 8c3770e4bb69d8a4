package physical

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/internal/types"
)

// TableScan reads batches from a connector table. Splits are assigned to the
// operator at run time by the owning task.
type TableScan struct {
	NodeID string
	Table  string
	Output *arrow.Schema
}

func (n *TableScan) ID() string            { return n.NodeID }
func (n *TableScan) Type() NodeType        { return NodeTypeTableScan }
func (n *TableScan) Sources() []Node       { return nil }
func (n *TableScan) Schema() *arrow.Schema { return n.Output }

// Values emits a fixed list of in-memory batches. Values runs single-threaded
// unless explicitly marked parallelizable, so that tests relying on it stay
// deterministic.
type Values struct {
	NodeID         string
	Batches        []arrow.Record
	Output         *arrow.Schema
	Parallelizable bool
}

func (n *Values) ID() string            { return n.NodeID }
func (n *Values) Type() NodeType        { return NodeTypeValues }
func (n *Values) Sources() []Node       { return nil }
func (n *Values) Schema() *arrow.Schema { return n.Output }

// Filter removes rows for which the predicate does not evaluate to true.
type Filter struct {
	NodeID    string
	Input     Node
	Predicate Expression
}

func (n *Filter) ID() string            { return n.NodeID }
func (n *Filter) Type() NodeType        { return NodeTypeFilter }
func (n *Filter) Sources() []Node       { return []Node{n.Input} }
func (n *Filter) Schema() *arrow.Schema { return n.Input.Schema() }

// Projection computes a new set of named columns from its input.
type Projection struct {
	NodeID      string
	Input       Node
	Expressions []Expression
	// Output declares the schema of the projected batches. It must have one
	// field per expression.
	Output *arrow.Schema
}

func (n *Projection) ID() string            { return n.NodeID }
func (n *Projection) Type() NodeType        { return NodeTypeProjection }
func (n *Projection) Sources() []Node       { return []Node{n.Input} }
func (n *Projection) Schema() *arrow.Schema { return n.Output }

// Aggregate describes a single aggregate function computed by an
// [Aggregation] node.
type Aggregate struct {
	Name string // output column name
	Op   types.AggregateOpKind
	Arg  string // input column name; ignored for COUNT
}

// Aggregation groups its input by a key column and computes aggregate
// functions per group. Streaming aggregations require their input to be
// sorted by the group key.
type Aggregation struct {
	NodeID     string
	Input      Node
	Step       AggregationStep
	GroupKey   string // empty for global aggregation
	Aggregates []Aggregate
	Streaming  bool
	Output     *arrow.Schema
}

func (n *Aggregation) ID() string            { return n.NodeID }
func (n *Aggregation) Type() NodeType        { return NodeTypeAggregation }
func (n *Aggregation) Sources() []Node       { return []Node{n.Input} }
func (n *Aggregation) Schema() *arrow.Schema { return n.Output }

// TopN emits the first Count rows of its input when ordered by the sort key.
type TopN struct {
	NodeID    string
	Input     Node
	SortKey   string
	Ascending bool
	Count     int64
	// Partial marks this node as producing per-driver candidates that a
	// downstream non-partial TopN reduces to the global result.
	Partial bool
}

func (n *TopN) ID() string            { return n.NodeID }
func (n *TopN) Type() NodeType        { return NodeTypeTopN }
func (n *TopN) Sources() []Node       { return []Node{n.Input} }
func (n *TopN) Schema() *arrow.Schema { return n.Input.Schema() }

// Limit skips Skip rows and then emits at most Fetch rows.
type Limit struct {
	NodeID  string
	Input   Node
	Skip    int64
	Fetch   int64
	Partial bool
}

func (n *Limit) ID() string            { return n.NodeID }
func (n *Limit) Type() NodeType        { return NodeTypeLimit }
func (n *Limit) Sources() []Node       { return []Node{n.Input} }
func (n *Limit) Schema() *arrow.Schema { return n.Input.Schema() }

// OrderBy fully sorts its input by the sort key.
type OrderBy struct {
	NodeID    string
	Input     Node
	SortKey   string
	Ascending bool
	Partial   bool
}

func (n *OrderBy) ID() string            { return n.NodeID }
func (n *OrderBy) Type() NodeType        { return NodeTypeOrderBy }
func (n *OrderBy) Sources() []Node       { return []Node{n.Input} }
func (n *OrderBy) Schema() *arrow.Schema { return n.Input.Schema() }

// HashJoin joins two inputs on a single equality key. The left (first) input
// is the probe side and stays in the parent pipeline; the right (second)
// input is the build side and runs in its own pipeline, terminated by a hash
// build sink.
type HashJoin struct {
	NodeID   string
	Left     Node // probe side
	Right    Node // build side
	LeftKey  string
	RightKey string
	Output   *arrow.Schema
}

func (n *HashJoin) ID() string            { return n.NodeID }
func (n *HashJoin) Type() NodeType        { return NodeTypeHashJoin }
func (n *HashJoin) Sources() []Node       { return []Node{n.Left, n.Right} }
func (n *HashJoin) Schema() *arrow.Schema { return n.Output }

// NestedLoopJoin computes the cross product of its two inputs. The right
// input is fully materialized before probing begins.
type NestedLoopJoin struct {
	NodeID string
	Left   Node // probe side
	Right  Node // build side
	Output *arrow.Schema
}

func (n *NestedLoopJoin) ID() string            { return n.NodeID }
func (n *NestedLoopJoin) Type() NodeType        { return NodeTypeNestedLoopJoin }
func (n *NestedLoopJoin) Sources() []Node       { return []Node{n.Left, n.Right} }
func (n *NestedLoopJoin) Schema() *arrow.Schema { return n.Output }

// MergeJoin joins two inputs sorted by their join keys. The right input runs
// in its own pipeline and hands batches over through a merge join source
// registered on the task under this node's ID.
type MergeJoin struct {
	NodeID   string
	Left     Node // streamed side
	Right    Node // enqueued side
	LeftKey  string
	RightKey string
	Output   *arrow.Schema
}

func (n *MergeJoin) ID() string            { return n.NodeID }
func (n *MergeJoin) Type() NodeType        { return NodeTypeMergeJoin }
func (n *MergeJoin) Sources() []Node       { return []Node{n.Left, n.Right} }
func (n *MergeJoin) Schema() *arrow.Schema { return n.Output }

// LocalMerge merges several sorted in-process streams into one ordered
// stream. Every source runs in its own pipeline, and the merge itself is
// single-threaded.
type LocalMerge struct {
	NodeID    string
	Inputs    []Node
	SortKey   string
	Ascending bool
}

func (n *LocalMerge) ID() string            { return n.NodeID }
func (n *LocalMerge) Type() NodeType        { return NodeTypeLocalMerge }
func (n *LocalMerge) Sources() []Node       { return n.Inputs }
func (n *LocalMerge) Schema() *arrow.Schema { return n.Inputs[0].Schema() }

// LocalPartition fans batches out to sibling pipeline drivers by hashing a
// partition key. Every source runs in its own pipeline, terminated by a
// partitioning operator writing into the local exchange registered under
// this node's ID.
type LocalPartition struct {
	NodeID       string
	Inputs       []Node
	PartitionKey string
	// Partitions is the fan-out width, matching the planned driver count of
	// the consuming pipeline.
	Partitions int
}

func (n *LocalPartition) ID() string            { return n.NodeID }
func (n *LocalPartition) Type() NodeType        { return NodeTypeLocalPartition }
func (n *LocalPartition) Sources() []Node       { return n.Inputs }
func (n *LocalPartition) Schema() *arrow.Schema { return n.Inputs[0].Schema() }

// Exchange reads batches produced by other tasks, typically on remote
// workers. The transport is provided externally as an ExchangeClient.
type Exchange struct {
	NodeID string
	Output *arrow.Schema
}

func (n *Exchange) ID() string            { return n.NodeID }
func (n *Exchange) Type() NodeType        { return NodeTypeExchange }
func (n *Exchange) Sources() []Node       { return nil }
func (n *Exchange) Schema() *arrow.Schema { return n.Output }

// MergeExchange reads sorted batches produced by other tasks and merges them
// into one ordered stream. It is single-threaded by construction.
type MergeExchange struct {
	NodeID    string
	Output    *arrow.Schema
	SortKey   string
	Ascending bool
}

func (n *MergeExchange) ID() string            { return n.NodeID }
func (n *MergeExchange) Type() NodeType        { return NodeTypeMergeExchange }
func (n *MergeExchange) Sources() []Node       { return nil }
func (n *MergeExchange) Schema() *arrow.Schema { return n.Output }

// PartitionedOutput routes batches into the task's output buffers by hashing
// a partition key. It is the terminal node of tasks whose results are
// consumed by downstream exchanges.
type PartitionedOutput struct {
	NodeID       string
	Input        Node
	PartitionKey string
	Partitions   int
}

func (n *PartitionedOutput) ID() string            { return n.NodeID }
func (n *PartitionedOutput) Type() NodeType        { return NodeTypePartitionedOutput }
func (n *PartitionedOutput) Sources() []Node       { return []Node{n.Input} }
func (n *PartitionedOutput) Schema() *arrow.Schema { return n.Input.Schema() }

// TableWrite appends its input batches to a connector table and emits a
// single batch holding the number of written rows.
type TableWrite struct {
	NodeID string
	Input  Node
	Handle InsertTableHandle
	Output *arrow.Schema
}

func (n *TableWrite) ID() string            { return n.NodeID }
func (n *TableWrite) Type() NodeType        { return NodeTypeTableWrite }
func (n *TableWrite) Sources() []Node       { return []Node{n.Input} }
func (n *TableWrite) Schema() *arrow.Schema { return n.Output }

// Unnest flattens a list column into one row per list element, repeating the
// remaining columns.
type Unnest struct {
	NodeID     string
	Input      Node
	ListColumn string
	Output     *arrow.Schema
}

func (n *Unnest) ID() string            { return n.NodeID }
func (n *Unnest) Type() NodeType        { return NodeTypeUnnest }
func (n *Unnest) Sources() []Node       { return []Node{n.Input} }
func (n *Unnest) Schema() *arrow.Schema { return n.Output }

// EnforceSingleRow passes its input through and fails if it holds more than
// one row, as required by scalar subqueries.
type EnforceSingleRow struct {
	NodeID string
	Input  Node
}

func (n *EnforceSingleRow) ID() string            { return n.NodeID }
func (n *EnforceSingleRow) Type() NodeType        { return NodeTypeEnforceSingleRow }
func (n *EnforceSingleRow) Sources() []Node       { return []Node{n.Input} }
func (n *EnforceSingleRow) Schema() *arrow.Schema { return n.Input.Schema() }

// AssignUniqueID appends an int64 column of identifiers that are unique
// across all drivers of the task.
type AssignUniqueID struct {
	NodeID   string
	Input    Node
	IDColumn string
	Output   *arrow.Schema
}

func (n *AssignUniqueID) ID() string            { return n.NodeID }
func (n *AssignUniqueID) Type() NodeType        { return NodeTypeAssignUniqueID }
func (n *AssignUniqueID) Sources() []Node       { return []Node{n.Input} }
func (n *AssignUniqueID) Schema() *arrow.Schema { return n.Output }
