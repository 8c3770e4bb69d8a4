package physical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// NodeType represents the type of a node in the physical plan.
type NodeType uint32

const (
	_ NodeType = iota // zero-value is an invalid type

	NodeTypeTableScan
	NodeTypeValues
	NodeTypeFilter
	NodeTypeProjection
	NodeTypeAggregation
	NodeTypeTopN
	NodeTypeLimit
	NodeTypeOrderBy
	NodeTypeHashJoin
	NodeTypeNestedLoopJoin
	NodeTypeMergeJoin
	NodeTypeLocalMerge
	NodeTypeLocalPartition
	NodeTypeExchange
	NodeTypeMergeExchange
	NodeTypePartitionedOutput
	NodeTypeTableWrite
	NodeTypeUnnest
	NodeTypeEnforceSingleRow
	NodeTypeAssignUniqueID
)

// String returns the string representation of the [NodeType].
func (t NodeType) String() string {
	switch t {
	case NodeTypeTableScan:
		return "TableScan"
	case NodeTypeValues:
		return "Values"
	case NodeTypeFilter:
		return "Filter"
	case NodeTypeProjection:
		return "Projection"
	case NodeTypeAggregation:
		return "Aggregation"
	case NodeTypeTopN:
		return "TopN"
	case NodeTypeLimit:
		return "Limit"
	case NodeTypeOrderBy:
		return "OrderBy"
	case NodeTypeHashJoin:
		return "HashJoin"
	case NodeTypeNestedLoopJoin:
		return "NestedLoopJoin"
	case NodeTypeMergeJoin:
		return "MergeJoin"
	case NodeTypeLocalMerge:
		return "LocalMerge"
	case NodeTypeLocalPartition:
		return "LocalPartition"
	case NodeTypeExchange:
		return "Exchange"
	case NodeTypeMergeExchange:
		return "MergeExchange"
	case NodeTypePartitionedOutput:
		return "PartitionedOutput"
	case NodeTypeTableWrite:
		return "TableWrite"
	case NodeTypeUnnest:
		return "Unnest"
	case NodeTypeEnforceSingleRow:
		return "EnforceSingleRow"
	case NodeTypeAssignUniqueID:
		return "AssignUniqueID"
	default:
		return fmt.Sprintf("NodeType(%d)", t)
	}
}

// Node is the common interface for all nodes in a physical plan. A node is
// immutable once constructed and may be referenced from multiple places;
// implementations must never mutate a node after handing it out.
type Node interface {
	// ID returns a string that uniquely identifies the node in the plan.
	ID() string
	// Type returns the kind of the node.
	Type() NodeType
	// Sources returns the ordered list of child nodes feeding this node.
	// Leaf nodes return an empty list.
	Sources() []Node
	// Schema returns the Arrow schema of the batches the node emits.
	Schema() *arrow.Schema
}

// AggregationStep describes which phase of a split aggregation a node
// computes.
type AggregationStep uint32

const (
	_ AggregationStep = iota // zero-value is an invalid step

	// AggregationPartial consumes raw input and produces partial results.
	AggregationPartial
	// AggregationIntermediate consumes and produces partial results.
	AggregationIntermediate
	// AggregationFinal consumes partial results and produces final results.
	AggregationFinal
	// AggregationSingle consumes raw input and produces final results.
	AggregationSingle
)

// String returns the string representation of the [AggregationStep].
func (s AggregationStep) String() string {
	switch s {
	case AggregationPartial:
		return "partial"
	case AggregationIntermediate:
		return "intermediate"
	case AggregationFinal:
		return "final"
	case AggregationSingle:
		return "single"
	default:
		return fmt.Sprintf("AggregationStep(%d)", s)
	}
}

// InsertTableHandle describes the target of a [TableWrite] node. It is
// provided by the connector owning the target table.
type InsertTableHandle interface {
	// SupportsMultiThreading reports whether the connector can accept
	// concurrent writes from multiple drivers of the same pipeline.
	SupportsMultiThreading() bool
}
