package physical

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"
)

func schemaOf(names ...string) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

func TestNodeSchemas(t *testing.T) {
	scan := &TableScan{NodeID: "scan", Table: "t", Output: schemaOf("x", "y")}

	t.Run("filter keeps its input schema", func(t *testing.T) {
		filter := &Filter{NodeID: "filter", Input: scan}
		require.True(t, filter.Schema().Equal(scan.Schema()))
	})

	t.Run("projection declares its own schema", func(t *testing.T) {
		project := &Projection{NodeID: "project", Input: scan, Output: schemaOf("x")}
		require.Equal(t, 1, project.Schema().NumFields())
	})

	t.Run("local merge uses the first input schema", func(t *testing.T) {
		merge := &LocalMerge{NodeID: "merge", Inputs: []Node{scan}, SortKey: "x"}
		require.True(t, merge.Schema().Equal(scan.Schema()))
	})

	t.Run("join declares the combined schema", func(t *testing.T) {
		build := &TableScan{NodeID: "scan2", Table: "u", Output: schemaOf("k")}
		join := &HashJoin{NodeID: "join", Left: scan, Right: build, LeftKey: "x", RightKey: "k", Output: schemaOf("x", "y", "k")}
		require.Equal(t, []Node{scan, build}, join.Sources())
		require.Equal(t, 3, join.Schema().NumFields())
	})
}

func TestNodeTypeStrings(t *testing.T) {
	for nodeType, want := range map[NodeType]string{
		NodeTypeTableScan:      "TableScan",
		NodeTypeFilter:         "Filter",
		NodeTypeHashJoin:       "HashJoin",
		NodeTypeLocalMerge:     "LocalMerge",
		NodeTypeLocalPartition: "LocalPartition",
	} {
		require.Equal(t, want, nodeType.String())
	}
	require.Equal(t, "NodeType(999)", NodeType(999).String())
}

func TestExpressionStrings(t *testing.T) {
	expr := &BinaryExpr{
		Left:  &ColumnExpr{Name: "x"},
		Right: NewLiteral(int64(3)),
		Op:    0,
	}
	require.NotEmpty(t, expr.String())
	require.Equal(t, ExprTypeBinary, expr.Type())
	require.Equal(t, ExprTypeColumn, (&ColumnExpr{Name: "x"}).Type())
	require.Equal(t, ExprTypeLiteral, NewLiteral(int64(3)).Type())
}
