package executor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GuChangyang/presto/pkg/engine/internal/types"
	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

func TestExpressionEvaluator(t *testing.T) {
	schema := int64Schema("x", "y")
	batch := record(t, schema, [][]any{
		{int64(1), int64(10)},
		{int64(2), nil},
		{int64(3), int64(30)},
	})

	var evaluator expressionEvaluator

	evalAll := func(t *testing.T, expr physical.Expression) []any {
		t.Helper()
		vec, err := evaluator.eval(expr, batch)
		require.NoError(t, err)
		out := make([]any, 0, vec.rows)
		for i := 0; i < vec.rows; i++ {
			v, err := vec.at(i)
			require.NoError(t, err)
			out = append(out, v)
		}
		return out
	}

	t.Run("literal", func(t *testing.T) {
		require.Equal(t, []any{int64(7), int64(7), int64(7)}, evalAll(t, physical.NewLiteral(int64(7))))
	})

	t.Run("column", func(t *testing.T) {
		require.Equal(t, []any{int64(10), nil, int64(30)}, evalAll(t, &physical.ColumnExpr{Name: "y"}))
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := evaluator.eval(&physical.ColumnExpr{Name: "z"}, batch)
		require.Error(t, err)
	})

	t.Run("comparison propagates nulls", func(t *testing.T) {
		expr := &physical.BinaryExpr{
			Left:  &physical.ColumnExpr{Name: "y"},
			Right: physical.NewLiteral(int64(15)),
			Op:    types.BinaryOpKindGt,
		}
		require.Equal(t, []any{false, nil, true}, evalAll(t, expr))
	})

	t.Run("arithmetic", func(t *testing.T) {
		expr := &physical.BinaryExpr{
			Left:  &physical.ColumnExpr{Name: "x"},
			Right: &physical.ColumnExpr{Name: "x"},
			Op:    types.BinaryOpKindMul,
		}
		require.Equal(t, []any{int64(1), int64(4), int64(9)}, evalAll(t, expr))
	})

	t.Run("division by zero yields null", func(t *testing.T) {
		expr := &physical.BinaryExpr{
			Left:  &physical.ColumnExpr{Name: "x"},
			Right: physical.NewLiteral(int64(0)),
			Op:    types.BinaryOpKindDiv,
		}
		require.Equal(t, []any{nil, nil, nil}, evalAll(t, expr))
	})

	t.Run("negation", func(t *testing.T) {
		expr := &physical.UnaryExpr{Left: &physical.ColumnExpr{Name: "x"}, Op: types.UnaryOpKindNeg}
		require.Equal(t, []any{int64(-1), int64(-2), int64(-3)}, evalAll(t, expr))
	})

	t.Run("logical not", func(t *testing.T) {
		expr := &physical.UnaryExpr{
			Left: &physical.BinaryExpr{
				Left:  &physical.ColumnExpr{Name: "x"},
				Right: physical.NewLiteral(int64(2)),
				Op:    types.BinaryOpKindEq,
			},
			Op: types.UnaryOpKindNot,
		}
		require.Equal(t, []any{true, false, true}, evalAll(t, expr))
	})
}
