package executor

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/internal/types"
	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// expressionEvaluator evaluates physical plan expressions against record
// batches.
type expressionEvaluator struct{}

// vector is a lazily computed column of per-row values.
type vector struct {
	rows int
	at   func(i int) (any, error)
}

func (e expressionEvaluator) eval(expr physical.Expression, input arrow.Record) (*vector, error) {
	switch expr := expr.(type) {
	case *physical.LiteralExpr:
		value := expr.Value
		return &vector{
			rows: int(input.NumRows()),
			at:   func(int) (any, error) { return value, nil },
		}, nil

	case *physical.ColumnExpr:
		idx, err := columnIndex(input.Schema(), expr.Name)
		if err != nil {
			return nil, err
		}
		col := input.Column(idx)
		return &vector{
			rows: int(input.NumRows()),
			at:   func(i int) (any, error) { return arrowValue(col, i) },
		}, nil

	case *physical.UnaryExpr:
		left, err := e.eval(expr.Left, input)
		if err != nil {
			return nil, err
		}
		op := expr.Op
		return &vector{
			rows: left.rows,
			at: func(i int) (any, error) {
				v, err := left.at(i)
				if err != nil {
					return nil, err
				}
				return applyUnary(op, v)
			},
		}, nil

	case *physical.BinaryExpr:
		left, err := e.eval(expr.Left, input)
		if err != nil {
			return nil, err
		}
		right, err := e.eval(expr.Right, input)
		if err != nil {
			return nil, err
		}
		op := expr.Op
		return &vector{
			rows: left.rows,
			at: func(i int) (any, error) {
				l, err := left.at(i)
				if err != nil {
					return nil, err
				}
				r, err := right.at(i)
				if err != nil {
					return nil, err
				}
				return applyBinary(op, l, r)
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported expression type %T", expr)
	}
}

func applyUnary(op types.UnaryOpKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch op {
	case types.UnaryOpKindNot:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("NOT expects bool, got %T", v)
		}
		return !b, nil
	case types.UnaryOpKindNeg:
		switch v := v.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		}
		return nil, fmt.Errorf("NEG expects a numeric value, got %T", v)
	default:
		return nil, fmt.Errorf("invalid unary operator %s", op)
	}
}

func applyBinary(op types.BinaryOpKind, l, r any) (any, error) {
	// Null operands propagate, matching SQL three-valued logic closely
	// enough for predicate evaluation (null never passes a filter).
	if l == nil || r == nil {
		return nil, nil
	}

	switch op {
	case types.BinaryOpKindEq, types.BinaryOpKindNeq,
		types.BinaryOpKindGt, types.BinaryOpKindGte,
		types.BinaryOpKindLt, types.BinaryOpKindLte:
		cmp, err := compareValues(l, r)
		if err != nil {
			return nil, err
		}
		switch op {
		case types.BinaryOpKindEq:
			return cmp == 0, nil
		case types.BinaryOpKindNeq:
			return cmp != 0, nil
		case types.BinaryOpKindGt:
			return cmp > 0, nil
		case types.BinaryOpKindGte:
			return cmp >= 0, nil
		case types.BinaryOpKindLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}

	case types.BinaryOpKindAnd, types.BinaryOpKindOr:
		lb, lok := l.(bool)
		rb, rok := r.(bool)
		if !lok || !rok {
			return nil, fmt.Errorf("%s expects bool operands, got %T and %T", op, l, r)
		}
		if op == types.BinaryOpKindAnd {
			return lb && rb, nil
		}
		return lb || rb, nil

	case types.BinaryOpKindAdd, types.BinaryOpKindSub,
		types.BinaryOpKindMul, types.BinaryOpKindDiv, types.BinaryOpKindMod:
		return applyArithmetic(op, l, r)

	default:
		return nil, fmt.Errorf("invalid binary operator %s", op)
	}
}

func applyArithmetic(op types.BinaryOpKind, l, r any) (any, error) {
	if li, ok := l.(int64); ok {
		ri, ok := r.(int64)
		if !ok {
			return nil, fmt.Errorf("%s expects matching operand types, got int64 and %T", op, r)
		}
		switch op {
		case types.BinaryOpKindAdd:
			return li + ri, nil
		case types.BinaryOpKindSub:
			return li - ri, nil
		case types.BinaryOpKindMul:
			return li * ri, nil
		case types.BinaryOpKindDiv:
			if ri == 0 {
				return nil, nil
			}
			return li / ri, nil
		default:
			if ri == 0 {
				return nil, nil
			}
			return li % ri, nil
		}
	}

	lf, lok := l.(float64)
	rf, rok := r.(float64)
	if !lok || !rok {
		return nil, fmt.Errorf("%s expects numeric operands, got %T and %T", op, l, r)
	}
	switch op {
	case types.BinaryOpKindAdd:
		return lf + rf, nil
	case types.BinaryOpKindSub:
		return lf - rf, nil
	case types.BinaryOpKindMul:
		return lf * rf, nil
	case types.BinaryOpKindDiv:
		return lf / rf, nil
	default:
		return nil, fmt.Errorf("%s is not defined for float64", op)
	}
}
