package physical

import (
	"fmt"

	"github.com/GuChangyang/presto/pkg/engine/internal/types"
)

// ExpressionType represents the type of expression in the physical plan.
type ExpressionType uint32

const (
	_ ExpressionType = iota // zero-value is an invalid type

	ExprTypeUnary
	ExprTypeBinary
	ExprTypeLiteral
	ExprTypeColumn
)

// String returns the string representation of the [ExpressionType].
func (t ExpressionType) String() string {
	switch t {
	case ExprTypeUnary:
		return "UnaryExpression"
	case ExprTypeBinary:
		return "BinaryExpression"
	case ExprTypeLiteral:
		return "LiteralExpression"
	case ExprTypeColumn:
		return "ColumnExpression"
	default:
		panic(fmt.Sprintf("unknown expression type %d", t))
	}
}

// Expression is the common interface for all expressions in a physical plan.
type Expression interface {
	fmt.Stringer
	Type() ExpressionType
	isExpr()
}

// UnaryExpr applies a unary operator to a single operand.
type UnaryExpr struct {
	// Left is the expression being operated on
	Left Expression
	// Op is the unary operator to apply to the expression
	Op types.UnaryOpKind
}

func (*UnaryExpr) isExpr() {}

func (e *UnaryExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.Left)
}

// Type returns the type of the [UnaryExpr].
func (*UnaryExpr) Type() ExpressionType {
	return ExprTypeUnary
}

// BinaryExpr applies a binary operator to a pair of operands.
type BinaryExpr struct {
	Left, Right Expression
	Op          types.BinaryOpKind
}

func (*BinaryExpr) isExpr() {}

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s(%s, %s)", e.Op, e.Left, e.Right)
}

// Type returns the type of the [BinaryExpr].
func (*BinaryExpr) Type() ExpressionType {
	return ExprTypeBinary
}

// LiteralExpr is a constant value. Supported value types are bool, int64,
// float64 and string.
type LiteralExpr struct {
	Value any
}

func (*LiteralExpr) isExpr() {}

func (e *LiteralExpr) String() string {
	return fmt.Sprintf("%v", e.Value)
}

// Type returns the type of the [LiteralExpr].
func (*LiteralExpr) Type() ExpressionType {
	return ExprTypeLiteral
}

// NewLiteral creates a new [LiteralExpr] from the given value.
func NewLiteral(value any) *LiteralExpr {
	return &LiteralExpr{Value: value}
}

// ColumnExpr references an input column by name.
type ColumnExpr struct {
	Name string
}

func (*ColumnExpr) isExpr() {}

func (e *ColumnExpr) String() string {
	return e.Name
}

// Type returns the type of the [ColumnExpr].
func (*ColumnExpr) Type() ExpressionType {
	return ExprTypeColumn
}
