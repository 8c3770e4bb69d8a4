package types

import "fmt"

// UnaryOpKind denotes the kind of unary operation to apply to an expression.
type UnaryOpKind int

// Recognized values of [UnaryOpKind].
const (
	// UnaryOpKindInvalid indicates an invalid unary operation.
	UnaryOpKindInvalid UnaryOpKind = iota

	UnaryOpKindNot // Logical NOT operation (!).
	UnaryOpKindNeg // Arithmetic negation (-).
)

var unaryOpKindStrings = map[UnaryOpKind]string{
	UnaryOpKindInvalid: "invalid",

	UnaryOpKindNot: "NOT",
	UnaryOpKindNeg: "NEG",
}

// String returns the string representation of the UnaryOpKind.
func (k UnaryOpKind) String() string {
	if s, ok := unaryOpKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("UnaryOpKind(%d)", k)
}

// BinaryOpKind denotes the kind of binary operation to apply to a pair of
// expressions.
type BinaryOpKind int

// Recognized values of [BinaryOpKind].
const (
	// BinaryOpKindInvalid indicates an invalid binary operation.
	BinaryOpKindInvalid BinaryOpKind = iota

	BinaryOpKindEq  // Equality comparison (==).
	BinaryOpKindNeq // Inequality comparison (!=).
	BinaryOpKindGt  // Greater than comparison (>).
	BinaryOpKindGte // Greater than or equal comparison (>=).
	BinaryOpKindLt  // Less than comparison (<).
	BinaryOpKindLte // Less than or equal comparison (<=).
	BinaryOpKindAnd // Logical AND operation (&&).
	BinaryOpKindOr  // Logical OR operation (||).

	BinaryOpKindAdd // Addition operation (+).
	BinaryOpKindSub // Subtraction operation (-).
	BinaryOpKindMul // Multiplication operation (*).
	BinaryOpKindDiv // Division operation (/).
	BinaryOpKindMod // Modulo operation (%).
)

var binaryOpKindStrings = map[BinaryOpKind]string{
	BinaryOpKindInvalid: "invalid",

	BinaryOpKindEq:  "EQ",
	BinaryOpKindNeq: "NEQ",
	BinaryOpKindGt:  "GT",
	BinaryOpKindGte: "GTE",
	BinaryOpKindLt:  "LT",
	BinaryOpKindLte: "LTE",
	BinaryOpKindAnd: "AND",
	BinaryOpKindOr:  "OR",

	BinaryOpKindAdd: "ADD",
	BinaryOpKindSub: "SUB",
	BinaryOpKindMul: "MUL",
	BinaryOpKindDiv: "DIV",
	BinaryOpKindMod: "MOD",
}

// String returns a human-readable representation of the binary operation kind.
func (k BinaryOpKind) String() string {
	if s, ok := binaryOpKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("BinaryOpKind(%d)", k)
}

// AggregateOpKind denotes the aggregate function computed by an aggregation
// operator.
type AggregateOpKind int

// Recognized values of [AggregateOpKind].
const (
	// AggregateOpKindInvalid indicates an invalid aggregate operation.
	AggregateOpKindInvalid AggregateOpKind = iota

	AggregateOpKindCount // Row count.
	AggregateOpKindSum   // Sum of an int64 column.
	AggregateOpKindMin   // Minimum of an int64 column.
	AggregateOpKindMax   // Maximum of an int64 column.
)

var aggregateOpKindStrings = map[AggregateOpKind]string{
	AggregateOpKindInvalid: "invalid",

	AggregateOpKindCount: "COUNT",
	AggregateOpKindSum:   "SUM",
	AggregateOpKindMin:   "MIN",
	AggregateOpKindMax:   "MAX",
}

// String returns a human-readable representation of the aggregate operation
// kind.
func (k AggregateOpKind) String() string {
	if s, ok := aggregateOpKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("AggregateOpKind(%d)", k)
}
