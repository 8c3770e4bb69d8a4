package executor

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cespare/xxhash/v2"
)

// arrowValue extracts the value at row i of an array as a Go value. Null
// values are returned as nil, list values as []any.
func arrowValue(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch col := arr.(type) {
	case *array.Boolean:
		return col.Value(i), nil
	case *array.Int64:
		return col.Value(i), nil
	case *array.Float64:
		return col.Value(i), nil
	case *array.String:
		return col.Value(i), nil
	case *array.Timestamp:
		return int64(col.Value(i)), nil
	case *array.List:
		start, end := col.ValueOffsets(i)
		values := col.ListValues()
		elems := make([]any, 0, end-start)
		for j := start; j < end; j++ {
			v, err := arrowValue(values, int(j))
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
		return elems, nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", arr.DataType())
	}
}

// appendValue appends a Go value produced by [arrowValue] to a builder.
func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.BooleanBuilder:
		val, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		b.Append(val)
	case *array.Int64Builder:
		val, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected int64, got %T", v)
		}
		b.Append(val)
	case *array.Float64Builder:
		val, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected float64, got %T", v)
		}
		b.Append(val)
	case *array.StringBuilder:
		val, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		b.Append(val)
	case *array.TimestampBuilder:
		val, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected int64 timestamp, got %T", v)
		}
		b.Append(arrow.Timestamp(val))
	case *array.ListBuilder:
		elems, ok := v.([]any)
		if !ok {
			return fmt.Errorf("expected list, got %T", v)
		}
		b.Append(true)
		for _, elem := range elems {
			if err := appendValue(b.ValueBuilder(), elem); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported builder type %T", b)
	}
	return nil
}

// batchRows converts a record into row-major Go values.
func batchRows(batch arrow.Record) ([][]any, error) {
	rows := make([][]any, batch.NumRows())
	for i := range rows {
		rows[i] = make([]any, batch.NumCols())
	}
	for c := 0; c < int(batch.NumCols()); c++ {
		col := batch.Column(c)
		for r := 0; r < int(batch.NumRows()); r++ {
			v, err := arrowValue(col, r)
			if err != nil {
				return nil, err
			}
			rows[r][c] = v
		}
	}
	return rows, nil
}

// rowsToRecord builds a record of the given schema from row-major Go values.
func rowsToRecord(schema *arrow.Schema, rows [][]any) (arrow.Record, error) {
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()

	for _, row := range rows {
		if len(row) != len(schema.Fields()) {
			return nil, fmt.Errorf("row has %d values, schema has %d fields", len(row), len(schema.Fields()))
		}
		for c, v := range row {
			if err := appendValue(builder.Field(c), v); err != nil {
				return nil, fmt.Errorf("column %q: %w", schema.Field(c).Name, err)
			}
		}
	}
	return builder.NewRecord(), nil
}

// compareValues orders two Go values of the same type. Nulls sort first.
func compareValues(a, b any) (int, error) {
	if a == nil && b == nil {
		return 0, nil
	}
	if a == nil {
		return -1, nil
	}
	if b == nil {
		return 1, nil
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		if !ok {
			break
		}
		switch {
		case av == bv:
			return 0, nil
		case bv:
			return -1, nil
		default:
			return 1, nil
		}
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1, nil
			case av > bv:
				return 1, nil
			default:
				return 0, nil
			}
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1, nil
			case av > bv:
				return 1, nil
			default:
				return 0, nil
			}
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

// hashValue hashes a Go value for partitioning. Rows with equal values always
// land in the same partition.
func hashValue(v any) uint64 {
	switch v := v.(type) {
	case nil:
		return 0
	case bool:
		if v {
			return xxhash.Sum64([]byte{1})
		}
		return xxhash.Sum64([]byte{0})
	case int64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		return xxhash.Sum64(buf[:])
	case float64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		return xxhash.Sum64(buf[:])
	case string:
		return xxhash.Sum64String(v)
	default:
		return xxhash.Sum64String(fmt.Sprintf("%v", v))
	}
}

// columnIndex returns the index of a named column in a schema.
func columnIndex(schema *arrow.Schema, name string) (int, error) {
	indices := schema.FieldIndices(name)
	if len(indices) == 0 {
		return 0, fmt.Errorf("column %q not found in schema", name)
	}
	return indices[0], nil
}
