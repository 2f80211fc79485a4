// Package tensor provides the core tensor types and operations for the Ember ML framework.
package tensor

import "fmt"

// Elem is a constraint for supported tensor element types.
// It uses Go generics to ensure compile-time type safety on the
// slice-facing constructors and accessors.
type Elem interface {
	~uint8 | ~uint32 | ~int64 | ~float32 | ~float64
}

// DType represents runtime type information for tensors.
type DType int

// Supported data types for tensors.
const (
	U8 DType = iota
	U32
	I64
	F32
	F64
)

// Size returns the byte size of the data type.
func (dt DType) Size() int {
	switch dt {
	case U8:
		return 1
	case U32, F32:
		return 4
	case I64, F64:
		return 8
	default:
		panic("unknown data type")
	}
}

// IsFloat returns true for floating point data types.
func (dt DType) IsFloat() bool {
	return dt == F32 || dt == F64
}

// IsInt returns true for integer data types.
func (dt DType) IsInt() bool {
	return dt == U8 || dt == U32 || dt == I64
}

// String returns a human-readable name for the data type.
func (dt DType) String() string {
	switch dt {
	case U8:
		return "u8"
	case U32:
		return "u32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// DTypeOf returns the runtime DType for a generic element type.
func DTypeOf[T Elem]() DType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return U8
	case uint32:
		return U32
	case int64:
		return I64
	case float32:
		return F32
	case float64:
		return F64
	default:
		panic(fmt.Sprintf("unsupported element type %T", zero))
	}
}
