package tensor

import "fmt"

// Typed errors returned by tensor operations. All shape/dtype/device
// violations are reported through these so callers can recover by explicit
// coercion (reshape, cast, move device) with errors.As. Panics are reserved
// for internal invariant violations.

// ShapeMismatchError reports incompatible operand shapes for an operation.
type ShapeMismatchError struct {
	Op       string
	Lhs, Rhs Shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: shape mismatch, lhs %v vs rhs %v", e.Op, e.Lhs, e.Rhs)
}

// ShapeMismatchCatError reports a concatenation operand whose shape disagrees
// with the first operand outside the concatenation dimension.
type ShapeMismatchCatError struct {
	Dim        int
	FirstShape Shape
	N          int
	NthShape   Shape
}

func (e *ShapeMismatchCatError) Error() string {
	return fmt.Sprintf("cat: shape mismatch on dimension %d, operand 0 has shape %v but operand %d has shape %v",
		e.Dim, e.FirstShape, e.N, e.NthShape)
}

// DTypeMismatchError reports operands with different data types.
type DTypeMismatchError struct {
	Op       string
	Lhs, Rhs DType
}

func (e *DTypeMismatchError) Error() string {
	return fmt.Sprintf("%s: dtype mismatch, lhs %s vs rhs %s", e.Op, e.Lhs, e.Rhs)
}

// DeviceMismatchError reports operands living on different devices.
type DeviceMismatchError struct {
	Op       string
	Lhs, Rhs DeviceLocation
}

func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("%s: device mismatch, lhs %s vs rhs %s", e.Op, e.Lhs, e.Rhs)
}

// DimOutOfRangeError reports a dimension index outside a tensor's rank.
type DimOutOfRangeError struct {
	Op    string
	Dim   int
	Shape Shape
}

func (e *DimOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: dimension %d out of range for shape %v", e.Op, e.Dim, e.Shape)
}

// UnexpectedRankError reports a tensor whose rank does not satisfy an
// operation's requirement.
type UnexpectedRankError struct {
	Op       string
	Expected int
	Got      int
	Shape    Shape
}

func (e *UnexpectedRankError) Error() string {
	return fmt.Sprintf("%s: unexpected rank, expected %d, got %d (shape %v)", e.Op, e.Expected, e.Got, e.Shape)
}

// InvalidArgumentError reports a scalar argument violation such as narrow
// bounds or a non-bijective permutation.
type InvalidArgumentError struct {
	Op    string
	Msg   string
	Shape Shape
	Dim   int
}

func (e *InvalidArgumentError) Error() string {
	if e.Shape != nil {
		return fmt.Sprintf("%s: %s (shape %v, dim %d)", e.Op, e.Msg, e.Shape, e.Dim)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// UnsupportedDTypeError reports an operation invoked on a data type its
// kernels do not cover.
type UnsupportedDTypeError struct {
	Op    string
	DType DType
}

func (e *UnsupportedDTypeError) Error() string {
	return fmt.Sprintf("%s: unsupported dtype %s", e.Op, e.DType)
}

// BackendError wraps a device-level allocation or kernel failure.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: backend failure: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// BackwardNotSupportedError reports that no backward rule exists for an
// operation recorded in the graph.
type BackwardNotSupportedError struct {
	Op string
}

func (e *BackwardNotSupportedError) Error() string {
	return fmt.Sprintf("backward: no gradient rule for %s", e.Op)
}
