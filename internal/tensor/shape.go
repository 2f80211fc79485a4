package tensor

// Shape represents the dimensions of a tensor.
// A rank-0 shape describes a scalar with a single element.
type Shape []int

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// NumElements returns the total number of elements described by the shape.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is non-negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return &InvalidArgumentError{Op: "shape", Msg: "negative dimension", Shape: s.Clone(), Dim: i}
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// stride[i] = product of all dimensions after i, in element units.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}
	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// normalizeDim resolves a possibly-negative dimension index against the shape.
// -1 refers to the last dimension, as in the rest of the ecosystem.
func (s Shape) normalizeDim(dim int, op string) (int, error) {
	d := dim
	if d < 0 {
		d += len(s)
	}
	if d < 0 || d >= len(s) {
		return 0, &DimOutOfRangeError{Op: op, Dim: dim, Shape: s.Clone()}
	}
	return d, nil
}

// normalizeDimPlusOne is like normalizeDim but allows an insertion position
// one past the last dimension, for unsqueeze/stack.
func (s Shape) normalizeDimPlusOne(dim int, op string) (int, error) {
	d := dim
	if d < 0 {
		d += len(s) + 1
	}
	if d < 0 || d > len(s) {
		return 0, &DimOutOfRangeError{Op: op, Dim: dim, Shape: s.Clone()}
	}
	return d, nil
}

// broadcastShapeBinaryOp computes the common broadcast shape of two operands.
//
// Shapes are aligned from the trailing dimension; each pair of dimensions must
// be equal or one of them must be 1. Missing leading dimensions are treated
// as 1.
func broadcastShapeBinaryOp(lhs, rhs Shape, op string) (Shape, error) {
	rank := max(len(lhs), len(rhs))
	out := make(Shape, rank)
	for i := 0; i < rank; i++ {
		lIdx := len(lhs) - 1 - i
		rIdx := len(rhs) - 1 - i
		lDim, rDim := 1, 1
		if lIdx >= 0 {
			lDim = lhs[lIdx]
		}
		if rIdx >= 0 {
			rDim = rhs[rIdx]
		}
		switch {
		case lDim == rDim:
			out[rank-1-i] = lDim
		case lDim == 1:
			out[rank-1-i] = rDim
		case rDim == 1:
			out[rank-1-i] = lDim
		default:
			return nil, &ShapeMismatchError{Op: op, Lhs: lhs.Clone(), Rhs: rhs.Clone()}
		}
	}
	return out, nil
}

// broadcastShapeMatmul broadcasts the batch dimensions of two matmul operands,
// leaving the trailing two matrix dimensions untouched. It returns the
// broadcast shapes of both operands.
func broadcastShapeMatmul(lhs, rhs Shape) (Shape, Shape, error) {
	if len(lhs) < 2 || len(rhs) < 2 {
		return nil, nil, &ShapeMismatchError{Op: "broadcast_matmul", Lhs: lhs.Clone(), Rhs: rhs.Clone()}
	}
	m, lk := lhs[len(lhs)-2], lhs[len(lhs)-1]
	rk, n := rhs[len(rhs)-2], rhs[len(rhs)-1]
	if lk != rk {
		return nil, nil, &ShapeMismatchError{Op: "broadcast_matmul", Lhs: lhs.Clone(), Rhs: rhs.Clone()}
	}
	batch, err := broadcastShapeBinaryOp(lhs[:len(lhs)-2], rhs[:len(rhs)-2], "broadcast_matmul")
	if err != nil {
		return nil, nil, err
	}
	lOut := append(batch.Clone(), m, lk)
	rOut := append(batch.Clone(), rk, n)
	return lOut, rOut, nil
}
