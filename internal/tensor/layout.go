package tensor

// Layout describes how a tensor's logical shape maps onto its storage:
// a shape, one stride per dimension (in element units) and a start offset
// into the underlying buffer. View operations (narrow, transpose, permute,
// broadcast) produce new layouts over the same storage.
type Layout struct {
	shape  Shape
	stride []int
	offset int
}

// ContiguousLayout returns the canonical row-major layout for a shape.
func ContiguousLayout(shape Shape) Layout {
	return Layout{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		offset: 0,
	}
}

// ContiguousLayoutWithOffset returns a row-major layout starting at the given
// element offset. Used by reshape-of-contiguous so views keep pointing at
// their slice of a shared buffer.
func ContiguousLayoutWithOffset(shape Shape, offset int) Layout {
	l := ContiguousLayout(shape)
	l.offset = offset
	return l
}

// Shape returns the layout's shape.
func (l *Layout) Shape() Shape {
	return l.shape
}

// Dims returns the dimension sizes.
func (l *Layout) Dims() []int {
	return l.shape
}

// Stride returns the per-dimension strides in element units.
func (l *Layout) Stride() []int {
	return l.stride
}

// StartOffset returns the element offset of the first logical element.
func (l *Layout) StartOffset() int {
	return l.offset
}

// NumElements returns the number of logical elements.
func (l *Layout) NumElements() int {
	return l.shape.NumElements()
}

// IsContiguous reports whether the strides equal the canonical row-major
// strides derived from the shape.
func (l *Layout) IsContiguous() bool {
	expected := 1
	for i := len(l.shape) - 1; i >= 0; i-- {
		if l.shape[i] > 1 && l.stride[i] != expected {
			return false
		}
		expected *= l.shape[i]
	}
	return true
}

// IsFortranContiguous reports whether the strides describe a column-major
// layout.
func (l *Layout) IsFortranContiguous() bool {
	expected := 1
	for i := 0; i < len(l.shape); i++ {
		if l.shape[i] > 1 && l.stride[i] != expected {
			return false
		}
		expected *= l.shape[i]
	}
	return true
}

// Narrow restricts dimension dim to [start, start+length). The storage is
// untouched, only the offset and the dimension size change.
func (l *Layout) Narrow(dim, start, length int) (Layout, error) {
	dims := l.shape
	if dim < 0 || dim >= len(dims) {
		return Layout{}, &DimOutOfRangeError{Op: "narrow", Dim: dim, Shape: dims.Clone()}
	}
	if start < 0 || length < 0 {
		return Layout{}, &InvalidArgumentError{
			Op: "narrow", Msg: "start and length must be non-negative", Shape: dims.Clone(), Dim: dim,
		}
	}
	if start+length > dims[dim] {
		return Layout{}, &InvalidArgumentError{
			Op: "narrow", Msg: "start + length exceeds dimension size", Shape: dims.Clone(), Dim: dim,
		}
	}
	shape := dims.Clone()
	shape[dim] = length
	return Layout{
		shape:  shape,
		stride: append([]int(nil), l.stride...),
		offset: l.offset + start*l.stride[dim],
	}, nil
}

// Transpose swaps two dimensions by exchanging their sizes and strides.
func (l *Layout) Transpose(dim1, dim2 int) (Layout, error) {
	rank := len(l.shape)
	if dim1 < 0 || dim1 >= rank {
		return Layout{}, &DimOutOfRangeError{Op: "transpose", Dim: dim1, Shape: l.shape.Clone()}
	}
	if dim2 < 0 || dim2 >= rank {
		return Layout{}, &DimOutOfRangeError{Op: "transpose", Dim: dim2, Shape: l.shape.Clone()}
	}
	shape := l.shape.Clone()
	stride := append([]int(nil), l.stride...)
	shape[dim1], shape[dim2] = shape[dim2], shape[dim1]
	stride[dim1], stride[dim2] = stride[dim2], stride[dim1]
	return Layout{shape: shape, stride: stride, offset: l.offset}, nil
}

// Permute reorders the dimensions according to perm, which must contain each
// dimension index exactly once.
func (l *Layout) Permute(perm []int) (Layout, error) {
	rank := len(l.shape)
	ok := len(perm) == rank
	if ok {
		seen := make([]bool, rank)
		for _, p := range perm {
			if p < 0 || p >= rank || seen[p] {
				ok = false
				break
			}
			seen[p] = true
		}
	}
	if !ok {
		return Layout{}, &InvalidArgumentError{
			Op: "permute", Msg: "dims are not a permutation", Shape: l.shape.Clone(),
		}
	}
	shape := make(Shape, rank)
	stride := make([]int, rank)
	for i, p := range perm {
		shape[i] = l.shape[p]
		stride[i] = l.stride[p]
	}
	return Layout{shape: shape, stride: stride, offset: l.offset}, nil
}

// BroadcastAs stretches the layout to a larger shape without copying data.
// Aligning from the trailing dimension, each source dimension must equal the
// target dimension or be 1; broadcast dimensions get stride 0 so every index
// along them maps to the same storage element. New leading dimensions may be
// introduced freely.
func (l *Layout) BroadcastAs(shape Shape) (Layout, error) {
	src := l.shape
	if len(shape) < len(src) {
		return Layout{}, &ShapeMismatchError{Op: "broadcast_as", Lhs: src.Clone(), Rhs: shape.Clone()}
	}
	added := len(shape) - len(src)
	stride := make([]int, len(shape))
	for i := range shape {
		if i < added {
			stride[i] = 0
			continue
		}
		sDim := src[i-added]
		switch {
		case sDim == shape[i]:
			stride[i] = l.stride[i-added]
		case sDim == 1:
			stride[i] = 0
		default:
			return Layout{}, &ShapeMismatchError{Op: "broadcast_as", Lhs: src.Clone(), Rhs: shape.Clone()}
		}
	}
	return Layout{shape: shape.Clone(), stride: stride, offset: l.offset}, nil
}
