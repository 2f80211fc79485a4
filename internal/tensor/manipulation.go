package tensor

// Shape manipulation. Everything here that can be expressed as a relayout of
// the existing storage is a zero-copy view; only reshape of non-contiguous
// data, cat and pad allocate.

// Narrow restricts dimension dim to [start, start+length). The result is a
// view; narrowing to the full range returns the same handle.
func (t *Tensor) Narrow(dim, start, length int) (*Tensor, error) {
	d, err := t.Shape().normalizeDim(dim, "narrow")
	if err != nil {
		return nil, err
	}
	if start == 0 && length == t.Shape()[d] {
		return t, nil
	}
	layout, err := t.layout.Narrow(d, start, length)
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op {
		return &OpNarrow{Arg: arg, Dim: d, Start: start, Len: length}
	})
	return t.view(layout, op), nil
}

// Chunk splits the tensor into n pieces along dim. When the dimension does
// not divide evenly the leading chunks are one element larger.
func (t *Tensor) Chunk(n, dim int) ([]*Tensor, error) {
	d, err := t.Shape().normalizeDim(dim, "chunk")
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, &InvalidArgumentError{Op: "chunk", Msg: "chunk count must be positive", Shape: t.Shape().Clone(), Dim: d}
	}
	size := t.Shape()[d]
	if size < n {
		out := make([]*Tensor, 0, size)
		for i := 0; i < size; i++ {
			c, err := t.Narrow(d, i, 1)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	}
	base := size / n
	extra := size % n
	out := make([]*Tensor, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		length := base
		if i < extra {
			length++
		}
		c, err := t.Narrow(d, start, length)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		start += length
	}
	return out, nil
}

// Transpose swaps two dimensions as a zero-copy view.
func (t *Tensor) Transpose(dim1, dim2 int) (*Tensor, error) {
	d1, err := t.Shape().normalizeDim(dim1, "transpose")
	if err != nil {
		return nil, err
	}
	d2, err := t.Shape().normalizeDim(dim2, "transpose")
	if err != nil {
		return nil, err
	}
	if d1 == d2 {
		return t, nil
	}
	layout, err := t.layout.Transpose(d1, d2)
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpTranspose{Arg: arg, Dim1: d1, Dim2: d2} })
	return t.view(layout, op), nil
}

// T swaps the last two dimensions; the tensor must have rank at least 2.
func (t *Tensor) T() (*Tensor, error) {
	if t.Rank() < 2 {
		return nil, &UnexpectedRankError{Op: "t", Expected: 2, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	return t.Transpose(t.Rank()-2, t.Rank()-1)
}

// Permute reorders the dimensions according to dims, which must contain each
// dimension index exactly once. The result is a zero-copy view.
func (t *Tensor) Permute(dims ...int) (*Tensor, error) {
	perm := make([]int, len(dims))
	for i, dim := range dims {
		d, err := t.Shape().normalizeDim(dim, "permute")
		if err != nil {
			return nil, err
		}
		perm[i] = d
	}
	layout, err := t.layout.Permute(perm)
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpPermute{Arg: arg, Dims: perm} })
	return t.view(layout, op), nil
}

// Reshape reinterprets the tensor under a new shape with the same element
// count. Contiguous tensors are reshaped as a view sharing storage;
// non-contiguous tensors are copied into a fresh row-major buffer first.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != t.NumElements() {
		return nil, &ShapeMismatchError{Op: "reshape", Lhs: t.Shape().Clone(), Rhs: shape.Clone()}
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpReshape{Arg: arg} })
	if t.IsContiguous() {
		return t.view(ContiguousLayoutWithOffset(shape.Clone(), t.layout.StartOffset()), op), nil
	}
	dst, err := t.device.Zeros(shape, t.dtype)
	if err != nil {
		return nil, &BackendError{Op: "reshape", Err: err}
	}
	if err := t.withReadStorage(func(s Storage) error {
		return s.CopyStrided(dst, 0, &t.layout)
	}); err != nil {
		return nil, err
	}
	return fromStorage(dst, shape.Clone(), op, false, t.device), nil
}

// Squeeze removes dimension dim when its size is one; a squeeze of any other
// dimension returns the same handle unchanged.
func (t *Tensor) Squeeze(dim int) (*Tensor, error) {
	d, err := t.Shape().normalizeDim(dim, "squeeze")
	if err != nil {
		return nil, err
	}
	if t.Shape()[d] != 1 {
		return t, nil
	}
	shape := make(Shape, 0, t.Rank()-1)
	stride := make([]int, 0, t.Rank()-1)
	for i := range t.layout.shape {
		if i == d {
			continue
		}
		shape = append(shape, t.layout.shape[i])
		stride = append(stride, t.layout.stride[i])
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpReshape{Arg: arg} })
	return t.view(Layout{shape: shape, stride: stride, offset: t.layout.offset}, op), nil
}

// Unsqueeze inserts a size-one dimension at dim, which may be one past the
// last dimension.
func (t *Tensor) Unsqueeze(dim int) (*Tensor, error) {
	d, err := t.Shape().normalizeDimPlusOne(dim, "unsqueeze")
	if err != nil {
		return nil, err
	}
	shape := make(Shape, 0, t.Rank()+1)
	stride := make([]int, 0, t.Rank()+1)
	shape = append(shape, t.layout.shape[:d]...)
	stride = append(stride, t.layout.stride[:d]...)
	// The stride of a size-one dimension is never walked; the canonical value
	// keeps contiguous layouts canonical.
	if d < t.Rank() {
		shape = append(shape, 1)
		stride = append(stride, t.layout.stride[d]*t.layout.shape[d])
		shape = append(shape, t.layout.shape[d:]...)
		stride = append(stride, t.layout.stride[d:]...)
	} else {
		shape = append(shape, 1)
		stride = append(stride, 1)
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpReshape{Arg: arg} })
	return t.view(Layout{shape: shape, stride: stride, offset: t.layout.offset}, op), nil
}

// BroadcastAs stretches the tensor to a larger shape as a zero-copy view with
// stride 0 on the broadcast dimensions. Writes through such a view fan out to
// every logical position sharing the element.
func (t *Tensor) BroadcastAs(shape Shape) (*Tensor, error) {
	layout, err := t.layout.BroadcastAs(shape)
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpBroadcast{Arg: arg} })
	return t.view(layout, op), nil
}

// Expand is an alias for BroadcastAs.
func (t *Tensor) Expand(shape Shape) (*Tensor, error) {
	return t.BroadcastAs(shape)
}

// BroadcastLeft prepends the given dimensions and broadcasts into them.
func (t *Tensor) BroadcastLeft(leftDims ...int) (*Tensor, error) {
	shape := make(Shape, 0, len(leftDims)+t.Rank())
	shape = append(shape, leftDims...)
	shape = append(shape, t.Shape()...)
	return t.BroadcastAs(shape)
}

// Get extracts row i along the first dimension, dropping that dimension.
func (t *Tensor) Get(i int) (*Tensor, error) {
	if t.Rank() < 1 {
		return nil, &UnexpectedRankError{Op: "get", Expected: 1, Got: 0, Shape: t.Shape().Clone()}
	}
	row, err := t.Narrow(0, i, 1)
	if err != nil {
		return nil, err
	}
	return row.Squeeze(0)
}

// Flatten merges the dimensions from start through end (inclusive) into one.
func (t *Tensor) Flatten(start, end int) (*Tensor, error) {
	if t.Rank() == 0 {
		return t.Reshape(Shape{1})
	}
	s, err := t.Shape().normalizeDim(start, "flatten")
	if err != nil {
		return nil, err
	}
	e, err := t.Shape().normalizeDim(end, "flatten")
	if err != nil {
		return nil, err
	}
	if s > e {
		return nil, &InvalidArgumentError{
			Op: "flatten", Msg: "start dimension after end dimension", Shape: t.Shape().Clone(), Dim: start,
		}
	}
	merged := 1
	for i := s; i <= e; i++ {
		merged *= t.Shape()[i]
	}
	shape := make(Shape, 0, t.Rank()-(e-s))
	shape = append(shape, t.Shape()[:s]...)
	shape = append(shape, merged)
	shape = append(shape, t.Shape()[e+1:]...)
	return t.Reshape(shape)
}

// FlattenAll merges every dimension into one.
func (t *Tensor) FlattenAll() (*Tensor, error) {
	return t.Reshape(Shape{t.NumElements()})
}

// FlattenFrom merges dimension dim through the last dimension.
func (t *Tensor) FlattenFrom(dim int) (*Tensor, error) {
	return t.Flatten(dim, -1)
}

// FlattenTo merges the first dimension through dim.
func (t *Tensor) FlattenTo(dim int) (*Tensor, error) {
	return t.Flatten(0, dim)
}

// Cat concatenates tensors along dim. Axis 0 is the primitive; other axes
// transpose the operands, concatenate on axis 0 and transpose back.
func Cat(tensors []*Tensor, dim int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, &InvalidArgumentError{Op: "cat", Msg: "empty tensor list"}
	}
	if len(tensors) == 1 {
		return tensors[0], nil
	}
	d, err := tensors[0].Shape().normalizeDim(dim, "cat")
	if err != nil {
		return nil, err
	}
	if d == 0 {
		return cat0(tensors)
	}
	swapped := make([]*Tensor, len(tensors))
	for i, arg := range tensors {
		if swapped[i], err = arg.Transpose(0, d); err != nil {
			return nil, err
		}
	}
	out, err := cat0(swapped)
	if err != nil {
		return nil, err
	}
	return out.Transpose(0, d)
}

func cat0(tensors []*Tensor) (*Tensor, error) {
	first := tensors[0]
	catDim := 0
	shape := first.Shape().Clone()
	for n, arg := range tensors[1:] {
		if arg.dtype != first.dtype {
			return nil, &DTypeMismatchError{Op: "cat", Lhs: first.dtype, Rhs: arg.dtype}
		}
		if !SameDevice(arg.device, first.device) {
			return nil, &DeviceMismatchError{Op: "cat", Lhs: first.device.Location(), Rhs: arg.device.Location()}
		}
		if arg.Rank() != first.Rank() {
			return nil, &UnexpectedRankError{Op: "cat", Expected: first.Rank(), Got: arg.Rank(), Shape: arg.Shape().Clone()}
		}
		for i := range arg.Shape() {
			if i != 0 && arg.Shape()[i] != first.Shape()[i] {
				return nil, &ShapeMismatchCatError{
					Dim:        i,
					FirstShape: first.Shape().Clone(),
					N:          n + 1,
					NthShape:   arg.Shape().Clone(),
				}
			}
		}
		catDim += arg.Shape()[0]
	}
	shape[0] += catDim
	dst, err := first.device.Zeros(shape, first.dtype)
	if err != nil {
		return nil, &BackendError{Op: "cat", Err: err}
	}
	offset := 0
	for _, arg := range tensors {
		if err := arg.withReadStorage(func(s Storage) error {
			return s.CopyStrided(dst, offset, &arg.layout)
		}); err != nil {
			return nil, err
		}
		offset += arg.NumElements()
	}
	op := opNewN(tensors, func(args []*Tensor) Op { return &OpCat{Args: args, Dim: 0} })
	return fromStorage(dst, shape, op, false, first.device), nil
}

// Stack concatenates tensors along a fresh dimension inserted at dim.
func Stack(tensors []*Tensor, dim int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, &InvalidArgumentError{Op: "stack", Msg: "empty tensor list"}
	}
	d, err := tensors[0].Shape().normalizeDimPlusOne(dim, "stack")
	if err != nil {
		return nil, err
	}
	lifted := make([]*Tensor, len(tensors))
	for i, arg := range tensors {
		if lifted[i], err = arg.Unsqueeze(d); err != nil {
			return nil, err
		}
	}
	return Cat(lifted, d)
}

// PadWithZeros pads dimension dim with left zeros before and right zeros
// after the existing data.
func (t *Tensor) PadWithZeros(dim, left, right int) (*Tensor, error) {
	if left < 0 || right < 0 {
		return nil, &InvalidArgumentError{Op: "pad_with_zeros", Msg: "negative pad size", Shape: t.Shape().Clone(), Dim: dim}
	}
	if left == 0 && right == 0 {
		return t, nil
	}
	d, err := t.Shape().normalizeDim(dim, "pad_with_zeros")
	if err != nil {
		return nil, err
	}
	parts := make([]*Tensor, 0, 3)
	if left > 0 {
		shape := t.Shape().Clone()
		shape[d] = left
		pad, err := Zeros(shape, t.dtype, t.device)
		if err != nil {
			return nil, err
		}
		parts = append(parts, pad)
	}
	parts = append(parts, t)
	if right > 0 {
		shape := t.Shape().Clone()
		shape[d] = right
		pad, err := Zeros(shape, t.dtype, t.device)
		if err != nil {
			return nil, err
		}
		parts = append(parts, pad)
	}
	return Cat(parts, d)
}

// Repeat tiles the tensor along each dimension according to repeats. When
// repeats is longer than the rank, size-one dimensions are prepended first.
func (t *Tensor) Repeat(repeats ...int) (*Tensor, error) {
	out := t
	var err error
	for out.Rank() < len(repeats) {
		if out, err = out.Unsqueeze(0); err != nil {
			return nil, err
		}
	}
	for idx, n := range repeats {
		if n < 0 {
			return nil, &InvalidArgumentError{Op: "repeat", Msg: "negative repeat count", Shape: t.Shape().Clone(), Dim: idx}
		}
		if n == 1 {
			continue
		}
		copies := make([]*Tensor, n)
		for i := range copies {
			copies[i] = out
		}
		if out, err = Cat(copies, idx); err != nil {
			return nil, err
		}
	}
	return out, nil
}
