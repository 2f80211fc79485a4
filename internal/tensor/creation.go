package tensor

// Constructors. Every constructor allocates through the device provider and
// wraps the resulting storage with contiguous strides and no graph edge,
// except the Var variants which mark the result as a trainable variable.

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, dtype DType, device Device) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	s, err := device.Zeros(shape, dtype)
	if err != nil {
		return nil, &BackendError{Op: "zeros", Err: err}
	}
	return fromStorage(s, shape.Clone(), nil, false, device), nil
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DType, device Device) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	s, err := device.Ones(shape, dtype)
	if err != nil {
		return nil, &BackendError{Op: "ones", Err: err}
	}
	return fromStorage(s, shape.Clone(), nil, false, device), nil
}

// ZerosLike creates a zero-filled tensor with this tensor's shape, dtype and
// device.
func (t *Tensor) ZerosLike() (*Tensor, error) {
	return Zeros(t.Shape().Clone(), t.dtype, t.device)
}

// OnesLike creates a one-filled tensor with this tensor's shape, dtype and
// device.
func (t *Tensor) OnesLike() (*Tensor, error) {
	return Ones(t.Shape().Clone(), t.dtype, t.device)
}

// Rand creates a tensor with uniform samples from [lo, up). Float dtypes
// only.
func Rand(shape Shape, dtype DType, device Device, lo, up float64) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	s, err := device.RandUniform(shape, dtype, lo, up)
	if err != nil {
		return nil, err
	}
	return fromStorage(s, shape.Clone(), nil, false, device), nil
}

// RandLike creates a uniform-random tensor shaped like this one.
func (t *Tensor) RandLike(lo, up float64) (*Tensor, error) {
	return Rand(t.Shape().Clone(), t.dtype, t.device, lo, up)
}

// Randn creates a tensor with normal samples. Float dtypes only.
func Randn(shape Shape, dtype DType, device Device, mean, std float64) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	s, err := device.RandNormal(shape, dtype, mean, std)
	if err != nil {
		return nil, err
	}
	return fromStorage(s, shape.Clone(), nil, false, device), nil
}

// RandnLike creates a normal-random tensor shaped like this one.
func (t *Tensor) RandnLike(mean, std float64) (*Tensor, error) {
	return Randn(t.Shape().Clone(), t.dtype, t.device, mean, std)
}

// FromSlice creates a tensor by copying a Go slice; the shape's element count
// must match the slice length.
func FromSlice[T Elem](data []T, shape Shape, device Device) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, &InvalidArgumentError{
			Op:    "from_slice",
			Msg:   "shape element count does not match slice length",
			Shape: shape.Clone(),
		}
	}
	s, err := device.FromCPU(BufferFromSlice(data))
	if err != nil {
		return nil, &BackendError{Op: "from_slice", Err: err}
	}
	return fromStorage(s, shape.Clone(), nil, false, device), nil
}

// Full creates a tensor filled with a single value.
func Full[T Elem](shape Shape, value T, device Device) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	data := make([]T, shape.NumElements())
	for i := range data {
		data[i] = value
	}
	return FromSlice(data, shape, device)
}

// Arange creates a 1D tensor with values from start to end (exclusive) in
// steps of one.
func Arange[T Elem](start, end T, device Device) (*Tensor, error) {
	var one T = 1
	return ArangeStep(start, end, one, device)
}

// ArangeStep creates a 1D tensor with values from start to end (exclusive)
// in the given step increments.
func ArangeStep[T Elem](start, end, step T, device Device) (*Tensor, error) {
	if step == 0 {
		return nil, &InvalidArgumentError{Op: "arange", Msg: "step cannot be zero"}
	}
	var data []T
	if step > 0 {
		for v := start; v < end; v += step {
			data = append(data, v)
		}
	} else {
		for v := start; v > end; v += step {
			data = append(data, v)
		}
	}
	return FromSlice(data, Shape{len(data)}, device)
}

// Var creates a trainable variable from the values of an existing tensor.
// The storage is always copied so the variable never aliases its source.
func Var(t *Tensor) (*Tensor, error) {
	shape := t.Shape().Clone()
	dst, err := t.device.Zeros(shape, t.dtype)
	if err != nil {
		return nil, &BackendError{Op: "var", Err: err}
	}
	if err := t.withReadStorage(func(s Storage) error {
		return s.CopyStrided(dst, 0, &t.layout)
	}); err != nil {
		return nil, err
	}
	return fromStorage(dst, shape, nil, true, t.device), nil
}

// VarFromSlice creates a trainable variable directly from a Go slice.
func VarFromSlice[T Elem](data []T, shape Shape, device Device) (*Tensor, error) {
	t, err := FromSlice(data, shape, device)
	if err != nil {
		return nil, err
	}
	t.isVariable = true
	return t, nil
}
