package tensor

// Custom ops let callers add operations with full graph participation. An
// implementation produces a fresh storage plus the output shape from the
// operand storages and layouts; implementing the matching backward interface
// makes the op differentiable.

// CustomOp1 is a user-supplied single-operand operation.
type CustomOp1 interface {
	Name() string
	Forward(s Storage, l *Layout) (Storage, Shape, error)
}

// CustomOp2 is a user-supplied two-operand operation.
type CustomOp2 interface {
	Name() string
	Forward(s1 Storage, l1 *Layout, s2 Storage, l2 *Layout) (Storage, Shape, error)
}

// CustomOp3 is a user-supplied three-operand operation.
type CustomOp3 interface {
	Name() string
	Forward(s1 Storage, l1 *Layout, s2 Storage, l2 *Layout, s3 Storage, l3 *Layout) (Storage, Shape, error)
}

// CustomOp1Backward is implemented by differentiable single-operand custom
// ops. Backward receives the operand, the forward result and the incoming
// gradient, and returns the operand gradient (nil for no gradient).
type CustomOp1Backward interface {
	CustomOp1
	Backward(arg, res, grad *Tensor) (*Tensor, error)
}

// CustomOp2Backward is implemented by differentiable two-operand custom ops.
type CustomOp2Backward interface {
	CustomOp2
	Backward(arg1, arg2, res, grad *Tensor) (*Tensor, *Tensor, error)
}

// CustomOp3Backward is implemented by differentiable three-operand custom
// ops.
type CustomOp3Backward interface {
	CustomOp3
	Backward(arg1, arg2, arg3, res, grad *Tensor) (*Tensor, *Tensor, *Tensor, error)
}

// ApplyOp1 runs a custom single-operand op on the tensor.
func (t *Tensor) ApplyOp1(c CustomOp1) (*Tensor, error) {
	var out Storage
	var shape Shape
	err := t.withReadStorage(func(s Storage) error {
		var err error
		out, shape, err = c.Forward(s, &t.layout)
		return err
	})
	if err != nil {
		return nil, &BackendError{Op: c.Name(), Err: err}
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpCustom1{Arg: arg, C: c} })
	return fromStorage(out, shape.Clone(), op, false, t.device), nil
}

// ApplyOp2 runs a custom two-operand op.
func (t *Tensor) ApplyOp2(rhs *Tensor, c CustomOp2) (*Tensor, error) {
	if !SameDevice(t.device, rhs.device) {
		return nil, &DeviceMismatchError{Op: c.Name(), Lhs: t.device.Location(), Rhs: rhs.device.Location()}
	}
	var out Storage
	var shape Shape
	err := withReadStorage2(t, rhs, func(s1, s2 Storage) error {
		var err error
		out, shape, err = c.Forward(s1, &t.layout, s2, &rhs.layout)
		return err
	})
	if err != nil {
		return nil, &BackendError{Op: c.Name(), Err: err}
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	op := opNew2(t, rhs, func(a, b *Tensor) Op { return &OpCustom2{Arg1: a, Arg2: b, C: c} })
	return fromStorage(out, shape.Clone(), op, false, t.device), nil
}

// ApplyOp3 runs a custom three-operand op.
func (t *Tensor) ApplyOp3(t2, t3 *Tensor, c CustomOp3) (*Tensor, error) {
	if !SameDevice(t.device, t2.device) {
		return nil, &DeviceMismatchError{Op: c.Name(), Lhs: t.device.Location(), Rhs: t2.device.Location()}
	}
	if !SameDevice(t.device, t3.device) {
		return nil, &DeviceMismatchError{Op: c.Name(), Lhs: t.device.Location(), Rhs: t3.device.Location()}
	}
	var out Storage
	var shape Shape
	err := withReadStorage3(t, t2, t3, func(s1, s2, s3 Storage) error {
		var err error
		out, shape, err = c.Forward(s1, &t.layout, s2, &t2.layout, s3, &t3.layout)
		return err
	})
	if err != nil {
		return nil, &BackendError{Op: c.Name(), Err: err}
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	op := opNew3(t, t2, t3, func(a, b, cc *Tensor) Op { return &OpCustom3{Arg1: a, Arg2: b, Arg3: cc, C: c} })
	return fromStorage(out, shape.Clone(), op, false, t.device), nil
}
