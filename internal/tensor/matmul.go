package tensor

// Matmul contracts the last dimension of the receiver with the second-to-last
// dimension of rhs: (..., m, k) x (..., k, n) -> (..., m, n). Both operands
// must have the same rank (at least 2) and identical batch dimensions; use
// BroadcastMatmul when the batch dimensions only agree up to broadcasting.
func (t *Tensor) Matmul(rhs *Tensor) (*Tensor, error) {
	if t.dtype != rhs.dtype {
		return nil, &DTypeMismatchError{Op: "matmul", Lhs: t.dtype, Rhs: rhs.dtype}
	}
	if !SameDevice(t.device, rhs.device) {
		return nil, &DeviceMismatchError{Op: "matmul", Lhs: t.device.Location(), Rhs: rhs.device.Location()}
	}
	lDims, rDims := t.Dims(), rhs.Dims()
	if len(lDims) < 2 {
		return nil, &UnexpectedRankError{Op: "matmul", Expected: 2, Got: len(lDims), Shape: t.Shape().Clone()}
	}
	if len(lDims) != len(rDims) {
		return nil, &ShapeMismatchError{Op: "matmul", Lhs: t.Shape().Clone(), Rhs: rhs.Shape().Clone()}
	}
	m := lDims[len(lDims)-2]
	k := lDims[len(lDims)-1]
	k2 := rDims[len(rDims)-2]
	n := rDims[len(rDims)-1]
	b := 1
	for i := 0; i < len(lDims)-2; i++ {
		if lDims[i] != rDims[i] {
			return nil, &ShapeMismatchError{Op: "matmul", Lhs: t.Shape().Clone(), Rhs: rhs.Shape().Clone()}
		}
		b *= lDims[i]
	}
	if k != k2 {
		return nil, &ShapeMismatchError{Op: "matmul", Lhs: t.Shape().Clone(), Rhs: rhs.Shape().Clone()}
	}
	var out Storage
	err := withReadStorage2(t, rhs, func(sl, sr Storage) error {
		var err error
		out, err = sl.Matmul(sr, b, m, n, k, &t.layout, &rhs.layout)
		return err
	})
	if err != nil {
		return nil, err
	}
	shape := make(Shape, 0, len(lDims))
	shape = append(shape, lDims[:len(lDims)-2]...)
	shape = append(shape, m, n)
	op := opNew2(t, rhs, func(l, r *Tensor) Op { return &OpMatmul{Lhs: l, Rhs: r} })
	return fromStorage(out, shape, op, false, t.device), nil
}

// BroadcastMatmul broadcasts the batch dimensions of both operands to their
// common shape and multiplies. Broadcast views are materialized with a copy
// first since the matmul kernels need addressable batches.
func (t *Tensor) BroadcastMatmul(rhs *Tensor) (*Tensor, error) {
	lShape, rShape, err := broadcastShapeMatmul(t.Shape(), rhs.Shape())
	if err != nil {
		return nil, err
	}
	lhs := t
	if !lShape.Equal(lhs.Shape()) {
		if lhs, err = lhs.BroadcastAs(lShape); err != nil {
			return nil, err
		}
		if lhs, err = lhs.Contiguous(); err != nil {
			return nil, err
		}
	}
	if !rShape.Equal(rhs.Shape()) {
		if rhs, err = rhs.BroadcastAs(rShape); err != nil {
			return nil, err
		}
		if rhs, err = rhs.Contiguous(); err != nil {
			return nil, err
		}
	}
	return lhs.Matmul(rhs)
}
