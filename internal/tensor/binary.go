package tensor

// The binary operation family follows one shared pattern: exact shape check,
// read locks on both storages, backend kernel, graph edge. The broadcast_*
// variants compute the common broadcast shape first and insert zero-copy
// broadcast views on whichever operand needs one before delegating to the
// exact-shape variant.

func (t *Tensor) binaryOp(rhs *Tensor, kind BinaryOpKind) (*Tensor, error) {
	shape, err := t.sameShapeBinaryOp(rhs, kind.Name())
	if err != nil {
		return nil, err
	}
	var out Storage
	err = withReadStorage2(t, rhs, func(sl, sr Storage) error {
		var err error
		out, err = sl.Binary(kind, sr, &t.layout, &rhs.layout)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew2(t, rhs, func(l, r *Tensor) Op { return &OpBinary{Lhs: l, Rhs: r, Kind: kind} })
	return fromStorage(out, shape.Clone(), op, false, t.device), nil
}

func (t *Tensor) broadcastBinaryOp(rhs *Tensor, kind BinaryOpKind) (*Tensor, error) {
	name := "broadcast_" + kind.Name()
	shape, err := broadcastShapeBinaryOp(t.Shape(), rhs.Shape(), name)
	if err != nil {
		return nil, err
	}
	lhs := t
	if !shape.Equal(lhs.Shape()) {
		if lhs, err = lhs.BroadcastAs(shape); err != nil {
			return nil, err
		}
	}
	if !shape.Equal(rhs.Shape()) {
		if rhs, err = rhs.BroadcastAs(shape); err != nil {
			return nil, err
		}
	}
	return lhs.binaryOp(rhs, kind)
}

// Add performs elementwise addition; shapes must match exactly.
func (t *Tensor) Add(rhs *Tensor) (*Tensor, error) { return t.binaryOp(rhs, BinaryAdd) }

// Sub performs elementwise subtraction; shapes must match exactly.
func (t *Tensor) Sub(rhs *Tensor) (*Tensor, error) { return t.binaryOp(rhs, BinarySub) }

// Mul performs elementwise multiplication; shapes must match exactly.
func (t *Tensor) Mul(rhs *Tensor) (*Tensor, error) { return t.binaryOp(rhs, BinaryMul) }

// Div performs elementwise division; shapes must match exactly.
func (t *Tensor) Div(rhs *Tensor) (*Tensor, error) { return t.binaryOp(rhs, BinaryDiv) }

// BroadcastAdd adds with broadcasting over the common shape.
func (t *Tensor) BroadcastAdd(rhs *Tensor) (*Tensor, error) {
	return t.broadcastBinaryOp(rhs, BinaryAdd)
}

// BroadcastSub subtracts with broadcasting over the common shape.
func (t *Tensor) BroadcastSub(rhs *Tensor) (*Tensor, error) {
	return t.broadcastBinaryOp(rhs, BinarySub)
}

// BroadcastMul multiplies with broadcasting over the common shape.
func (t *Tensor) BroadcastMul(rhs *Tensor) (*Tensor, error) {
	return t.broadcastBinaryOp(rhs, BinaryMul)
}

// BroadcastDiv divides with broadcasting over the common shape.
func (t *Tensor) BroadcastDiv(rhs *Tensor) (*Tensor, error) {
	return t.broadcastBinaryOp(rhs, BinaryDiv)
}

// Cmp compares elementwise and returns a U8 tensor holding 1 where the
// comparison holds.
func (t *Tensor) Cmp(rhs *Tensor, kind CmpOpKind) (*Tensor, error) {
	shape, err := t.sameShapeBinaryOp(rhs, kind.Name())
	if err != nil {
		return nil, err
	}
	var out Storage
	err = withReadStorage2(t, rhs, func(sl, sr Storage) error {
		var err error
		out, err = sl.Cmp(kind, sr, &t.layout, &rhs.layout)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew2(t, rhs, func(l, r *Tensor) Op { return &OpCmp{Lhs: l, Rhs: r, Kind: kind} })
	return fromStorage(out, shape.Clone(), op, false, t.device), nil
}

// Eq returns 1 where the elements are equal.
func (t *Tensor) Eq(rhs *Tensor) (*Tensor, error) { return t.Cmp(rhs, CmpEq) }

// Ne returns 1 where the elements differ.
func (t *Tensor) Ne(rhs *Tensor) (*Tensor, error) { return t.Cmp(rhs, CmpNe) }

// Lt returns 1 where the receiver is strictly smaller.
func (t *Tensor) Lt(rhs *Tensor) (*Tensor, error) { return t.Cmp(rhs, CmpLt) }

// Le returns 1 where the receiver is smaller or equal.
func (t *Tensor) Le(rhs *Tensor) (*Tensor, error) { return t.Cmp(rhs, CmpLe) }

// Gt returns 1 where the receiver is strictly greater.
func (t *Tensor) Gt(rhs *Tensor) (*Tensor, error) { return t.Cmp(rhs, CmpGt) }

// Ge returns 1 where the receiver is greater or equal.
func (t *Tensor) Ge(rhs *Tensor) (*Tensor, error) { return t.Cmp(rhs, CmpGe) }
