package tensor

// The unary operation family shares one helper: validate, read-lock the
// storage, dispatch the backend kernel, wrap the result with a graph edge.

func (t *Tensor) unaryOp(kind UnaryOpKind) (*Tensor, error) {
	var out Storage
	err := t.withReadStorage(func(s Storage) error {
		var err error
		out, err = s.Unary(kind, &t.layout)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpUnary{Arg: arg, Kind: kind} })
	return fromStorage(out, t.Shape().Clone(), op, false, t.device), nil
}

// Exp computes e^x elementwise.
func (t *Tensor) Exp() (*Tensor, error) { return t.unaryOp(UnaryExp) }

// Log computes the natural logarithm elementwise.
func (t *Tensor) Log() (*Tensor, error) { return t.unaryOp(UnaryLog) }

// Sin computes the sine elementwise.
func (t *Tensor) Sin() (*Tensor, error) { return t.unaryOp(UnarySin) }

// Cos computes the cosine elementwise.
func (t *Tensor) Cos() (*Tensor, error) { return t.unaryOp(UnaryCos) }

// Abs computes the absolute value elementwise.
func (t *Tensor) Abs() (*Tensor, error) { return t.unaryOp(UnaryAbs) }

// Neg negates elementwise.
func (t *Tensor) Neg() (*Tensor, error) { return t.unaryOp(UnaryNeg) }

// Recip computes 1/x elementwise.
func (t *Tensor) Recip() (*Tensor, error) { return t.unaryOp(UnaryRecip) }

// Sqr squares elementwise.
func (t *Tensor) Sqr() (*Tensor, error) { return t.unaryOp(UnarySqr) }

// Sqrt computes the square root elementwise.
func (t *Tensor) Sqrt() (*Tensor, error) { return t.unaryOp(UnarySqrt) }

// Gelu applies the gelu activation (tanh approximation) elementwise.
func (t *Tensor) Gelu() (*Tensor, error) { return t.unaryOp(UnaryGelu) }

// Relu applies max(x, 0) elementwise.
func (t *Tensor) Relu() (*Tensor, error) { return t.unaryOp(UnaryRelu) }

// Affine computes x*mul + add elementwise.
func (t *Tensor) Affine(mul, add float64) (*Tensor, error) {
	var out Storage
	err := t.withReadStorage(func(s Storage) error {
		var err error
		out, err = s.Affine(&t.layout, mul, add)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpAffine{Arg: arg, Mul: mul, Add: add} })
	return fromStorage(out, t.Shape().Clone(), op, false, t.device), nil
}

// Powf raises each element to the power e.
func (t *Tensor) Powf(e float64) (*Tensor, error) {
	var out Storage
	err := t.withReadStorage(func(s Storage) error {
		var err error
		out, err = s.Powf(&t.layout, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpPowf{Arg: arg, E: e} })
	return fromStorage(out, t.Shape().Clone(), op, false, t.device), nil
}

// Elu applies the elu activation with the given negative-slope coefficient.
func (t *Tensor) Elu(alpha float64) (*Tensor, error) {
	var out Storage
	err := t.withReadStorage(func(s Storage) error {
		var err error
		out, err = s.Elu(&t.layout, alpha)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpElu{Arg: arg, Alpha: alpha} })
	return fromStorage(out, t.Shape().Clone(), op, false, t.device), nil
}
