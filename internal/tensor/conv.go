package tensor

// Convolution, pooling and upsampling. Inputs use channel-first layouts:
// (batch, cIn, lIn) for 1D and (batch, cIn, hIn, wIn) for 2D.

func convCheck2(op string, input, kernel *Tensor) error {
	if input.dtype != kernel.dtype {
		return &DTypeMismatchError{Op: op, Lhs: input.dtype, Rhs: kernel.dtype}
	}
	if !SameDevice(input.device, kernel.device) {
		return &DeviceMismatchError{Op: op, Lhs: input.device.Location(), Rhs: kernel.device.Location()}
	}
	return nil
}

// Conv1D convolves a (batch, cIn, lIn) input with a (cOut, cIn, k) kernel.
func (t *Tensor) Conv1D(kernel *Tensor, padding, stride int) (*Tensor, error) {
	if err := convCheck2("conv1d", t, kernel); err != nil {
		return nil, err
	}
	if t.Rank() != 3 {
		return nil, &UnexpectedRankError{Op: "conv1d", Expected: 3, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	if kernel.Rank() != 3 {
		return nil, &UnexpectedRankError{Op: "conv1d", Expected: 3, Got: kernel.Rank(), Shape: kernel.Shape().Clone()}
	}
	if t.Shape()[1] != kernel.Shape()[1] {
		return nil, &ShapeMismatchError{Op: "conv1d", Lhs: t.Shape().Clone(), Rhs: kernel.Shape().Clone()}
	}
	if stride <= 0 || padding < 0 {
		return nil, &InvalidArgumentError{Op: "conv1d", Msg: "stride must be positive and padding non-negative"}
	}
	p := &ConvParams1D{
		Batch:   t.Shape()[0],
		CIn:     t.Shape()[1],
		COut:    kernel.Shape()[0],
		K:       kernel.Shape()[2],
		LIn:     t.Shape()[2],
		Padding: padding,
		Stride:  stride,
	}
	var out Storage
	err := withReadStorage2(t, kernel, func(s, ks Storage) error {
		var err error
		out, err = s.Conv1D(&t.layout, ks, &kernel.layout, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew2(t, kernel, func(arg, k *Tensor) Op {
		return &OpConv1D{Arg: arg, Kernel: k, Params: p}
	})
	return fromStorage(out, p.OutDims(), op, false, t.device), nil
}

// Conv2D convolves a (batch, cIn, hIn, wIn) input with a
// (cOut, cIn, kH, kW) kernel.
func (t *Tensor) Conv2D(kernel *Tensor, padding, stride int) (*Tensor, error) {
	if err := convCheck2("conv2d", t, kernel); err != nil {
		return nil, err
	}
	if t.Rank() != 4 {
		return nil, &UnexpectedRankError{Op: "conv2d", Expected: 4, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	if kernel.Rank() != 4 {
		return nil, &UnexpectedRankError{Op: "conv2d", Expected: 4, Got: kernel.Rank(), Shape: kernel.Shape().Clone()}
	}
	if t.Shape()[1] != kernel.Shape()[1] {
		return nil, &ShapeMismatchError{Op: "conv2d", Lhs: t.Shape().Clone(), Rhs: kernel.Shape().Clone()}
	}
	if stride <= 0 || padding < 0 {
		return nil, &InvalidArgumentError{Op: "conv2d", Msg: "stride must be positive and padding non-negative"}
	}
	p := &ConvParams2D{
		Batch:   t.Shape()[0],
		CIn:     t.Shape()[1],
		COut:    kernel.Shape()[0],
		KH:      kernel.Shape()[2],
		KW:      kernel.Shape()[3],
		HIn:     t.Shape()[2],
		WIn:     t.Shape()[3],
		Padding: padding,
		Stride:  stride,
	}
	var out Storage
	err := withReadStorage2(t, kernel, func(s, ks Storage) error {
		var err error
		out, err = s.Conv2D(&t.layout, ks, &kernel.layout, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew2(t, kernel, func(arg, k *Tensor) Op {
		return &OpConv2D{Arg: arg, Kernel: k, Params: p}
	})
	return fromStorage(out, p.OutDims(), op, false, t.device), nil
}

// ConvTranspose2D applies a transposed convolution to a
// (batch, cIn, hIn, wIn) input with a (cIn, cOut, kH, kW) kernel.
func (t *Tensor) ConvTranspose2D(kernel *Tensor, padding, outputPadding, stride int) (*Tensor, error) {
	if err := convCheck2("conv_transpose2d", t, kernel); err != nil {
		return nil, err
	}
	if t.Rank() != 4 {
		return nil, &UnexpectedRankError{Op: "conv_transpose2d", Expected: 4, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	if kernel.Rank() != 4 {
		return nil, &UnexpectedRankError{Op: "conv_transpose2d", Expected: 4, Got: kernel.Rank(), Shape: kernel.Shape().Clone()}
	}
	if t.Shape()[1] != kernel.Shape()[0] {
		return nil, &ShapeMismatchError{Op: "conv_transpose2d", Lhs: t.Shape().Clone(), Rhs: kernel.Shape().Clone()}
	}
	if stride <= 0 || padding < 0 || outputPadding < 0 {
		return nil, &InvalidArgumentError{Op: "conv_transpose2d", Msg: "stride must be positive and paddings non-negative"}
	}
	p := &ConvTransposeParams2D{
		Batch:         t.Shape()[0],
		CIn:           t.Shape()[1],
		COut:          kernel.Shape()[1],
		KH:            kernel.Shape()[2],
		KW:            kernel.Shape()[3],
		HIn:           t.Shape()[2],
		WIn:           t.Shape()[3],
		Padding:       padding,
		OutputPadding: outputPadding,
		Stride:        stride,
	}
	var out Storage
	err := withReadStorage2(t, kernel, func(s, ks Storage) error {
		var err error
		out, err = s.ConvTranspose2D(&t.layout, ks, &kernel.layout, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew2(t, kernel, func(arg, k *Tensor) Op {
		return &OpConvTranspose2D{Arg: arg, Kernel: k, Params: p}
	})
	return fromStorage(out, p.OutDims(), op, false, t.device), nil
}

func (t *Tensor) pool2DCheck(op string, kh, kw, sh, sw int) error {
	if t.Rank() != 4 {
		return &UnexpectedRankError{Op: op, Expected: 4, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	if kh <= 0 || kw <= 0 || sh <= 0 || sw <= 0 {
		return &InvalidArgumentError{Op: op, Msg: "kernel and stride must be positive", Shape: t.Shape().Clone()}
	}
	return nil
}

func pool2DOutShape(in Shape, kh, kw, sh, sw int) Shape {
	return Shape{in[0], in[1], (in[2]-kh)/sh + 1, (in[3]-kw)/sw + 1}
}

// AvgPool2D averages over non-overlapping kh x kw windows.
func (t *Tensor) AvgPool2D(kh, kw int) (*Tensor, error) {
	return t.AvgPool2DWithStride(kh, kw, kh, kw)
}

// AvgPool2DWithStride averages over kh x kw windows advanced by (sh, sw).
func (t *Tensor) AvgPool2DWithStride(kh, kw, sh, sw int) (*Tensor, error) {
	if err := t.pool2DCheck("avg_pool2d", kh, kw, sh, sw); err != nil {
		return nil, err
	}
	var out Storage
	err := t.withReadStorage(func(s Storage) error {
		var err error
		out, err = s.AvgPool2D(&t.layout, kh, kw, sh, sw)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op {
		return &OpAvgPool2D{Arg: arg, KH: kh, KW: kw, SH: sh, SW: sw}
	})
	return fromStorage(out, pool2DOutShape(t.Shape(), kh, kw, sh, sw), op, false, t.device), nil
}

// MaxPool2D takes the maximum over non-overlapping kh x kw windows.
func (t *Tensor) MaxPool2D(kh, kw int) (*Tensor, error) {
	return t.MaxPool2DWithStride(kh, kw, kh, kw)
}

// MaxPool2DWithStride takes the maximum over kh x kw windows advanced by
// (sh, sw).
func (t *Tensor) MaxPool2DWithStride(kh, kw, sh, sw int) (*Tensor, error) {
	if err := t.pool2DCheck("max_pool2d", kh, kw, sh, sw); err != nil {
		return nil, err
	}
	var out Storage
	err := t.withReadStorage(func(s Storage) error {
		var err error
		out, err = s.MaxPool2D(&t.layout, kh, kw, sh, sw)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op {
		return &OpMaxPool2D{Arg: arg, KH: kh, KW: kw, SH: sh, SW: sw}
	})
	return fromStorage(out, pool2DOutShape(t.Shape(), kh, kw, sh, sw), op, false, t.device), nil
}

// UpsampleNearest2D resizes the spatial dimensions to (outH, outW) with
// nearest-neighbor interpolation.
func (t *Tensor) UpsampleNearest2D(outH, outW int) (*Tensor, error) {
	if t.Rank() != 4 {
		return nil, &UnexpectedRankError{Op: "upsample_nearest2d", Expected: 4, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	if outH <= 0 || outW <= 0 {
		return nil, &InvalidArgumentError{Op: "upsample_nearest2d", Msg: "output size must be positive", Shape: t.Shape().Clone()}
	}
	var out Storage
	err := t.withReadStorage(func(s Storage) error {
		var err error
		out, err = s.UpsampleNearest2D(&t.layout, outH, outW)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpUpsampleNearest2D{Arg: arg} })
	return fromStorage(out, Shape{t.Shape()[0], t.Shape()[1], outH, outW}, op, false, t.device), nil
}
