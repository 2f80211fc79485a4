package autodiff

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// backwardStep propagates the gradient of one node onto its operands.
func backwardStep(grads *GradStore, node, grad *tensor.Tensor, op tensor.Op) error {
	switch o := op.(type) {
	case *tensor.OpBinary:
		return backwardBinary(grads, o, grad)
	case *tensor.OpUnary:
		return backwardUnary(grads, node, o, grad)
	case *tensor.OpAffine:
		contrib, err := grad.Affine(o.Mul, 0)
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpPowf:
		pw, err := o.Arg.Powf(o.E - 1)
		if err != nil {
			return err
		}
		contrib, err := grad.Mul(pw)
		if err != nil {
			return err
		}
		if contrib, err = contrib.Affine(o.E, 0); err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpElu:
		return backwardElu(grads, node, o, grad)
	case *tensor.OpCmp:
		return &tensor.BackwardNotSupportedError{Op: o.Kind.Name()}
	case *tensor.OpReduce:
		return backwardReduce(grads, node, o, grad)
	case *tensor.OpMatmul:
		return backwardMatmul(grads, o, grad)
	case *tensor.OpWhereCond:
		return backwardWhereCond(grads, o, grad)
	case *tensor.OpCat:
		start := 0
		for _, arg := range o.Args {
			length := arg.Dims()[0]
			slice, err := grad.Narrow(0, start, length)
			if err != nil {
				return err
			}
			if err := grads.add(arg, slice); err != nil {
				return err
			}
			start += length
		}
		return nil
	case *tensor.OpNarrow:
		right := o.Arg.Dims()[o.Dim] - o.Start - o.Len
		padded, err := grad.PadWithZeros(o.Dim, o.Start, right)
		if err != nil {
			return err
		}
		return grads.add(o.Arg, padded)
	case *tensor.OpReshape:
		contrib, err := grad.Reshape(o.Arg.Shape().Clone())
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpBroadcast:
		contrib, err := reduceToShape(grad, o.Arg.Shape())
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpTranspose:
		contrib, err := grad.Transpose(o.Dim1, o.Dim2)
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpPermute:
		inv := make([]int, len(o.Dims))
		for i, p := range o.Dims {
			inv[p] = i
		}
		contrib, err := grad.Permute(inv...)
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpCopy:
		return grads.add(o.Arg, grad)
	case *tensor.OpToDType:
		contrib, err := grad.ToDType(o.Arg.DType())
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpToDevice:
		contrib, err := grad.ToDevice(o.Arg.Device())
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpGather:
		zeros, err := o.Arg.ZerosLike()
		if err != nil {
			return err
		}
		contrib, err := zeros.ScatterAdd(o.Dim, o.Index, grad)
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpScatterAdd:
		if err := grads.add(o.Arg, grad); err != nil {
			return err
		}
		srcGrad, err := grad.Gather(o.Dim, o.Index)
		if err != nil {
			return err
		}
		return grads.add(o.Source, srcGrad)
	case *tensor.OpIndexAdd:
		if err := grads.add(o.Arg, grad); err != nil {
			return err
		}
		srcGrad, err := grad.IndexSelect(o.Dim, o.Index)
		if err != nil {
			return err
		}
		return grads.add(o.Source, srcGrad)
	case *tensor.OpIndexSelect:
		zeros, err := o.Arg.ZerosLike()
		if err != nil {
			return err
		}
		contrib, err := zeros.IndexAdd(o.Dim, o.Index, grad)
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpConv1D:
		return backwardConv1D(grads, o, grad)
	case *tensor.OpConv2D:
		return backwardConv2D(grads, o, grad)
	case *tensor.OpConvTranspose2D:
		return &tensor.BackwardNotSupportedError{Op: "conv_transpose2d"}
	case *tensor.OpAvgPool2D:
		return backwardPool(grads, o.Arg, grad, func(as tensor.Storage, al *tensor.Layout, gs tensor.Storage, gl *tensor.Layout) (tensor.Storage, error) {
			return as.AvgPool2DBackward(al, gs, gl, o.KH, o.KW, o.SH, o.SW)
		})
	case *tensor.OpMaxPool2D:
		return backwardPool(grads, o.Arg, grad, func(as tensor.Storage, al *tensor.Layout, gs tensor.Storage, gl *tensor.Layout) (tensor.Storage, error) {
			return as.MaxPool2DBackward(al, gs, gl, o.KH, o.KW, o.SH, o.SW)
		})
	case *tensor.OpUpsampleNearest2D:
		return backwardPool(grads, o.Arg, grad, func(as tensor.Storage, al *tensor.Layout, gs tensor.Storage, gl *tensor.Layout) (tensor.Storage, error) {
			return as.UpsampleNearest2DBackward(al, gs, gl)
		})
	case *tensor.OpCustom1:
		b, ok := o.C.(tensor.CustomOp1Backward)
		if !ok {
			return &tensor.BackwardNotSupportedError{Op: o.C.Name()}
		}
		contrib, err := b.Backward(o.Arg, node, grad)
		if err != nil {
			return err
		}
		if contrib == nil {
			return nil
		}
		return grads.add(o.Arg, contrib)
	case *tensor.OpCustom2:
		b, ok := o.C.(tensor.CustomOp2Backward)
		if !ok {
			return &tensor.BackwardNotSupportedError{Op: o.C.Name()}
		}
		g1, g2, err := b.Backward(o.Arg1, o.Arg2, node, grad)
		if err != nil {
			return err
		}
		if g1 != nil {
			if err := grads.add(o.Arg1, g1); err != nil {
				return err
			}
		}
		if g2 != nil {
			if err := grads.add(o.Arg2, g2); err != nil {
				return err
			}
		}
		return nil
	case *tensor.OpCustom3:
		b, ok := o.C.(tensor.CustomOp3Backward)
		if !ok {
			return &tensor.BackwardNotSupportedError{Op: o.C.Name()}
		}
		g1, g2, g3, err := b.Backward(o.Arg1, o.Arg2, o.Arg3, node, grad)
		if err != nil {
			return err
		}
		for _, pair := range []struct {
			arg *tensor.Tensor
			g   *tensor.Tensor
		}{{o.Arg1, g1}, {o.Arg2, g2}, {o.Arg3, g3}} {
			if pair.g != nil {
				if err := grads.add(pair.arg, pair.g); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return &tensor.BackwardNotSupportedError{Op: "unknown"}
	}
}

func backwardBinary(grads *GradStore, o *tensor.OpBinary, grad *tensor.Tensor) error {
	switch o.Kind {
	case tensor.BinaryAdd:
		if err := grads.add(o.Lhs, grad); err != nil {
			return err
		}
		return grads.add(o.Rhs, grad)
	case tensor.BinarySub:
		if err := grads.add(o.Lhs, grad); err != nil {
			return err
		}
		return grads.sub(o.Rhs, grad)
	case tensor.BinaryMul:
		lg, err := grad.Mul(o.Rhs)
		if err != nil {
			return err
		}
		if err := grads.add(o.Lhs, lg); err != nil {
			return err
		}
		rg, err := grad.Mul(o.Lhs)
		if err != nil {
			return err
		}
		return grads.add(o.Rhs, rg)
	case tensor.BinaryDiv:
		lg, err := grad.Div(o.Rhs)
		if err != nil {
			return err
		}
		if err := grads.add(o.Lhs, lg); err != nil {
			return err
		}
		rhsSqr, err := o.Rhs.Sqr()
		if err != nil {
			return err
		}
		rg, err := grad.Mul(o.Lhs)
		if err != nil {
			return err
		}
		if rg, err = rg.Div(rhsSqr); err != nil {
			return err
		}
		return grads.sub(o.Rhs, rg)
	default:
		return &tensor.BackwardNotSupportedError{Op: o.Kind.Name()}
	}
}

func backwardUnary(grads *GradStore, node *tensor.Tensor, o *tensor.OpUnary, grad *tensor.Tensor) error {
	arg := o.Arg
	switch o.Kind {
	case tensor.UnaryExp:
		contrib, err := grad.Mul(node)
		if err != nil {
			return err
		}
		return grads.add(arg, contrib)
	case tensor.UnaryLog:
		contrib, err := grad.Div(arg)
		if err != nil {
			return err
		}
		return grads.add(arg, contrib)
	case tensor.UnarySin:
		cos, err := arg.Cos()
		if err != nil {
			return err
		}
		contrib, err := grad.Mul(cos)
		if err != nil {
			return err
		}
		return grads.add(arg, contrib)
	case tensor.UnaryCos:
		sin, err := arg.Sin()
		if err != nil {
			return err
		}
		contrib, err := grad.Mul(sin)
		if err != nil {
			return err
		}
		return grads.sub(arg, contrib)
	case tensor.UnaryAbs:
		sign, err := signOf(arg)
		if err != nil {
			return err
		}
		contrib, err := grad.Mul(sign)
		if err != nil {
			return err
		}
		return grads.add(arg, contrib)
	case tensor.UnaryNeg:
		return grads.sub(arg, grad)
	case tensor.UnaryRecip:
		sqr, err := arg.Sqr()
		if err != nil {
			return err
		}
		contrib, err := grad.Div(sqr)
		if err != nil {
			return err
		}
		return grads.sub(arg, contrib)
	case tensor.UnarySqr:
		contrib, err := grad.Mul(arg)
		if err != nil {
			return err
		}
		if contrib, err = contrib.Affine(2, 0); err != nil {
			return err
		}
		return grads.add(arg, contrib)
	case tensor.UnarySqrt:
		// d/dx sqrt(x) = 1 / (2 sqrt(x)), with node = sqrt(x).
		contrib, err := grad.Div(node)
		if err != nil {
			return err
		}
		if contrib, err = contrib.Affine(0.5, 0); err != nil {
			return err
		}
		return grads.add(arg, contrib)
	case tensor.UnaryGelu:
		d, err := geluDerivative(arg)
		if err != nil {
			return err
		}
		contrib, err := grad.Mul(d)
		if err != nil {
			return err
		}
		return grads.add(arg, contrib)
	case tensor.UnaryRelu:
		mask, err := positiveMask(arg)
		if err != nil {
			return err
		}
		contrib, err := grad.Mul(mask)
		if err != nil {
			return err
		}
		return grads.add(arg, contrib)
	default:
		return &tensor.BackwardNotSupportedError{Op: o.Kind.Name()}
	}
}

// signOf builds +1/-1 from the sign of x (zero maps to +1).
func signOf(arg *tensor.Tensor) (*tensor.Tensor, error) {
	zeros, err := arg.ZerosLike()
	if err != nil {
		return nil, err
	}
	mask, err := arg.Ge(zeros)
	if err != nil {
		return nil, err
	}
	maskF, err := mask.ToDType(arg.DType())
	if err != nil {
		return nil, err
	}
	return maskF.Affine(2, -1)
}

// positiveMask builds 1 where x > 0 and 0 elsewhere, in x's dtype.
func positiveMask(arg *tensor.Tensor) (*tensor.Tensor, error) {
	zeros, err := arg.ZerosLike()
	if err != nil {
		return nil, err
	}
	mask, err := arg.Gt(zeros)
	if err != nil {
		return nil, err
	}
	return mask.ToDType(arg.DType())
}

// geluDerivative evaluates the derivative of the tanh-approximated gelu.
func geluDerivative(x *tensor.Tensor) (*tensor.Tensor, error) {
	const (
		c     = 0.7978845608028654 // sqrt(2/pi)
		gamma = 0.044715
	)
	x2, err := x.Sqr()
	if err != nil {
		return nil, err
	}
	x3, err := x2.Mul(x)
	if err != nil {
		return nil, err
	}
	inner, err := x3.Affine(gamma, 0)
	if err != nil {
		return nil, err
	}
	if inner, err = x.Add(inner); err != nil {
		return nil, err
	}
	u, err := inner.Affine(c, 0)
	if err != nil {
		return nil, err
	}
	// tanh(u) = (e^{2u} - 1) / (e^{2u} + 1)
	e2u, err := u.Affine(2, 0)
	if err != nil {
		return nil, err
	}
	if e2u, err = e2u.Exp(); err != nil {
		return nil, err
	}
	num, err := e2u.Affine(1, -1)
	if err != nil {
		return nil, err
	}
	den, err := e2u.Affine(1, 1)
	if err != nil {
		return nil, err
	}
	tanhU, err := num.Div(den)
	if err != nil {
		return nil, err
	}
	tanh2, err := tanhU.Sqr()
	if err != nil {
		return nil, err
	}
	sech2, err := tanh2.Affine(-1, 1)
	if err != nil {
		return nil, err
	}
	dudx, err := x2.Affine(3*gamma*c, c)
	if err != nil {
		return nil, err
	}
	left, err := tanhU.Affine(0.5, 0.5)
	if err != nil {
		return nil, err
	}
	right, err := x.Mul(sech2)
	if err != nil {
		return nil, err
	}
	if right, err = right.Mul(dudx); err != nil {
		return nil, err
	}
	if right, err = right.Affine(0.5, 0); err != nil {
		return nil, err
	}
	return left.Add(right)
}

func backwardElu(grads *GradStore, node *tensor.Tensor, o *tensor.OpElu, grad *tensor.Tensor) error {
	// For x > 0 the slope is 1; otherwise it is elu(x) + alpha.
	mask, err := positiveMaskU8(o.Arg)
	if err != nil {
		return err
	}
	negSlope, err := node.Affine(1, o.Alpha)
	if err != nil {
		return err
	}
	negGrad, err := grad.Mul(negSlope)
	if err != nil {
		return err
	}
	contrib, err := mask.WhereCond(grad, negGrad)
	if err != nil {
		return err
	}
	return grads.add(o.Arg, contrib)
}

func positiveMaskU8(arg *tensor.Tensor) (*tensor.Tensor, error) {
	zeros, err := arg.ZerosLike()
	if err != nil {
		return nil, err
	}
	return arg.Gt(zeros)
}

func backwardReduce(grads *GradStore, node *tensor.Tensor, o *tensor.OpReduce, grad *tensor.Tensor) error {
	switch o.Kind {
	case tensor.ReduceSum:
		contrib, err := grad.BroadcastAs(o.Arg.Shape().Clone())
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	case tensor.ReduceMax, tensor.ReduceMin:
		// Gradient flows to every element equal to the extremum, with the
		// keepdim result broadcast back over the reduced dimensions.
		wide, err := node.BroadcastAs(o.Arg.Shape().Clone())
		if err != nil {
			return err
		}
		mask, err := o.Arg.Eq(wide)
		if err != nil {
			return err
		}
		maskF, err := mask.ToDType(o.Arg.DType())
		if err != nil {
			return err
		}
		gradWide, err := grad.BroadcastAs(o.Arg.Shape().Clone())
		if err != nil {
			return err
		}
		contrib, err := gradWide.Mul(maskF)
		if err != nil {
			return err
		}
		return grads.add(o.Arg, contrib)
	default:
		return &tensor.BackwardNotSupportedError{Op: o.Kind.Name()}
	}
}

func backwardMatmul(grads *GradStore, o *tensor.OpMatmul, grad *tensor.Tensor) error {
	rhsT, err := o.Rhs.T()
	if err != nil {
		return err
	}
	lg, err := grad.Matmul(rhsT)
	if err != nil {
		return err
	}
	if err := grads.add(o.Lhs, lg); err != nil {
		return err
	}
	lhsT, err := o.Lhs.T()
	if err != nil {
		return err
	}
	rg, err := lhsT.Matmul(grad)
	if err != nil {
		return err
	}
	return grads.add(o.Rhs, rg)
}

func backwardWhereCond(grads *GradStore, o *tensor.OpWhereCond, grad *tensor.Tensor) error {
	zeros, err := o.OnTrue.ZerosLike()
	if err != nil {
		return err
	}
	tGrad, err := o.Cond.WhereCond(grad, zeros)
	if err != nil {
		return err
	}
	if err := grads.add(o.OnTrue, tGrad); err != nil {
		return err
	}
	fGrad, err := o.Cond.WhereCond(zeros, grad)
	if err != nil {
		return err
	}
	return grads.add(o.OnFalse, fGrad)
}

// reduceToShape sums the gradient of a broadcast back down to the operand
// shape: summing out prepended dimensions and size-one stretches.
func reduceToShape(grad *tensor.Tensor, shape tensor.Shape) (*tensor.Tensor, error) {
	added := grad.Rank() - shape.Rank()
	var dims []int
	for i := 0; i < added; i++ {
		dims = append(dims, i)
	}
	for i, d := range shape {
		if d == 1 && grad.Shape()[i+added] > 1 {
			dims = append(dims, i+added)
		}
	}
	out := grad
	if len(dims) > 0 {
		var err error
		if out, err = grad.SumKeepdim(dims...); err != nil {
			return nil, err
		}
	}
	return out.Reshape(shape.Clone())
}

func backwardConv1D(grads *GradStore, o *tensor.OpConv1D, grad *tensor.Tensor) error {
	g, err := grad.Contiguous()
	if err != nil {
		return err
	}
	gs, gl, gRelease := g.StorageAndLayout()
	defer gRelease()
	ks, kl, kRelease := o.Kernel.StorageAndLayout()
	defer kRelease()
	as, al, aRelease := o.Arg.StorageAndLayout()
	defer aRelease()

	giStorage, err := as.Conv1DBackwardInput(gs, gl, ks, kl, o.Params)
	if err != nil {
		return err
	}
	gi, err := tensor.FromStorage(giStorage, tensor.Shape{o.Params.Batch, o.Params.CIn, o.Params.LIn})
	if err != nil {
		return err
	}
	if err := grads.add(o.Arg, gi); err != nil {
		return err
	}

	gkStorage, err := as.Conv1DBackwardKernel(as, al, gs, gl, o.Params)
	if err != nil {
		return err
	}
	gk, err := tensor.FromStorage(gkStorage, tensor.Shape{o.Params.COut, o.Params.CIn, o.Params.K})
	if err != nil {
		return err
	}
	return grads.add(o.Kernel, gk)
}

func backwardConv2D(grads *GradStore, o *tensor.OpConv2D, grad *tensor.Tensor) error {
	g, err := grad.Contiguous()
	if err != nil {
		return err
	}
	gs, gl, gRelease := g.StorageAndLayout()
	defer gRelease()
	ks, kl, kRelease := o.Kernel.StorageAndLayout()
	defer kRelease()
	as, al, aRelease := o.Arg.StorageAndLayout()
	defer aRelease()

	giStorage, err := as.Conv2DBackwardInput(gs, gl, ks, kl, o.Params)
	if err != nil {
		return err
	}
	gi, err := tensor.FromStorage(giStorage, tensor.Shape{o.Params.Batch, o.Params.CIn, o.Params.HIn, o.Params.WIn})
	if err != nil {
		return err
	}
	if err := grads.add(o.Arg, gi); err != nil {
		return err
	}

	gkStorage, err := as.Conv2DBackwardKernel(as, al, gs, gl, o.Params)
	if err != nil {
		return err
	}
	gk, err := tensor.FromStorage(gkStorage, tensor.Shape{o.Params.COut, o.Params.CIn, o.Params.KH, o.Params.KW})
	if err != nil {
		return err
	}
	return grads.add(o.Kernel, gk)
}

func backwardPool(grads *GradStore, arg, grad *tensor.Tensor, kernel func(tensor.Storage, *tensor.Layout, tensor.Storage, *tensor.Layout) (tensor.Storage, error)) error {
	g, err := grad.Contiguous()
	if err != nil {
		return err
	}
	gs, gl, gRelease := g.StorageAndLayout()
	defer gRelease()
	as, al, aRelease := arg.StorageAndLayout()
	defer aRelease()
	out, err := kernel(as, al, gs, gl)
	if err != nil {
		return err
	}
	contrib, err := tensor.FromStorage(out, arg.Shape().Clone())
	if err != nil {
		return err
	}
	return grads.add(arg, contrib)
}
