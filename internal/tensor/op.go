package tensor

// Operation kinds for the elementwise and reduction families. The kind is
// both the dispatch key for backend kernels and the tag the backward engine
// matches on.

// UnaryOpKind selects an elementwise unary kernel.
type UnaryOpKind int

// Unary operation kinds.
const (
	UnaryExp UnaryOpKind = iota
	UnaryLog
	UnarySin
	UnaryCos
	UnaryAbs
	UnaryNeg
	UnaryRecip
	UnarySqr
	UnarySqrt
	UnaryGelu
	UnaryRelu
)

// Name returns the operation name used in error messages.
func (k UnaryOpKind) Name() string {
	switch k {
	case UnaryExp:
		return "exp"
	case UnaryLog:
		return "log"
	case UnarySin:
		return "sin"
	case UnaryCos:
		return "cos"
	case UnaryAbs:
		return "abs"
	case UnaryNeg:
		return "neg"
	case UnaryRecip:
		return "recip"
	case UnarySqr:
		return "sqr"
	case UnarySqrt:
		return "sqrt"
	case UnaryGelu:
		return "gelu"
	case UnaryRelu:
		return "relu"
	default:
		return "unary"
	}
}

// BinaryOpKind selects an elementwise binary kernel.
type BinaryOpKind int

// Binary operation kinds.
const (
	BinaryAdd BinaryOpKind = iota
	BinarySub
	BinaryMul
	BinaryDiv
)

// Name returns the operation name used in error messages.
func (k BinaryOpKind) Name() string {
	switch k {
	case BinaryAdd:
		return "add"
	case BinarySub:
		return "sub"
	case BinaryMul:
		return "mul"
	case BinaryDiv:
		return "div"
	default:
		return "binary"
	}
}

// ReduceOpKind selects a reduction kernel.
type ReduceOpKind int

// Reduction operation kinds.
const (
	ReduceSum ReduceOpKind = iota
	ReduceMax
	ReduceMin
	ReduceArgMax
	ReduceArgMin
)

// Name returns the operation name used in error messages.
func (k ReduceOpKind) Name() string {
	switch k {
	case ReduceSum:
		return "sum"
	case ReduceMax:
		return "max"
	case ReduceMin:
		return "min"
	case ReduceArgMax:
		return "argmax"
	case ReduceArgMin:
		return "argmin"
	default:
		return "reduce"
	}
}

// CmpOpKind selects a comparison kernel.
type CmpOpKind int

// Comparison operation kinds.
const (
	CmpEq CmpOpKind = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// Name returns the operation name used in error messages.
func (k CmpOpKind) Name() string {
	switch k {
	case CmpEq:
		return "eq"
	case CmpNe:
		return "ne"
	case CmpLt:
		return "lt"
	case CmpLe:
		return "le"
	case CmpGt:
		return "gt"
	case CmpGe:
		return "ge"
	default:
		return "cmp"
	}
}

// Op records, for a newly produced tensor, which prior tensors and which
// scalar parameters produced it. It is a sealed tagged union: one struct per
// operation kind, consumed only by the backward pass. A tensor whose op is
// nil is a graph terminal.
type Op interface {
	isOp()
}

// OpUnary records an elementwise unary operation.
type OpUnary struct {
	Arg  *Tensor
	Kind UnaryOpKind
}

// OpBinary records an elementwise binary operation.
type OpBinary struct {
	Lhs, Rhs *Tensor
	Kind     BinaryOpKind
}

// OpAffine records x*mul + add.
type OpAffine struct {
	Arg      *Tensor
	Mul, Add float64
}

// OpPowf records x^e.
type OpPowf struct {
	Arg *Tensor
	E   float64
}

// OpElu records the elu activation.
type OpElu struct {
	Arg   *Tensor
	Alpha float64
}

// OpCmp records a comparison; comparisons carry no gradient.
type OpCmp struct {
	Lhs, Rhs *Tensor
	Kind     CmpOpKind
}

// OpReduce records a reduction. Dims is the post-reduction shape with the
// reduced dimensions kept at size one.
type OpReduce struct {
	Arg  *Tensor
	Kind ReduceOpKind
	Dims Shape
}

// OpMatmul records a batched matrix multiplication.
type OpMatmul struct {
	Lhs, Rhs *Tensor
}

// OpWhereCond records a conditional selection.
type OpWhereCond struct {
	Cond, OnTrue, OnFalse *Tensor
}

// OpCat records a concatenation; Dim is always 0, other axes are expressed
// through transposes around the axis-0 primitive.
type OpCat struct {
	Args []*Tensor
	Dim  int
}

// OpNarrow records a narrowing view.
type OpNarrow struct {
	Arg              *Tensor
	Dim, Start, Len int
}

// OpReshape records a reshape (view or copy).
type OpReshape struct {
	Arg *Tensor
}

// OpBroadcast records a zero-copy broadcast view.
type OpBroadcast struct {
	Arg *Tensor
}

// OpTranspose records a two-dimension swap.
type OpTranspose struct {
	Arg        *Tensor
	Dim1, Dim2 int
}

// OpPermute records a dimension permutation.
type OpPermute struct {
	Arg  *Tensor
	Dims []int
}

// OpCopy records an explicit storage copy (copy(), contiguous()).
type OpCopy struct {
	Arg *Tensor
}

// OpToDType records a dtype cast.
type OpToDType struct {
	Arg *Tensor
}

// OpToDevice records a device transfer.
type OpToDevice struct {
	Arg *Tensor
}

// OpGather records a gather along a dimension.
type OpGather struct {
	Arg, Index *Tensor
	Dim        int
}

// OpScatterAdd records a scatter-add along a dimension.
type OpScatterAdd struct {
	Arg, Index, Source *Tensor
	Dim                int
}

// OpIndexAdd records an index-add along a dimension.
type OpIndexAdd struct {
	Arg, Index, Source *Tensor
	Dim                int
}

// OpIndexSelect records an index-select along a dimension.
type OpIndexSelect struct {
	Arg, Index *Tensor
	Dim        int
}

// OpConv1D records a 1D convolution.
type OpConv1D struct {
	Arg, Kernel *Tensor
	Params      *ConvParams1D
}

// OpConv2D records a 2D convolution.
type OpConv2D struct {
	Arg, Kernel *Tensor
	Params      *ConvParams2D
}

// OpConvTranspose2D records a transposed 2D convolution.
type OpConvTranspose2D struct {
	Arg, Kernel *Tensor
	Params      *ConvTransposeParams2D
}

// OpAvgPool2D records a 2D average pooling.
type OpAvgPool2D struct {
	Arg            *Tensor
	KH, KW, SH, SW int
}

// OpMaxPool2D records a 2D max pooling.
type OpMaxPool2D struct {
	Arg            *Tensor
	KH, KW, SH, SW int
}

// OpUpsampleNearest2D records a nearest-neighbor 2D upsampling.
type OpUpsampleNearest2D struct {
	Arg *Tensor
}

// OpCustom1 records a user-supplied unary operation.
type OpCustom1 struct {
	Arg *Tensor
	C   CustomOp1
}

// OpCustom2 records a user-supplied binary operation.
type OpCustom2 struct {
	Arg1, Arg2 *Tensor
	C          CustomOp2
}

// OpCustom3 records a user-supplied ternary operation.
type OpCustom3 struct {
	Arg1, Arg2, Arg3 *Tensor
	C                CustomOp3
}

func (*OpUnary) isOp()             {}
func (*OpBinary) isOp()            {}
func (*OpAffine) isOp()            {}
func (*OpPowf) isOp()              {}
func (*OpElu) isOp()               {}
func (*OpCmp) isOp()               {}
func (*OpReduce) isOp()            {}
func (*OpMatmul) isOp()            {}
func (*OpWhereCond) isOp()         {}
func (*OpCat) isOp()               {}
func (*OpNarrow) isOp()            {}
func (*OpReshape) isOp()           {}
func (*OpBroadcast) isOp()         {}
func (*OpTranspose) isOp()         {}
func (*OpPermute) isOp()           {}
func (*OpCopy) isOp()              {}
func (*OpToDType) isOp()           {}
func (*OpToDevice) isOp()          {}
func (*OpGather) isOp()            {}
func (*OpScatterAdd) isOp()        {}
func (*OpIndexAdd) isOp()          {}
func (*OpIndexSelect) isOp()       {}
func (*OpConv1D) isOp()            {}
func (*OpConv2D) isOp()            {}
func (*OpConvTranspose2D) isOp()   {}
func (*OpAvgPool2D) isOp()         {}
func (*OpMaxPool2D) isOp()         {}
func (*OpUpsampleNearest2D) isOp() {}
func (*OpCustom1) isOp()           {}
func (*OpCustom2) isOp()           {}
func (*OpCustom3) isOp()           {}

// OpInputs returns the tensor operands referenced by an op, for graph
// traversal.
func OpInputs(op Op) []*Tensor {
	switch o := op.(type) {
	case *OpUnary:
		return []*Tensor{o.Arg}
	case *OpBinary:
		return []*Tensor{o.Lhs, o.Rhs}
	case *OpAffine:
		return []*Tensor{o.Arg}
	case *OpPowf:
		return []*Tensor{o.Arg}
	case *OpElu:
		return []*Tensor{o.Arg}
	case *OpCmp:
		return []*Tensor{o.Lhs, o.Rhs}
	case *OpReduce:
		return []*Tensor{o.Arg}
	case *OpMatmul:
		return []*Tensor{o.Lhs, o.Rhs}
	case *OpWhereCond:
		return []*Tensor{o.Cond, o.OnTrue, o.OnFalse}
	case *OpCat:
		return o.Args
	case *OpNarrow:
		return []*Tensor{o.Arg}
	case *OpReshape:
		return []*Tensor{o.Arg}
	case *OpBroadcast:
		return []*Tensor{o.Arg}
	case *OpTranspose:
		return []*Tensor{o.Arg}
	case *OpPermute:
		return []*Tensor{o.Arg}
	case *OpCopy:
		return []*Tensor{o.Arg}
	case *OpToDType:
		return []*Tensor{o.Arg}
	case *OpToDevice:
		return []*Tensor{o.Arg}
	case *OpGather:
		return []*Tensor{o.Arg, o.Index}
	case *OpScatterAdd:
		return []*Tensor{o.Arg, o.Index, o.Source}
	case *OpIndexAdd:
		return []*Tensor{o.Arg, o.Index, o.Source}
	case *OpIndexSelect:
		return []*Tensor{o.Arg, o.Index}
	case *OpConv1D:
		return []*Tensor{o.Arg, o.Kernel}
	case *OpConv2D:
		return []*Tensor{o.Arg, o.Kernel}
	case *OpConvTranspose2D:
		return []*Tensor{o.Arg, o.Kernel}
	case *OpAvgPool2D:
		return []*Tensor{o.Arg}
	case *OpMaxPool2D:
		return []*Tensor{o.Arg}
	case *OpUpsampleNearest2D:
		return []*Tensor{o.Arg}
	case *OpCustom1:
		return []*Tensor{o.Arg}
	case *OpCustom2:
		return []*Tensor{o.Arg1, o.Arg2}
	case *OpCustom3:
		return []*Tensor{o.Arg1, o.Arg2, o.Arg3}
	default:
		return nil
	}
}

// opNew1 builds a graph edge for a single-input operation, unless the input
// is untracked.
func opNew1(arg *Tensor, build func(*Tensor) Op) Op {
	if arg.isTracked() {
		return build(arg)
	}
	return nil
}

func opNew2(lhs, rhs *Tensor, build func(*Tensor, *Tensor) Op) Op {
	if lhs.isTracked() || rhs.isTracked() {
		return build(lhs, rhs)
	}
	return nil
}

func opNew3(t1, t2, t3 *Tensor, build func(*Tensor, *Tensor, *Tensor) Op) Op {
	if t1.isTracked() || t2.isTracked() || t3.isTracked() {
		return build(t1, t2, t3)
	}
	return nil
}

func opNewN(args []*Tensor, build func([]*Tensor) Op) Op {
	for _, a := range args {
		if a.isTracked() {
			return build(args)
		}
	}
	return nil
}
