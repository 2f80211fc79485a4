package tensor

// Storage owns a device-resident element buffer and implements the kernel
// contract every backend must satisfy. Kernels receive the layout describing
// how the logical shape maps onto the buffer; binary kernels may assume both
// operands share one logical shape (callers broadcast beforehand).
//
// All fallible kernels return typed errors (shape, dtype, device,
// unsupported-dtype) instead of panicking, so callers can recover by explicit
// coercion.
type Storage interface {
	DType() DType
	Device() Device

	// TryClone copies the full underlying buffer into a fresh storage.
	TryClone() (Storage, error)

	// ToCPU returns the CPU-resident representation of the buffer. For a CPU
	// storage this may alias the live buffer; treat the result as read-only.
	ToCPU() (*Buffer, error)

	// Elementwise kernels.
	Unary(op UnaryOpKind, l *Layout) (Storage, error)
	Binary(op BinaryOpKind, rhs Storage, ll, rl *Layout) (Storage, error)
	Affine(l *Layout, mul, add float64) (Storage, error)
	Powf(l *Layout, e float64) (Storage, error)
	Elu(l *Layout, alpha float64) (Storage, error)

	// Cmp produces a U8 storage holding 1 where the comparison holds.
	Cmp(op CmpOpKind, rhs Storage, ll, rl *Layout) (Storage, error)

	// Reduce collapses the given dimensions; the result shape keeps the
	// reduced dimensions with size one. Arg reductions resolve ties by
	// first occurrence in iteration order and produce U32 indices.
	Reduce(op ReduceOpKind, l *Layout, dims []int) (Storage, error)

	ToDType(l *Layout, dtype DType) (Storage, error)

	// Matmul contracts the inner dimension of two batched matrices:
	// (b, m, k) x (b, k, n) -> (b, m, n), batch dims flattened to b.
	Matmul(rhs Storage, b, m, n, k int, ll, rl *Layout) (Storage, error)

	// WhereCond selects from onTrue where the receiver is non-zero, from
	// onFalse elsewhere. All three layouts share one logical shape.
	WhereCond(l *Layout, onTrue Storage, tl *Layout, onFalse Storage, fl *Layout) (Storage, error)

	// Indexing kernels, all with axis + index-tensor semantics.
	IndexSelect(idx Storage, l, il *Layout, dim int) (Storage, error)
	Gather(l *Layout, idx Storage, il *Layout, dim int) (Storage, error)
	ScatterAdd(l *Layout, idx Storage, il *Layout, src Storage, sl *Layout, dim int) (Storage, error)
	IndexAdd(l *Layout, idx Storage, il *Layout, src Storage, sl *Layout, dim int) (Storage, error)

	// Convolution and pooling kernels.
	Conv1D(l *Layout, kernel Storage, kl *Layout, p *ConvParams1D) (Storage, error)
	Conv2D(l *Layout, kernel Storage, kl *Layout, p *ConvParams2D) (Storage, error)
	ConvTranspose2D(l *Layout, kernel Storage, kl *Layout, p *ConvTransposeParams2D) (Storage, error)
	Conv2DBackwardInput(gradOut Storage, gl *Layout, kernel Storage, kl *Layout, p *ConvParams2D) (Storage, error)
	Conv2DBackwardKernel(input Storage, l *Layout, gradOut Storage, gl *Layout, p *ConvParams2D) (Storage, error)
	Conv1DBackwardInput(gradOut Storage, gl *Layout, kernel Storage, kl *Layout, p *ConvParams1D) (Storage, error)
	Conv1DBackwardKernel(input Storage, l *Layout, gradOut Storage, gl *Layout, p *ConvParams1D) (Storage, error)
	AvgPool2D(l *Layout, kh, kw, sh, sw int) (Storage, error)
	MaxPool2D(l *Layout, kh, kw, sh, sw int) (Storage, error)
	AvgPool2DBackward(l *Layout, gradOut Storage, gl *Layout, kh, kw, sh, sw int) (Storage, error)
	MaxPool2DBackward(l *Layout, gradOut Storage, gl *Layout, kh, kw, sh, sw int) (Storage, error)
	UpsampleNearest2D(l *Layout, outH, outW int) (Storage, error)
	UpsampleNearest2DBackward(l *Layout, gradOut Storage, gl *Layout) (Storage, error)

	// CopyStrided copies the receiver's logical contents, respecting its
	// layout, into the destination's contiguous buffer starting at the given
	// element offset. This is the universal mechanism behind contiguous(),
	// cat and device transfer.
	CopyStrided(dst Storage, dstOffset int, srcLayout *Layout) error
}

// ConvParams1D describes a 1D convolution: input (batch, cIn, lIn) with
// kernel (cOut, cIn, k).
type ConvParams1D struct {
	Batch   int
	CIn     int
	COut    int
	K       int
	LIn     int
	Padding int
	Stride  int
}

// LOut returns the output length.
func (p *ConvParams1D) LOut() int {
	return (p.LIn+2*p.Padding-p.K)/p.Stride + 1
}

// OutDims returns the output shape.
func (p *ConvParams1D) OutDims() Shape {
	return Shape{p.Batch, p.COut, p.LOut()}
}

// ConvParams2D describes a 2D convolution: input (batch, cIn, hIn, wIn) with
// kernel (cOut, cIn, kH, kW).
type ConvParams2D struct {
	Batch   int
	CIn     int
	COut    int
	KH      int
	KW      int
	HIn     int
	WIn     int
	Padding int
	Stride  int
}

// HOut returns the output height.
func (p *ConvParams2D) HOut() int {
	return (p.HIn+2*p.Padding-p.KH)/p.Stride + 1
}

// WOut returns the output width.
func (p *ConvParams2D) WOut() int {
	return (p.WIn+2*p.Padding-p.KW)/p.Stride + 1
}

// OutDims returns the output shape.
func (p *ConvParams2D) OutDims() Shape {
	return Shape{p.Batch, p.COut, p.HOut(), p.WOut()}
}

// ConvTransposeParams2D describes a transposed 2D convolution: input
// (batch, cIn, hIn, wIn) with kernel (cIn, cOut, kH, kW).
type ConvTransposeParams2D struct {
	Batch         int
	CIn           int
	COut          int
	KH            int
	KW            int
	HIn           int
	WIn           int
	Padding       int
	OutputPadding int
	Stride        int
}

// HOut returns the output height.
func (p *ConvTransposeParams2D) HOut() int {
	return (p.HIn-1)*p.Stride - 2*p.Padding + p.KH + p.OutputPadding
}

// WOut returns the output width.
func (p *ConvTransposeParams2D) WOut() int {
	return (p.WIn-1)*p.Stride - 2*p.Padding + p.KW + p.OutputPadding
}

// OutDims returns the output shape.
func (p *ConvTransposeParams2D) OutDims() Shape {
	return Shape{p.Batch, p.COut, p.HOut(), p.WOut()}
}
