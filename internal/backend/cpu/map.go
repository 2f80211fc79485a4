package cpu

import (
	"math"

	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

// Elementwise kernels. Contiguous layouts take a chunked parallel fast path;
// anything strided walks the layout iterator sequentially.

func mapUnary[T tensor.Elem](s *Storage, l *tensor.Layout, f func(T) T) *Storage {
	src := tensor.As[T](s.buf)
	out := s.alloc(l.NumElements(), s.DType())
	dst := tensor.As[T](out.buf)
	if l.IsContiguous() {
		base := l.StartOffset()
		parallel.For(len(dst), func(i int) { dst[i] = f(src[base+i]) }, s.dev.cfg)
		return out
	}
	it := l.StridedIndexIter()
	i := 0
	for off, ok := it.Next(); ok; off, ok = it.Next() {
		dst[i] = f(src[off])
		i++
	}
	return out
}

func mapBinary[T tensor.Elem](lhs, rhs *Storage, ll, rl *tensor.Layout, f func(T, T) T) *Storage {
	a := tensor.As[T](lhs.buf)
	b := tensor.As[T](rhs.buf)
	out := lhs.alloc(ll.NumElements(), lhs.DType())
	dst := tensor.As[T](out.buf)
	if ll.IsContiguous() && rl.IsContiguous() {
		la, lb := ll.StartOffset(), rl.StartOffset()
		parallel.For(len(dst), func(i int) { dst[i] = f(a[la+i], b[lb+i]) }, lhs.dev.cfg)
		return out
	}
	li := ll.StridedIndexIter()
	ri := rl.StridedIndexIter()
	i := 0
	for {
		lo, ok := li.Next()
		if !ok {
			break
		}
		ro, _ := ri.Next()
		dst[i] = f(a[lo], b[ro])
		i++
	}
	return out
}

func mapCmp[T tensor.Elem](lhs, rhs *Storage, ll, rl *tensor.Layout, f func(T, T) bool) *Storage {
	a := tensor.As[T](lhs.buf)
	b := tensor.As[T](rhs.buf)
	out := lhs.alloc(ll.NumElements(), tensor.U8)
	dst := out.buf.AsU8()
	li := ll.StridedIndexIter()
	ri := rl.StridedIndexIter()
	i := 0
	for {
		lo, ok := li.Next()
		if !ok {
			break
		}
		ro, _ := ri.Next()
		if f(a[lo], b[ro]) {
			dst[i] = 1
		}
		i++
	}
	return out
}

func unaryFloatFunc(op tensor.UnaryOpKind) (func(float64) float64, bool) {
	switch op {
	case tensor.UnaryExp:
		return math.Exp, true
	case tensor.UnaryLog:
		return math.Log, true
	case tensor.UnarySin:
		return math.Sin, true
	case tensor.UnaryCos:
		return math.Cos, true
	case tensor.UnaryAbs:
		return math.Abs, true
	case tensor.UnaryNeg:
		return func(x float64) float64 { return -x }, true
	case tensor.UnaryRecip:
		return func(x float64) float64 { return 1 / x }, true
	case tensor.UnarySqr:
		return func(x float64) float64 { return x * x }, true
	case tensor.UnarySqrt:
		return math.Sqrt, true
	case tensor.UnaryGelu:
		return gelu, true
	case tensor.UnaryRelu:
		return func(x float64) float64 { return math.Max(x, 0) }, true
	default:
		return nil, false
	}
}

// gelu is the tanh approximation used across the ecosystem.
func gelu(x float64) float64 {
	const c = 0.7978845608028654 // sqrt(2/pi)
	return 0.5 * x * (1 + math.Tanh(c*(x+0.044715*x*x*x)))
}

// Unary applies an elementwise unary kernel. Integer dtypes support the
// subset with integer semantics (abs, neg on i64, sqr, relu).
func (s *Storage) Unary(op tensor.UnaryOpKind, l *tensor.Layout) (tensor.Storage, error) {
	switch s.DType() {
	case tensor.F32:
		f, ok := unaryFloatFunc(op)
		if !ok {
			return nil, &tensor.UnsupportedDTypeError{Op: op.Name(), DType: s.DType()}
		}
		return mapUnary[float32](s, l, func(x float32) float32 { return float32(f(float64(x))) }), nil
	case tensor.F64:
		f, ok := unaryFloatFunc(op)
		if !ok {
			return nil, &tensor.UnsupportedDTypeError{Op: op.Name(), DType: s.DType()}
		}
		return mapUnary[float64](s, l, f), nil
	case tensor.U8:
		return unaryUnsigned[uint8](s, op, l)
	case tensor.U32:
		return unaryUnsigned[uint32](s, op, l)
	case tensor.I64:
		switch op {
		case tensor.UnaryAbs:
			return mapUnary[int64](s, l, func(x int64) int64 {
				if x < 0 {
					return -x
				}
				return x
			}), nil
		case tensor.UnaryNeg:
			return mapUnary[int64](s, l, func(x int64) int64 { return -x }), nil
		case tensor.UnarySqr:
			return mapUnary[int64](s, l, func(x int64) int64 { return x * x }), nil
		case tensor.UnaryRelu:
			return mapUnary[int64](s, l, func(x int64) int64 { return max(x, 0) }), nil
		default:
			return nil, &tensor.UnsupportedDTypeError{Op: op.Name(), DType: s.DType()}
		}
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: op.Name(), DType: s.DType()}
	}
}

func unaryUnsigned[T uint8 | uint32](s *Storage, op tensor.UnaryOpKind, l *tensor.Layout) (tensor.Storage, error) {
	switch op {
	case tensor.UnaryAbs, tensor.UnaryRelu:
		// Identity on unsigned values.
		return mapUnary[T](s, l, func(x T) T { return x }), nil
	case tensor.UnarySqr:
		return mapUnary[T](s, l, func(x T) T { return x * x }), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: op.Name(), DType: s.DType()}
	}
}

// Binary applies an elementwise binary kernel; both layouts share one logical
// shape.
func (s *Storage) Binary(op tensor.BinaryOpKind, rhs tensor.Storage, ll, rl *tensor.Layout) (tensor.Storage, error) {
	r, err := asCPU(op.Name(), rhs)
	if err != nil {
		return nil, err
	}
	switch s.DType() {
	case tensor.U8:
		return mapBinary(s, r, ll, rl, binaryFunc[uint8](op)), nil
	case tensor.U32:
		return mapBinary(s, r, ll, rl, binaryFunc[uint32](op)), nil
	case tensor.I64:
		return mapBinary(s, r, ll, rl, binaryFunc[int64](op)), nil
	case tensor.F32:
		return mapBinary(s, r, ll, rl, binaryFunc[float32](op)), nil
	case tensor.F64:
		return mapBinary(s, r, ll, rl, binaryFunc[float64](op)), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: op.Name(), DType: s.DType()}
	}
}

func binaryFunc[T tensor.Elem](op tensor.BinaryOpKind) func(T, T) T {
	switch op {
	case tensor.BinaryAdd:
		return func(a, b T) T { return a + b }
	case tensor.BinarySub:
		return func(a, b T) T { return a - b }
	case tensor.BinaryMul:
		return func(a, b T) T { return a * b }
	case tensor.BinaryDiv:
		return func(a, b T) T { return a / b }
	default:
		panic("unknown binary op")
	}
}

// Cmp compares elementwise into a U8 storage.
func (s *Storage) Cmp(op tensor.CmpOpKind, rhs tensor.Storage, ll, rl *tensor.Layout) (tensor.Storage, error) {
	r, err := asCPU(op.Name(), rhs)
	if err != nil {
		return nil, err
	}
	switch s.DType() {
	case tensor.U8:
		return mapCmp(s, r, ll, rl, cmpFunc[uint8](op)), nil
	case tensor.U32:
		return mapCmp(s, r, ll, rl, cmpFunc[uint32](op)), nil
	case tensor.I64:
		return mapCmp(s, r, ll, rl, cmpFunc[int64](op)), nil
	case tensor.F32:
		return mapCmp(s, r, ll, rl, cmpFunc[float32](op)), nil
	case tensor.F64:
		return mapCmp(s, r, ll, rl, cmpFunc[float64](op)), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: op.Name(), DType: s.DType()}
	}
}

func cmpFunc[T tensor.Elem](op tensor.CmpOpKind) func(T, T) bool {
	switch op {
	case tensor.CmpEq:
		return func(a, b T) bool { return a == b }
	case tensor.CmpNe:
		return func(a, b T) bool { return a != b }
	case tensor.CmpLt:
		return func(a, b T) bool { return a < b }
	case tensor.CmpLe:
		return func(a, b T) bool { return a <= b }
	case tensor.CmpGt:
		return func(a, b T) bool { return a > b }
	case tensor.CmpGe:
		return func(a, b T) bool { return a >= b }
	default:
		panic("unknown cmp op")
	}
}

// Affine computes x*mul + add elementwise. Integer dtypes round-trip through
// float64 and truncate back.
func (s *Storage) Affine(l *tensor.Layout, mul, add float64) (tensor.Storage, error) {
	switch s.DType() {
	case tensor.U8:
		return mapUnary[uint8](s, l, func(x uint8) uint8 { return uint8(float64(x)*mul + add) }), nil
	case tensor.U32:
		return mapUnary[uint32](s, l, func(x uint32) uint32 { return uint32(float64(x)*mul + add) }), nil
	case tensor.I64:
		return mapUnary[int64](s, l, func(x int64) int64 { return int64(float64(x)*mul + add) }), nil
	case tensor.F32:
		return mapUnary[float32](s, l, func(x float32) float32 { return float32(float64(x)*mul + add) }), nil
	case tensor.F64:
		return mapUnary[float64](s, l, func(x float64) float64 { return x*mul + add }), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "affine", DType: s.DType()}
	}
}

// Powf raises each element to the power e; float dtypes only.
func (s *Storage) Powf(l *tensor.Layout, e float64) (tensor.Storage, error) {
	switch s.DType() {
	case tensor.F32:
		return mapUnary[float32](s, l, func(x float32) float32 { return float32(math.Pow(float64(x), e)) }), nil
	case tensor.F64:
		return mapUnary[float64](s, l, func(x float64) float64 { return math.Pow(x, e) }), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "powf", DType: s.DType()}
	}
}

// Elu applies the elu activation; float dtypes only.
func (s *Storage) Elu(l *tensor.Layout, alpha float64) (tensor.Storage, error) {
	f := func(x float64) float64 {
		if x > 0 {
			return x
		}
		return alpha * (math.Exp(x) - 1)
	}
	switch s.DType() {
	case tensor.F32:
		return mapUnary[float32](s, l, func(x float32) float32 { return float32(f(float64(x))) }), nil
	case tensor.F64:
		return mapUnary[float64](s, l, f), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "elu", DType: s.DType()}
	}
}

// WhereCond selects from onTrue where the receiver is non-zero.
func (s *Storage) WhereCond(l *tensor.Layout, onTrue tensor.Storage, tl *tensor.Layout, onFalse tensor.Storage, fl *tensor.Layout) (tensor.Storage, error) {
	ts, err := asCPU("where_cond", onTrue)
	if err != nil {
		return nil, err
	}
	fs, err := asCPU("where_cond", onFalse)
	if err != nil {
		return nil, err
	}
	flags, err := s.condFlags(l)
	if err != nil {
		return nil, err
	}
	switch ts.DType() {
	case tensor.U8:
		return selectWhere[uint8](flags, ts, tl, fs, fl), nil
	case tensor.U32:
		return selectWhere[uint32](flags, ts, tl, fs, fl), nil
	case tensor.I64:
		return selectWhere[int64](flags, ts, tl, fs, fl), nil
	case tensor.F32:
		return selectWhere[float32](flags, ts, tl, fs, fl), nil
	case tensor.F64:
		return selectWhere[float64](flags, ts, tl, fs, fl), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "where_cond", DType: ts.DType()}
	}
}

func (s *Storage) condFlags(l *tensor.Layout) ([]bool, error) {
	flags := make([]bool, 0, l.NumElements())
	switch s.DType() {
	case tensor.U8:
		for _, v := range gatherElems[uint8](s, l) {
			flags = append(flags, v != 0)
		}
	case tensor.U32:
		for _, v := range gatherElems[uint32](s, l) {
			flags = append(flags, v != 0)
		}
	case tensor.I64:
		for _, v := range gatherElems[int64](s, l) {
			flags = append(flags, v != 0)
		}
	case tensor.F32:
		for _, v := range gatherElems[float32](s, l) {
			flags = append(flags, v != 0)
		}
	case tensor.F64:
		for _, v := range gatherElems[float64](s, l) {
			flags = append(flags, v != 0)
		}
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "where_cond", DType: s.DType()}
	}
	return flags, nil
}

func selectWhere[T tensor.Elem](flags []bool, ts *Storage, tl *tensor.Layout, fs *Storage, fl *tensor.Layout) *Storage {
	a := tensor.As[T](ts.buf)
	b := tensor.As[T](fs.buf)
	out := ts.alloc(len(flags), ts.DType())
	dst := tensor.As[T](out.buf)
	ti := tl.StridedIndexIter()
	fi := fl.StridedIndexIter()
	for i := range flags {
		to, _ := ti.Next()
		fo, _ := fi.Next()
		if flags[i] {
			dst[i] = a[to]
		} else {
			dst[i] = b[fo]
		}
	}
	return out
}
