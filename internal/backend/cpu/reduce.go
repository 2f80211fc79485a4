package cpu

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// Reduction kernels. The source is walked once in logical order while a
// second offset tracks the destination position in the keepdim result; the
// destination stride is zero on reduced dimensions so every element of a
// reduced run lands in the same accumulator.

// walkDual visits every logical element of shape, calling f with the source
// offset, the destination offset and the current multi index.
func walkDual(shape tensor.Shape, sStride, dStride []int, sOff, dOff int, f func(sOff, dOff int, idx []int)) {
	n := shape.NumElements()
	if n == 0 {
		return
	}
	idx := make([]int, len(shape))
	for {
		f(sOff, dOff, idx)
		carried := true
		for i := len(idx) - 1; i >= 0 && carried; i-- {
			idx[i]++
			sOff += sStride[i]
			dOff += dStride[i]
			if idx[i] < shape[i] {
				carried = false
			} else {
				sOff -= idx[i] * sStride[i]
				dOff -= idx[i] * dStride[i]
				idx[i] = 0
			}
		}
		if carried {
			return
		}
	}
}

func reduceStrides(keep tensor.Shape, dims []int) []int {
	stride := keep.ComputeStrides()
	for _, d := range dims {
		stride[d] = 0
	}
	return stride
}

// Reduce collapses the given dimensions, keeping them at size one in the
// result. Arg reductions take exactly one dimension and produce U32 indices
// with ties resolved to the first occurrence.
func (s *Storage) Reduce(op tensor.ReduceOpKind, l *tensor.Layout, dims []int) (tensor.Storage, error) {
	keep := l.Shape().Clone()
	for _, d := range dims {
		if d < 0 || d >= len(keep) {
			return nil, &tensor.DimOutOfRangeError{Op: op.Name(), Dim: d, Shape: l.Shape().Clone()}
		}
		keep[d] = 1
	}
	if op == tensor.ReduceArgMax || op == tensor.ReduceArgMin {
		if len(dims) != 1 {
			return nil, &tensor.InvalidArgumentError{
				Op: op.Name(), Msg: "arg reductions take exactly one dimension", Shape: l.Shape().Clone(),
			}
		}
	}
	switch s.DType() {
	case tensor.U8:
		return reduceTyped[uint8](s, op, l, keep, dims)
	case tensor.U32:
		return reduceTyped[uint32](s, op, l, keep, dims)
	case tensor.I64:
		return reduceTyped[int64](s, op, l, keep, dims)
	case tensor.F32:
		return reduceTyped[float32](s, op, l, keep, dims)
	case tensor.F64:
		return reduceTyped[float64](s, op, l, keep, dims)
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: op.Name(), DType: s.DType()}
	}
}

func reduceTyped[T tensor.Elem](s *Storage, op tensor.ReduceOpKind, l *tensor.Layout, keep tensor.Shape, dims []int) (tensor.Storage, error) {
	src := tensor.As[T](s.buf)
	dStride := reduceStrides(keep, dims)
	switch op {
	case tensor.ReduceSum:
		out := s.alloc(keep.NumElements(), s.DType())
		dst := tensor.As[T](out.buf)
		walkDual(l.Shape(), l.Stride(), dStride, l.StartOffset(), 0, func(so, do int, _ []int) {
			dst[do] += src[so]
		})
		return out, nil
	case tensor.ReduceMax, tensor.ReduceMin:
		out := s.alloc(keep.NumElements(), s.DType())
		dst := tensor.As[T](out.buf)
		seen := make([]bool, len(dst))
		wantMax := op == tensor.ReduceMax
		walkDual(l.Shape(), l.Stride(), dStride, l.StartOffset(), 0, func(so, do int, _ []int) {
			v := src[so]
			if !seen[do] || (wantMax && v > dst[do]) || (!wantMax && v < dst[do]) {
				dst[do] = v
				seen[do] = true
			}
		})
		return out, nil
	case tensor.ReduceArgMax, tensor.ReduceArgMin:
		dim := dims[0]
		out := s.alloc(keep.NumElements(), tensor.U32)
		dst := out.buf.AsU32()
		best := make([]T, len(dst))
		seen := make([]bool, len(dst))
		wantMax := op == tensor.ReduceArgMax
		walkDual(l.Shape(), l.Stride(), dStride, l.StartOffset(), 0, func(so, do int, idx []int) {
			v := src[so]
			// Strict comparison keeps the first occurrence on ties.
			if !seen[do] || (wantMax && v > best[do]) || (!wantMax && v < best[do]) {
				best[do] = v
				dst[do] = uint32(idx[dim])
				seen[do] = true
			}
		})
		return out, nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: op.Name(), DType: s.DType()}
	}
}
