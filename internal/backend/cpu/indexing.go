package cpu

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// Index kernels. Operands are materialized in logical order and addressed as
// (outer, dim, inner) blocks around the indexed dimension.

func dimSplit(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[dim], inner
}

func indexBoundsErr(op string, idx, size int) error {
	return &tensor.InvalidArgumentError{
		Op: op, Msg: "index out of bounds", Dim: idx,
		Shape: tensor.Shape{size},
	}
}

// IndexSelect picks whole slices along dim by a rank-1 index tensor.
func (s *Storage) IndexSelect(idx tensor.Storage, l, il *tensor.Layout, dim int) (tensor.Storage, error) {
	is, err := asCPU("index_select", idx)
	if err != nil {
		return nil, err
	}
	ids, err := readIndexes("index_select", is, il)
	if err != nil {
		return nil, err
	}
	switch s.DType() {
	case tensor.U8:
		return indexSelectTyped[uint8](s, l, dim, ids)
	case tensor.U32:
		return indexSelectTyped[uint32](s, l, dim, ids)
	case tensor.I64:
		return indexSelectTyped[int64](s, l, dim, ids)
	case tensor.F32:
		return indexSelectTyped[float32](s, l, dim, ids)
	case tensor.F64:
		return indexSelectTyped[float64](s, l, dim, ids)
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "index_select", DType: s.DType()}
	}
}

func indexSelectTyped[T tensor.Elem](s *Storage, l *tensor.Layout, dim int, ids []int) (tensor.Storage, error) {
	src := gatherElems[T](s, l)
	outer, size, inner := dimSplit(l.Shape(), dim)
	out := s.alloc(outer*len(ids)*inner, s.DType())
	dst := tensor.As[T](out.buf)
	for o := 0; o < outer; o++ {
		for j, id := range ids {
			if id < 0 || id >= size {
				return nil, indexBoundsErr("index_select", id, size)
			}
			copy(dst[(o*len(ids)+j)*inner:(o*len(ids)+j+1)*inner],
				src[(o*size+id)*inner:(o*size+id+1)*inner])
		}
	}
	return out, nil
}

// Gather picks individual elements along dim by an index tensor shaped like
// the result.
func (s *Storage) Gather(l *tensor.Layout, idx tensor.Storage, il *tensor.Layout, dim int) (tensor.Storage, error) {
	is, err := asCPU("gather", idx)
	if err != nil {
		return nil, err
	}
	ids, err := readIndexes("gather", is, il)
	if err != nil {
		return nil, err
	}
	switch s.DType() {
	case tensor.U8:
		return gatherTyped[uint8](s, l, il.Shape(), dim, ids)
	case tensor.U32:
		return gatherTyped[uint32](s, l, il.Shape(), dim, ids)
	case tensor.I64:
		return gatherTyped[int64](s, l, il.Shape(), dim, ids)
	case tensor.F32:
		return gatherTyped[float32](s, l, il.Shape(), dim, ids)
	case tensor.F64:
		return gatherTyped[float64](s, l, il.Shape(), dim, ids)
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "gather", DType: s.DType()}
	}
}

func gatherTyped[T tensor.Elem](s *Storage, l *tensor.Layout, idxShape tensor.Shape, dim int, ids []int) (tensor.Storage, error) {
	src := gatherElems[T](s, l)
	outer, size, inner := dimSplit(l.Shape(), dim)
	_, m, _ := dimSplit(idxShape, dim)
	out := s.alloc(len(ids), s.DType())
	dst := tensor.As[T](out.buf)
	for o := 0; o < outer; o++ {
		for j := 0; j < m; j++ {
			for i := 0; i < inner; i++ {
				pos := (o*m+j)*inner + i
				id := ids[pos]
				if id < 0 || id >= size {
					return nil, indexBoundsErr("gather", id, size)
				}
				dst[pos] = src[(o*size+id)*inner+i]
			}
		}
	}
	return out, nil
}

// ScatterAdd accumulates source elements into a copy of the receiver.
func (s *Storage) ScatterAdd(l *tensor.Layout, idx tensor.Storage, il *tensor.Layout, src tensor.Storage, sl *tensor.Layout, dim int) (tensor.Storage, error) {
	is, err := asCPU("scatter_add", idx)
	if err != nil {
		return nil, err
	}
	ss, err := asCPU("scatter_add", src)
	if err != nil {
		return nil, err
	}
	ids, err := readIndexes("scatter_add", is, il)
	if err != nil {
		return nil, err
	}
	switch s.DType() {
	case tensor.U8:
		return scatterAddTyped[uint8](s, l, ss, sl, dim, ids)
	case tensor.U32:
		return scatterAddTyped[uint32](s, l, ss, sl, dim, ids)
	case tensor.I64:
		return scatterAddTyped[int64](s, l, ss, sl, dim, ids)
	case tensor.F32:
		return scatterAddTyped[float32](s, l, ss, sl, dim, ids)
	case tensor.F64:
		return scatterAddTyped[float64](s, l, ss, sl, dim, ids)
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "scatter_add", DType: s.DType()}
	}
}

func scatterAddTyped[T tensor.Elem](s *Storage, l *tensor.Layout, srcS *Storage, sl *tensor.Layout, dim int, ids []int) (tensor.Storage, error) {
	base := gatherElems[T](s, l)
	src := gatherElems[T](srcS, sl)
	outer, size, inner := dimSplit(l.Shape(), dim)
	_, m, _ := dimSplit(sl.Shape(), dim)
	out := s.alloc(len(base), s.DType())
	dst := tensor.As[T](out.buf)
	copy(dst, base)
	for o := 0; o < outer; o++ {
		for j := 0; j < m; j++ {
			for i := 0; i < inner; i++ {
				pos := (o*m+j)*inner + i
				id := ids[pos]
				if id < 0 || id >= size {
					return nil, indexBoundsErr("scatter_add", id, size)
				}
				dst[(o*size+id)*inner+i] += src[pos]
			}
		}
	}
	return out, nil
}

// IndexAdd accumulates whole source slices into a copy of the receiver.
func (s *Storage) IndexAdd(l *tensor.Layout, idx tensor.Storage, il *tensor.Layout, src tensor.Storage, sl *tensor.Layout, dim int) (tensor.Storage, error) {
	is, err := asCPU("index_add", idx)
	if err != nil {
		return nil, err
	}
	ss, err := asCPU("index_add", src)
	if err != nil {
		return nil, err
	}
	ids, err := readIndexes("index_add", is, il)
	if err != nil {
		return nil, err
	}
	switch s.DType() {
	case tensor.U8:
		return indexAddTyped[uint8](s, l, ss, sl, dim, ids)
	case tensor.U32:
		return indexAddTyped[uint32](s, l, ss, sl, dim, ids)
	case tensor.I64:
		return indexAddTyped[int64](s, l, ss, sl, dim, ids)
	case tensor.F32:
		return indexAddTyped[float32](s, l, ss, sl, dim, ids)
	case tensor.F64:
		return indexAddTyped[float64](s, l, ss, sl, dim, ids)
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "index_add", DType: s.DType()}
	}
}

func indexAddTyped[T tensor.Elem](s *Storage, l *tensor.Layout, srcS *Storage, sl *tensor.Layout, dim int, ids []int) (tensor.Storage, error) {
	base := gatherElems[T](s, l)
	src := gatherElems[T](srcS, sl)
	outer, size, inner := dimSplit(l.Shape(), dim)
	out := s.alloc(len(base), s.DType())
	dst := tensor.As[T](out.buf)
	copy(dst, base)
	for j, id := range ids {
		if id < 0 || id >= size {
			return nil, indexBoundsErr("index_add", id, size)
		}
		for o := 0; o < outer; o++ {
			for i := 0; i < inner; i++ {
				dst[(o*size+id)*inner+i] += src[(o*len(ids)+j)*inner+i]
			}
		}
	}
	return out, nil
}
