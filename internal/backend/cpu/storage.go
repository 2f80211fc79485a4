package cpu

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// Storage is a CPU-resident tensor storage: a typed buffer plus the owning
// device for parallelism settings.
type Storage struct {
	buf *tensor.Buffer
	dev *Device
}

// DType returns the element type.
func (s *Storage) DType() tensor.DType {
	return s.buf.DType()
}

// Device returns the owning device.
func (s *Storage) Device() tensor.Device {
	return s.dev
}

// TryClone copies the full buffer into a fresh storage.
func (s *Storage) TryClone() (tensor.Storage, error) {
	return &Storage{buf: s.buf.Clone(), dev: s.dev}, nil
}

// ToCPU returns the live buffer. The CPU is its own canonical representation,
// so no copy is made; callers treat the result as read-only.
func (s *Storage) ToCPU() (*tensor.Buffer, error) {
	return s.buf, nil
}

// Buffer exposes the raw buffer for in-package kernels and tests.
func (s *Storage) Buffer() *tensor.Buffer {
	return s.buf
}

// asCPU rejects storages produced by other backends.
func asCPU(op string, st tensor.Storage) (*Storage, error) {
	s, ok := st.(*Storage)
	if !ok {
		return nil, &tensor.BackendError{
			Op:  op,
			Err: &tensor.DeviceMismatchError{Op: op, Lhs: cpuLocation, Rhs: st.Device().Location()},
		}
	}
	return s, nil
}

func (s *Storage) alloc(n int, dtype tensor.DType) *Storage {
	return &Storage{buf: tensor.NewBuffer(n, dtype), dev: s.dev}
}

// CopyStrided copies the receiver's logical contents into the destination's
// contiguous buffer starting at the given element offset, coalescing
// contiguous runs.
func (s *Storage) CopyStrided(dst tensor.Storage, dstOffset int, srcLayout *tensor.Layout) error {
	d, err := asCPU("copy_strided", dst)
	if err != nil {
		return err
	}
	if d.DType() != s.DType() {
		return &tensor.DTypeMismatchError{Op: "copy_strided", Lhs: s.DType(), Rhs: d.DType()}
	}
	switch s.DType() {
	case tensor.U8:
		copyStrided[uint8](s, d, dstOffset, srcLayout)
	case tensor.U32:
		copyStrided[uint32](s, d, dstOffset, srcLayout)
	case tensor.I64:
		copyStrided[int64](s, d, dstOffset, srcLayout)
	case tensor.F32:
		copyStrided[float32](s, d, dstOffset, srcLayout)
	case tensor.F64:
		copyStrided[float64](s, d, dstOffset, srcLayout)
	default:
		return &tensor.UnsupportedDTypeError{Op: "copy_strided", DType: s.DType()}
	}
	return nil
}

func copyStrided[T tensor.Elem](src, dst *Storage, dstOffset int, l *tensor.Layout) {
	from := tensor.As[T](src.buf)
	to := tensor.As[T](dst.buf)
	pos := dstOffset
	it := l.StridedBlocksIter()
	for off, length, ok := it.Next(); ok; off, length, ok = it.Next() {
		copy(to[pos:pos+length], from[off:off+length])
		pos += length
	}
}

// gatherElems materializes the logical elements of a layout as a contiguous
// slice in row-major order.
func gatherElems[T tensor.Elem](s *Storage, l *tensor.Layout) []T {
	data := tensor.As[T](s.buf)
	out := make([]T, 0, l.NumElements())
	it := l.StridedBlocksIter()
	for off, length, ok := it.Next(); ok; off, length, ok = it.Next() {
		out = append(out, data[off:off+length]...)
	}
	return out
}

// readIndexes materializes an integer index tensor as []int.
func readIndexes(op string, s *Storage, l *tensor.Layout) ([]int, error) {
	out := make([]int, 0, l.NumElements())
	switch s.DType() {
	case tensor.U8:
		for _, v := range gatherElems[uint8](s, l) {
			out = append(out, int(v))
		}
	case tensor.U32:
		for _, v := range gatherElems[uint32](s, l) {
			out = append(out, int(v))
		}
	case tensor.I64:
		for _, v := range gatherElems[int64](s, l) {
			out = append(out, int(v))
		}
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: op, DType: s.DType()}
	}
	return out, nil
}
