package tensor

import (
	"fmt"
	"unsafe"
)

// Buffer is the canonical CPU-resident representation of a storage's raw
// elements: a typed byte buffer with zero-copy views per element type.
// Device backends transfer to and from this representation when moving
// tensors across devices.
type Buffer struct {
	data  []byte
	dtype DType
}

// NewBuffer allocates a zero-filled buffer for n elements of the given dtype.
func NewBuffer(n int, dtype DType) *Buffer {
	return &Buffer{
		data:  make([]byte, n*dtype.Size()),
		dtype: dtype,
	}
}

// BufferFromSlice copies a Go slice into a freshly allocated buffer.
func BufferFromSlice[T Elem](data []T) *Buffer {
	b := NewBuffer(len(data), DTypeOf[T]())
	copy(asSlice[T](b), data)
	return b
}

// DType returns the buffer's element type.
func (b *Buffer) DType() DType {
	return b.dtype
}

// Len returns the number of elements in the buffer.
func (b *Buffer) Len() int {
	return len(b.data) / b.dtype.Size()
}

// ByteSize returns the total memory size in bytes.
func (b *Buffer) ByteSize() int {
	return len(b.data)
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{
		data:  make([]byte, len(b.data)),
		dtype: b.dtype,
	}
	copy(c.data, b.data)
	return c
}

// As interprets the data as []T. Panics if T does not match the dtype.
func As[T Elem](b *Buffer) []T {
	if want := DTypeOf[T](); b.dtype != want {
		panic(fmt.Sprintf("buffer dtype is %s, not %s", b.dtype, want))
	}
	return asSlice[T](b)
}

func asSlice[T Elem](b *Buffer) []T {
	if len(b.data) == 0 {
		return nil
	}
	n := b.Len()
	//nolint:gosec // zero-copy reinterpretation, length derived from the allocation
	return unsafe.Slice((*T)(unsafe.Pointer(&b.data[0])), n)
}

// AsU8 interprets the data as []uint8. Panics if the dtype is not U8.
func (b *Buffer) AsU8() []uint8 {
	b.checkDType(U8)
	return b.data
}

// AsU32 interprets the data as []uint32. Panics if the dtype is not U32.
func (b *Buffer) AsU32() []uint32 {
	b.checkDType(U32)
	return asSlice[uint32](b)
}

// AsI64 interprets the data as []int64. Panics if the dtype is not I64.
func (b *Buffer) AsI64() []int64 {
	b.checkDType(I64)
	return asSlice[int64](b)
}

// AsF32 interprets the data as []float32. Panics if the dtype is not F32.
func (b *Buffer) AsF32() []float32 {
	b.checkDType(F32)
	return asSlice[float32](b)
}

// AsF64 interprets the data as []float64. Panics if the dtype is not F64.
func (b *Buffer) AsF64() []float64 {
	b.checkDType(F64)
	return asSlice[float64](b)
}

func (b *Buffer) checkDType(want DType) {
	if b.dtype != want {
		panic(fmt.Sprintf("buffer dtype is %s, not %s", b.dtype, want))
	}
}
