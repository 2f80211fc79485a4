package cpu

import (
	"errors"
	"testing"

	"github.com/ember-ml/ember/internal/tensor"
)

func storageFrom[T tensor.Elem](t *testing.T, data []T) *Storage {
	t.Helper()
	st, err := New().FromCPU(tensor.BufferFromSlice(data))
	if err != nil {
		t.Fatalf("FromCPU: %v", err)
	}
	return st.(*Storage)
}

func f32SliceEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > 1e-6 {
			return false
		}
	}
	return true
}

func TestDeviceLocation(t *testing.T) {
	if New().Location() != (tensor.DeviceLocation{Backend: "cpu"}) {
		t.Errorf("Location() = %v, want cpu", New().Location())
	}
	at := NewAt(1)
	if at.Location().Ordinal != 1 {
		t.Errorf("NewAt(1).Location() = %v, want ordinal 1", at.Location())
	}
	if tensor.SameDevice(New(), at) {
		t.Error("distinct ordinals compare as the same device")
	}
}

func TestDeviceZerosOnes(t *testing.T) {
	z, err := New().Zeros(tensor.Shape{2, 3}, tensor.F32)
	if err != nil {
		t.Fatalf("Zeros: %v", err)
	}
	for _, v := range z.(*Storage).Buffer().AsF32() {
		if v != 0 {
			t.Fatal("Zeros produced a non-zero element")
		}
	}

	o, err := New().Ones(tensor.Shape{4}, tensor.I64)
	if err != nil {
		t.Fatalf("Ones: %v", err)
	}
	for _, v := range o.(*Storage).Buffer().AsI64() {
		if v != 1 {
			t.Fatal("Ones produced a non-one element")
		}
	}
}

func TestDeviceRandIntRejected(t *testing.T) {
	_, err := New().RandUniform(tensor.Shape{2}, tensor.U8, 0, 1)
	var unsupported *tensor.UnsupportedDTypeError
	if !errors.As(err, &unsupported) {
		t.Errorf("RandUniform on u8 = %v, want UnsupportedDTypeError", err)
	}
}

func TestUnaryKernelStrided(t *testing.T) {
	s := storageFrom(t, []float32{1, 2, 3, 4, 5, 6})
	l := tensor.ContiguousLayout(tensor.Shape{2, 3})
	tl, err := l.Transpose(0, 1)
	if err != nil {
		t.Fatalf("Transpose: %v", err)
	}

	out, err := s.Unary(tensor.UnaryNeg, &tl)
	if err != nil {
		t.Fatalf("Unary: %v", err)
	}
	// The result is materialized in the view's logical order.
	want := []float32{-1, -4, -2, -5, -3, -6}
	if got := out.(*Storage).Buffer().AsF32(); !f32SliceEqual(want, got) {
		t.Errorf("neg of transposed view = %v, want %v", got, want)
	}
}

func TestBinaryKernel(t *testing.T) {
	a := storageFrom(t, []float32{1, 2, 3, 4})
	b := storageFrom(t, []float32{10, 20, 30, 40})
	l := tensor.ContiguousLayout(tensor.Shape{4})

	out, err := a.Binary(tensor.BinaryAdd, b, &l, &l)
	if err != nil {
		t.Fatalf("Binary: %v", err)
	}
	want := []float32{11, 22, 33, 44}
	if got := out.(*Storage).Buffer().AsF32(); !f32SliceEqual(want, got) {
		t.Errorf("add = %v, want %v", got, want)
	}
}

func TestBinaryKernelBroadcastView(t *testing.T) {
	a := storageFrom(t, []float32{1, 2, 3, 4, 5, 6})
	row := storageFrom(t, []float32{10, 20, 30})
	al := tensor.ContiguousLayout(tensor.Shape{2, 3})
	rl := tensor.ContiguousLayout(tensor.Shape{3})
	bl, err := rl.BroadcastAs(tensor.Shape{2, 3})
	if err != nil {
		t.Fatalf("BroadcastAs: %v", err)
	}

	out, err := a.Binary(tensor.BinaryAdd, row, &al, &bl)
	if err != nil {
		t.Fatalf("Binary: %v", err)
	}
	want := []float32{11, 22, 33, 14, 25, 36}
	if got := out.(*Storage).Buffer().AsF32(); !f32SliceEqual(want, got) {
		t.Errorf("broadcast add = %v, want %v", got, want)
	}
}

func TestCmpKernel(t *testing.T) {
	a := storageFrom(t, []int64{1, 5, 3})
	b := storageFrom(t, []int64{2, 4, 3})
	l := tensor.ContiguousLayout(tensor.Shape{3})

	out, err := a.Cmp(tensor.CmpGe, b, &l, &l)
	if err != nil {
		t.Fatalf("Cmp: %v", err)
	}
	if out.DType() != tensor.U8 {
		t.Fatalf("Cmp dtype = %s, want u8", out.DType())
	}
	got := out.(*Storage).Buffer().AsU8()
	want := []uint8{0, 1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cmp = %v, want %v", got, want)
		}
	}
}

func TestReduceSumKeepsUnitDims(t *testing.T) {
	s := storageFrom(t, []float32{0, 1, 2, 3, 4, 5})
	l := tensor.ContiguousLayout(tensor.Shape{3, 2})

	out, err := s.Reduce(tensor.ReduceSum, &l, []int{0})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	want := []float32{6, 9}
	if got := out.(*Storage).Buffer().AsF32(); !f32SliceEqual(want, got) {
		t.Errorf("sum dim 0 = %v, want %v", got, want)
	}

	out, err = s.Reduce(tensor.ReduceSum, &l, []int{0, 1})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if got := out.(*Storage).Buffer().AsF32(); !f32SliceEqual([]float32{15}, got) {
		t.Errorf("sum all = %v, want [15]", got)
	}
}

func TestReduceArgMaxFirstOccurrence(t *testing.T) {
	s := storageFrom(t, []float32{3, 1, 3})
	l := tensor.ContiguousLayout(tensor.Shape{3})

	out, err := s.Reduce(tensor.ReduceArgMax, &l, []int{0})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if out.DType() != tensor.U32 {
		t.Fatalf("argmax dtype = %s, want u32", out.DType())
	}
	if got := out.(*Storage).Buffer().AsU32(); got[0] != 0 {
		t.Errorf("argmax([3, 1, 3]) = %d, want 0", got[0])
	}
}

func TestReduceArgMultiDimRejected(t *testing.T) {
	s := storageFrom(t, []float32{1, 2, 3, 4})
	l := tensor.ContiguousLayout(tensor.Shape{2, 2})
	if _, err := s.Reduce(tensor.ReduceArgMax, &l, []int{0, 1}); err == nil {
		t.Error("argmax over two dims succeeded, want error")
	}
}

func TestCopyStridedTransposed(t *testing.T) {
	src := storageFrom(t, []float32{0, 1, 2, 3, 4, 5})
	l := tensor.ContiguousLayout(tensor.Shape{2, 3})
	tl, err := l.Transpose(0, 1)
	if err != nil {
		t.Fatalf("Transpose: %v", err)
	}

	dst, err := New().Zeros(tensor.Shape{6}, tensor.F32)
	if err != nil {
		t.Fatalf("Zeros: %v", err)
	}
	if err := src.CopyStrided(dst, 0, &tl); err != nil {
		t.Fatalf("CopyStrided: %v", err)
	}
	want := []float32{0, 3, 1, 4, 2, 5}
	if got := dst.(*Storage).Buffer().AsF32(); !f32SliceEqual(want, got) {
		t.Errorf("strided copy = %v, want %v", got, want)
	}
}

func TestCopyStridedOffset(t *testing.T) {
	src := storageFrom(t, []float32{7, 8})
	l := tensor.ContiguousLayout(tensor.Shape{2})

	dst, err := New().Zeros(tensor.Shape{5}, tensor.F32)
	if err != nil {
		t.Fatalf("Zeros: %v", err)
	}
	if err := src.CopyStrided(dst, 2, &l); err != nil {
		t.Fatalf("CopyStrided: %v", err)
	}
	want := []float32{0, 0, 7, 8, 0}
	if got := dst.(*Storage).Buffer().AsF32(); !f32SliceEqual(want, got) {
		t.Errorf("offset copy = %v, want %v", got, want)
	}
}

func TestMatmulKernel(t *testing.T) {
	a := storageFrom(t, []float32{0, 1, 2, 3, 4, 5})
	b := storageFrom(t, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})
	al := tensor.ContiguousLayout(tensor.Shape{2, 3})
	bl := tensor.ContiguousLayout(tensor.Shape{3, 4})

	out, err := a.Matmul(b, 1, 2, 4, 3, &al, &bl)
	if err != nil {
		t.Fatalf("Matmul: %v", err)
	}
	want := []float32{20, 23, 26, 29, 56, 68, 80, 92}
	if got := out.(*Storage).Buffer().AsF32(); !f32SliceEqual(want, got) {
		t.Errorf("matmul = %v, want %v", got, want)
	}
}

func TestMatmulKernelIntRejected(t *testing.T) {
	a := storageFrom(t, []int64{1, 2, 3, 4})
	l := tensor.ContiguousLayout(tensor.Shape{2, 2})
	_, err := a.Matmul(a, 1, 2, 2, 2, &l, &l)
	var unsupported *tensor.UnsupportedDTypeError
	if !errors.As(err, &unsupported) {
		t.Errorf("int matmul = %v, want UnsupportedDTypeError", err)
	}
}

func TestToDTypeKernel(t *testing.T) {
	s := storageFrom(t, []float32{1.9, -0.5, 250})
	l := tensor.ContiguousLayout(tensor.Shape{3})

	out, err := s.ToDType(&l, tensor.I64)
	if err != nil {
		t.Fatalf("ToDType: %v", err)
	}
	got := out.(*Storage).Buffer().AsI64()
	want := []int64{1, 0, 250}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cast = %v, want %v", got, want)
		}
	}
}

func TestIndexSelectKernelBounds(t *testing.T) {
	s := storageFrom(t, []float32{1, 2, 3})
	idx := storageFrom(t, []uint32{7})
	l := tensor.ContiguousLayout(tensor.Shape{3})
	il := tensor.ContiguousLayout(tensor.Shape{1})

	_, err := s.IndexSelect(idx, &l, &il, 0)
	var invalid *tensor.InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Errorf("out-of-bounds index = %v, want InvalidArgumentError", err)
	}
}

func TestWhereCondKernel(t *testing.T) {
	cond := storageFrom(t, []uint8{1, 0, 0, 1})
	a := storageFrom(t, []float32{1, 2, 3, 4})
	b := storageFrom(t, []float32{5, 6, 7, 8})
	l := tensor.ContiguousLayout(tensor.Shape{4})

	out, err := cond.WhereCond(&l, a, &l, b, &l)
	if err != nil {
		t.Fatalf("WhereCond: %v", err)
	}
	want := []float32{1, 6, 7, 4}
	if got := out.(*Storage).Buffer().AsF32(); !f32SliceEqual(want, got) {
		t.Errorf("where_cond = %v, want %v", got, want)
	}
}

func TestAvgPoolKernel(t *testing.T) {
	s := storageFrom(t, []float32{1, 2, 3, 4})
	l := tensor.ContiguousLayout(tensor.Shape{1, 1, 2, 2})

	out, err := s.AvgPool2D(&l, 2, 2, 2, 2)
	if err != nil {
		t.Fatalf("AvgPool2D: %v", err)
	}
	if got := out.(*Storage).Buffer().AsF32(); !f32SliceEqual([]float32{2.5}, got) {
		t.Errorf("avg pool = %v, want [2.5]", got)
	}
}

func TestUpsampleNearestKernel(t *testing.T) {
	s := storageFrom(t, []float32{1, 2, 3, 4})
	l := tensor.ContiguousLayout(tensor.Shape{1, 1, 2, 2})

	out, err := s.UpsampleNearest2D(&l, 4, 4)
	if err != nil {
		t.Fatalf("UpsampleNearest2D: %v", err)
	}
	want := []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	if got := out.(*Storage).Buffer().AsF32(); !f32SliceEqual(want, got) {
		t.Errorf("upsample = %v, want %v", got, want)
	}
}
