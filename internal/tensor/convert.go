package tensor

// Readback into Go values. The data is pulled through the CPU representation
// and walked in row-major logical order, so views and broadcasts read back
// exactly what they present.

func readFlat[T Elem](t *Tensor, op string) ([]T, error) {
	if want := DTypeOf[T](); want != t.dtype {
		return nil, &DTypeMismatchError{Op: op, Lhs: t.dtype, Rhs: want}
	}
	out := make([]T, 0, t.NumElements())
	err := t.withReadStorage(func(s Storage) error {
		buf, err := s.ToCPU()
		if err != nil {
			return &BackendError{Op: op, Err: err}
		}
		data := asSlice[T](buf)
		it := t.layout.StridedIndexIter()
		for off, ok := it.Next(); ok; off, ok = it.Next() {
			out = append(out, data[off])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ToScalar extracts the single element of a rank-0 tensor.
func ToScalar[T Elem](t *Tensor) (T, error) {
	var zero T
	if t.Rank() != 0 {
		return zero, &UnexpectedRankError{Op: "to_scalar", Expected: 0, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	flat, err := readFlat[T](t, "to_scalar")
	if err != nil {
		return zero, err
	}
	return flat[0], nil
}

// ToVec1 extracts a rank-1 tensor as a Go slice.
func ToVec1[T Elem](t *Tensor) ([]T, error) {
	if t.Rank() != 1 {
		return nil, &UnexpectedRankError{Op: "to_vec1", Expected: 1, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	return readFlat[T](t, "to_vec1")
}

// ToVec2 extracts a rank-2 tensor as nested Go slices.
func ToVec2[T Elem](t *Tensor) ([][]T, error) {
	if t.Rank() != 2 {
		return nil, &UnexpectedRankError{Op: "to_vec2", Expected: 2, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	flat, err := readFlat[T](t, "to_vec2")
	if err != nil {
		return nil, err
	}
	rows, cols := t.Shape()[0], t.Shape()[1]
	out := make([][]T, rows)
	for i := 0; i < rows; i++ {
		out[i] = flat[i*cols : (i+1)*cols]
	}
	return out, nil
}

// ToVec3 extracts a rank-3 tensor as nested Go slices.
func ToVec3[T Elem](t *Tensor) ([][][]T, error) {
	if t.Rank() != 3 {
		return nil, &UnexpectedRankError{Op: "to_vec3", Expected: 3, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	flat, err := readFlat[T](t, "to_vec3")
	if err != nil {
		return nil, err
	}
	d0, d1, d2 := t.Shape()[0], t.Shape()[1], t.Shape()[2]
	out := make([][][]T, d0)
	for i := 0; i < d0; i++ {
		out[i] = make([][]T, d1)
		for j := 0; j < d1; j++ {
			base := (i*d1 + j) * d2
			out[i][j] = flat[base : base+d2]
		}
	}
	return out, nil
}
