package tensor

// Conditional selection and the index-tensor family. Index tensors carry an
// integer dtype and live on the same device as the data they index.

// WhereCond selects elements from onTrue where the receiver is non-zero and
// from onFalse elsewhere. All three tensors share one shape.
func (t *Tensor) WhereCond(onTrue, onFalse *Tensor) (*Tensor, error) {
	shape, err := onTrue.sameShapeBinaryOp(onFalse, "where_cond")
	if err != nil {
		return nil, err
	}
	if !SameDevice(t.device, onTrue.device) {
		return nil, &DeviceMismatchError{Op: "where_cond", Lhs: t.device.Location(), Rhs: onTrue.device.Location()}
	}
	if !t.Shape().Equal(shape) {
		return nil, &ShapeMismatchError{Op: "where_cond", Lhs: t.Shape().Clone(), Rhs: shape.Clone()}
	}
	var out Storage
	err = withReadStorage3(t, onTrue, onFalse, func(sc, st, sf Storage) error {
		var err error
		out, err = sc.WhereCond(&t.layout, st, &onTrue.layout, sf, &onFalse.layout)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew3(t, onTrue, onFalse, func(c, tt, ff *Tensor) Op {
		return &OpWhereCond{Cond: c, OnTrue: tt, OnFalse: ff}
	})
	return fromStorage(out, shape.Clone(), op, false, onTrue.device), nil
}

func checkIndexTensor(op string, data, idx *Tensor) error {
	if !idx.dtype.IsInt() {
		return &UnsupportedDTypeError{Op: op, DType: idx.dtype}
	}
	if !SameDevice(data.device, idx.device) {
		return &DeviceMismatchError{Op: op, Lhs: data.device.Location(), Rhs: idx.device.Location()}
	}
	return nil
}

// IndexSelect picks whole slices along dim according to a rank-1 index
// tensor. The result replaces the size of dim with the number of indexes.
func (t *Tensor) IndexSelect(dim int, indexes *Tensor) (*Tensor, error) {
	d, err := t.Shape().normalizeDim(dim, "index_select")
	if err != nil {
		return nil, err
	}
	if err := checkIndexTensor("index_select", t, indexes); err != nil {
		return nil, err
	}
	if indexes.Rank() != 1 {
		return nil, &UnexpectedRankError{Op: "index_select", Expected: 1, Got: indexes.Rank(), Shape: indexes.Shape().Clone()}
	}
	var out Storage
	err = withReadStorage2(t, indexes, func(s, is Storage) error {
		var err error
		out, err = s.IndexSelect(is, &t.layout, &indexes.layout, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	shape := t.Shape().Clone()
	shape[d] = indexes.NumElements()
	op := opNew2(t, indexes, func(arg, idx *Tensor) Op {
		return &OpIndexSelect{Arg: arg, Index: idx, Dim: d}
	})
	return fromStorage(out, shape, op, false, t.device), nil
}

// Embedding looks up rows of a (vocab, hidden) table by a rank-1 id tensor.
func (t *Tensor) Embedding(ids *Tensor) (*Tensor, error) {
	if t.Rank() != 2 {
		return nil, &UnexpectedRankError{Op: "embedding", Expected: 2, Got: t.Rank(), Shape: t.Shape().Clone()}
	}
	if ids.Rank() != 1 {
		return nil, &UnexpectedRankError{Op: "embedding", Expected: 1, Got: ids.Rank(), Shape: ids.Shape().Clone()}
	}
	return t.IndexSelect(0, ids)
}

// Gather picks individual elements along dim: out[i...] = t at the same
// multi-index with dim replaced by indexes[i...]. The index tensor has the
// receiver's rank and matches its shape outside dim; the result takes the
// index tensor's shape.
func (t *Tensor) Gather(dim int, indexes *Tensor) (*Tensor, error) {
	d, err := t.Shape().normalizeDim(dim, "gather")
	if err != nil {
		return nil, err
	}
	if err := checkIndexTensor("gather", t, indexes); err != nil {
		return nil, err
	}
	if indexes.Rank() != t.Rank() {
		return nil, &UnexpectedRankError{Op: "gather", Expected: t.Rank(), Got: indexes.Rank(), Shape: indexes.Shape().Clone()}
	}
	for i := range t.Shape() {
		if i != d && indexes.Shape()[i] != t.Shape()[i] {
			return nil, &ShapeMismatchError{Op: "gather", Lhs: t.Shape().Clone(), Rhs: indexes.Shape().Clone()}
		}
	}
	var out Storage
	err = withReadStorage2(t, indexes, func(s, is Storage) error {
		var err error
		out, err = s.Gather(&t.layout, is, &indexes.layout, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew2(t, indexes, func(arg, idx *Tensor) Op {
		return &OpGather{Arg: arg, Index: idx, Dim: d}
	})
	return fromStorage(out, indexes.Shape().Clone(), op, false, t.device), nil
}

// ScatterAdd accumulates source elements into a copy of the receiver:
// out[idx[i...], ...] += source[i...] along dim. The index and source tensors
// share one shape, which matches the receiver's outside dim.
func (t *Tensor) ScatterAdd(dim int, indexes, source *Tensor) (*Tensor, error) {
	d, err := t.Shape().normalizeDim(dim, "scatter_add")
	if err != nil {
		return nil, err
	}
	if err := checkIndexTensor("scatter_add", t, indexes); err != nil {
		return nil, err
	}
	if t.dtype != source.dtype {
		return nil, &DTypeMismatchError{Op: "scatter_add", Lhs: t.dtype, Rhs: source.dtype}
	}
	if !indexes.Shape().Equal(source.Shape()) {
		return nil, &ShapeMismatchError{Op: "scatter_add", Lhs: indexes.Shape().Clone(), Rhs: source.Shape().Clone()}
	}
	if source.Rank() != t.Rank() {
		return nil, &UnexpectedRankError{Op: "scatter_add", Expected: t.Rank(), Got: source.Rank(), Shape: source.Shape().Clone()}
	}
	for i := range t.Shape() {
		if i != d && source.Shape()[i] != t.Shape()[i] {
			return nil, &ShapeMismatchError{Op: "scatter_add", Lhs: t.Shape().Clone(), Rhs: source.Shape().Clone()}
		}
	}
	var out Storage
	err = withReadStorage3(t, indexes, source, func(s, is, ss Storage) error {
		var err error
		out, err = s.ScatterAdd(&t.layout, is, &indexes.layout, ss, &source.layout, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew3(t, indexes, source, func(arg, idx, src *Tensor) Op {
		return &OpScatterAdd{Arg: arg, Index: idx, Source: src, Dim: d}
	})
	return fromStorage(out, t.Shape().Clone(), op, false, t.device), nil
}

// IndexAdd accumulates whole source slices into a copy of the receiver:
// out[idx[i]] += source[i] along dim, with a rank-1 index tensor whose length
// equals the source's size along dim.
func (t *Tensor) IndexAdd(dim int, indexes, source *Tensor) (*Tensor, error) {
	d, err := t.Shape().normalizeDim(dim, "index_add")
	if err != nil {
		return nil, err
	}
	if err := checkIndexTensor("index_add", t, indexes); err != nil {
		return nil, err
	}
	if t.dtype != source.dtype {
		return nil, &DTypeMismatchError{Op: "index_add", Lhs: t.dtype, Rhs: source.dtype}
	}
	if indexes.Rank() != 1 {
		return nil, &UnexpectedRankError{Op: "index_add", Expected: 1, Got: indexes.Rank(), Shape: indexes.Shape().Clone()}
	}
	if source.Rank() != t.Rank() {
		return nil, &UnexpectedRankError{Op: "index_add", Expected: t.Rank(), Got: source.Rank(), Shape: source.Shape().Clone()}
	}
	for i := range t.Shape() {
		want := t.Shape()[i]
		if i == d {
			want = indexes.NumElements()
		}
		if source.Shape()[i] != want {
			return nil, &ShapeMismatchError{Op: "index_add", Lhs: t.Shape().Clone(), Rhs: source.Shape().Clone()}
		}
	}
	var out Storage
	err = withReadStorage3(t, indexes, source, func(s, is, ss Storage) error {
		var err error
		out, err = s.IndexAdd(&t.layout, is, &indexes.layout, ss, &source.layout, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew3(t, indexes, source, func(arg, idx, src *Tensor) Op {
		return &OpIndexAdd{Arg: arg, Index: idx, Source: src, Dim: d}
	})
	return fromStorage(out, t.Shape().Clone(), op, false, t.device), nil
}
