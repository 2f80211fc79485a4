package tensor

import "sort"

// Reductions come in keepdim and squeezing flavors. The kernel always keeps
// the reduced dimensions at size one and the graph edge is recorded on that
// keepdim tensor; the squeezing flavor then removes the size-one dimensions
// with a view, so gradients flow through a reshape edge back onto the keepdim
// result.

func (t *Tensor) normalizeReduceDims(op string, dims []int) ([]int, error) {
	out := make([]int, 0, len(dims))
	for _, dim := range dims {
		d, err := t.Shape().normalizeDim(dim, op)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	sort.Ints(out)
	for i := 1; i < len(out); i++ {
		if out[i] == out[i-1] {
			return nil, &InvalidArgumentError{
				Op: op, Msg: "duplicate reduction dimension", Shape: t.Shape().Clone(), Dim: out[i],
			}
		}
	}
	return out, nil
}

func (t *Tensor) reduceKeepdim(kind ReduceOpKind, dims []int) (*Tensor, error) {
	norm, err := t.normalizeReduceDims(kind.Name(), dims)
	if err != nil {
		return nil, err
	}
	shape := t.Shape().Clone()
	for _, d := range norm {
		shape[d] = 1
	}
	var out Storage
	err = t.withReadStorage(func(s Storage) error {
		var err error
		out, err = s.Reduce(kind, &t.layout, norm)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpReduce{Arg: arg, Kind: kind, Dims: shape} })
	return fromStorage(out, shape, op, false, t.device), nil
}

// squeezeDims removes the given size-one dimensions from a keepdim reduction
// result. No dimensions is a no-op, a single dimension is a plain squeeze,
// multiple dimensions collapse into one reshape.
func (t *Tensor) squeezeDims(dims []int) (*Tensor, error) {
	switch len(dims) {
	case 0:
		return t, nil
	case 1:
		return t.Squeeze(dims[0])
	default:
		shape := make(Shape, 0, t.Rank()-len(dims))
		for i, size := range t.Shape() {
			keep := true
			for _, d := range dims {
				if i == d {
					keep = false
					break
				}
			}
			if keep {
				shape = append(shape, size)
			}
		}
		return t.Reshape(shape)
	}
}

func (t *Tensor) reduce(kind ReduceOpKind, dims []int) (*Tensor, error) {
	norm, err := t.normalizeReduceDims(kind.Name(), dims)
	if err != nil {
		return nil, err
	}
	kept, err := t.reduceKeepdim(kind, norm)
	if err != nil {
		return nil, err
	}
	return kept.squeezeDims(norm)
}

// SumKeepdim sums over the given dimensions, keeping them at size one.
func (t *Tensor) SumKeepdim(dims ...int) (*Tensor, error) {
	return t.reduceKeepdim(ReduceSum, dims)
}

// Sum sums over the given dimensions and removes them from the shape.
func (t *Tensor) Sum(dims ...int) (*Tensor, error) {
	return t.reduce(ReduceSum, dims)
}

// SumAll sums every element into a scalar tensor.
func (t *Tensor) SumAll() (*Tensor, error) {
	dims := make([]int, t.Rank())
	for i := range dims {
		dims[i] = i
	}
	return t.Sum(dims...)
}

// MeanKeepdim averages over the given dimensions, keeping them at size one.
func (t *Tensor) MeanKeepdim(dims ...int) (*Tensor, error) {
	scale, err := t.meanScale("mean", dims)
	if err != nil {
		return nil, err
	}
	kept, err := t.SumKeepdim(dims...)
	if err != nil {
		return nil, err
	}
	return kept.Affine(scale, 0)
}

// Mean averages over the given dimensions and removes them from the shape.
func (t *Tensor) Mean(dims ...int) (*Tensor, error) {
	scale, err := t.meanScale("mean", dims)
	if err != nil {
		return nil, err
	}
	summed, err := t.Sum(dims...)
	if err != nil {
		return nil, err
	}
	return summed.Affine(scale, 0)
}

// MeanAll averages every element into a scalar tensor.
func (t *Tensor) MeanAll() (*Tensor, error) {
	dims := make([]int, t.Rank())
	for i := range dims {
		dims[i] = i
	}
	return t.Mean(dims...)
}

func (t *Tensor) meanScale(op string, dims []int) (float64, error) {
	norm, err := t.normalizeReduceDims(op, dims)
	if err != nil {
		return 0, err
	}
	n := 1
	for _, d := range norm {
		n *= t.Shape()[d]
	}
	if n == 0 {
		return 0, &InvalidArgumentError{
			Op: op, Msg: "cannot average over an empty dimension", Shape: t.Shape().Clone(),
		}
	}
	return 1 / float64(n), nil
}

// MaxKeepdim takes the maximum over one dimension, keeping it at size one.
func (t *Tensor) MaxKeepdim(dim int) (*Tensor, error) {
	return t.reduceKeepdim(ReduceMax, []int{dim})
}

// Max takes the maximum over one dimension and removes it from the shape.
func (t *Tensor) Max(dim int) (*Tensor, error) {
	return t.reduce(ReduceMax, []int{dim})
}

// MinKeepdim takes the minimum over one dimension, keeping it at size one.
func (t *Tensor) MinKeepdim(dim int) (*Tensor, error) {
	return t.reduceKeepdim(ReduceMin, []int{dim})
}

// Min takes the minimum over one dimension and removes it from the shape.
func (t *Tensor) Min(dim int) (*Tensor, error) {
	return t.reduce(ReduceMin, []int{dim})
}

// ArgmaxKeepdim returns the U32 index of the maximum over one dimension,
// keeping it at size one. Ties resolve to the first occurrence.
func (t *Tensor) ArgmaxKeepdim(dim int) (*Tensor, error) {
	return t.reduceKeepdim(ReduceArgMax, []int{dim})
}

// Argmax returns the U32 index of the maximum over one dimension. Ties
// resolve to the first occurrence.
func (t *Tensor) Argmax(dim int) (*Tensor, error) {
	return t.reduce(ReduceArgMax, []int{dim})
}

// ArgminKeepdim returns the U32 index of the minimum over one dimension,
// keeping it at size one. Ties resolve to the first occurrence.
func (t *Tensor) ArgminKeepdim(dim int) (*Tensor, error) {
	return t.reduceKeepdim(ReduceArgMin, []int{dim})
}

// Argmin returns the U32 index of the minimum over one dimension. Ties
// resolve to the first occurrence.
func (t *Tensor) Argmin(dim int) (*Tensor, error) {
	return t.reduce(ReduceArgMin, []int{dim})
}
