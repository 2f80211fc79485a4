// Copyright 2025 Ember ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package autodiff_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-ml/ember/autodiff"
	"github.com/ember-ml/ember/backend/cpu"
	"github.com/ember-ml/ember/tensor"
)

var dev = cpu.New()

func variable(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	x, err := tensor.VarFromSlice(data, shape, dev)
	require.NoError(t, err)
	return x
}

func gradOf(t *testing.T, grads *autodiff.GradStore, x *tensor.Tensor) []float32 {
	t.Helper()
	g, ok := grads.Get(x)
	require.True(t, ok, "no gradient for %s", x)
	flat, err := g.FlattenAll()
	require.NoError(t, err)
	vals, err := tensor.ToVec1[float32](flat)
	require.NoError(t, err)
	return vals
}

func TestBackwardSqr(t *testing.T) {
	x := variable(t, []float32{1, 2, 3}, tensor.Shape{3})
	y, err := x.Sqr()
	require.NoError(t, err)
	loss, err := y.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	// d/dx sum(x^2) = 2x
	assert.Equal(t, []float32{2, 4, 6}, gradOf(t, grads, x))
}

func TestBackwardAddSub(t *testing.T) {
	a := variable(t, []float32{1, 2}, tensor.Shape{2})
	b := variable(t, []float32{3, 4}, tensor.Shape{2})

	sum, err := a.Add(b)
	require.NoError(t, err)
	diff, err := sum.Sub(b)
	require.NoError(t, err)
	loss, err := diff.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 1}, gradOf(t, grads, a))
	// b contributes +1 through the add and -1 through the sub.
	assert.Equal(t, []float32{0, 0}, gradOf(t, grads, b))
}

func TestBackwardMulDiv(t *testing.T) {
	a := variable(t, []float32{2, 4}, tensor.Shape{2})
	b := variable(t, []float32{4, 2}, tensor.Shape{2})

	q, err := a.Div(b)
	require.NoError(t, err)
	loss, err := q.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	// d(a/b)/da = 1/b, d(a/b)/db = -a/b^2
	assert.Equal(t, []float32{0.25, 0.5}, gradOf(t, grads, a))
	assert.Equal(t, []float32{-0.125, -1}, gradOf(t, grads, b))

	p, err := a.Mul(b)
	require.NoError(t, err)
	loss, err = p.SumAll()
	require.NoError(t, err)
	grads, err = autodiff.Backward(loss)
	require.NoError(t, err)

	assert.Equal(t, []float32{4, 2}, gradOf(t, grads, a))
	assert.Equal(t, []float32{2, 4}, gradOf(t, grads, b))
}

func TestBackwardAffineChain(t *testing.T) {
	x := variable(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	y, err := x.Affine(2, -1)
	require.NoError(t, err)
	y, err = y.Sqr()
	require.NoError(t, err)
	loss, err := y.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	// d/dx (2x-1)^2 = 8x - 4
	assert.Equal(t, []float32{4, 12, 20, 28}, gradOf(t, grads, x))
}

func TestBackwardUnaryRules(t *testing.T) {
	x := variable(t, []float32{0.5, 1, 2}, tensor.Shape{3})

	e, err := x.Exp()
	require.NoError(t, err)
	loss, err := e.SumAll()
	require.NoError(t, err)
	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)
	for i, v := range []float32{0.5, 1, 2} {
		assert.InDelta(t, math.Exp(float64(v)), gradOf(t, grads, x)[i], 1e-5, "exp grad at %v", v)
	}

	l, err := x.Log()
	require.NoError(t, err)
	loss, err = l.SumAll()
	require.NoError(t, err)
	grads, err = autodiff.Backward(loss)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 1, 0.5}, gradOf(t, grads, x))

	s, err := x.Sqrt()
	require.NoError(t, err)
	loss, err = s.SumAll()
	require.NoError(t, err)
	grads, err = autodiff.Backward(loss)
	require.NoError(t, err)
	for i, v := range []float32{0.5, 1, 2} {
		assert.InDelta(t, 0.5/math.Sqrt(float64(v)), gradOf(t, grads, x)[i], 1e-5, "sqrt grad at %v", v)
	}
}

func TestBackwardRelu(t *testing.T) {
	x := variable(t, []float32{-2, -0.5, 0.5, 3}, tensor.Shape{4})
	y, err := x.Relu()
	require.NoError(t, err)
	loss, err := y.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	assert.Equal(t, []float32{0, 0, 1, 1}, gradOf(t, grads, x))
}

func TestBackwardGelu(t *testing.T) {
	inputs := []float32{-1, -0.25, 0.5, 2}
	x := variable(t, inputs, tensor.Shape{4})
	y, err := x.Gelu()
	require.NoError(t, err)
	loss, err := y.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	const (
		c     = 0.7978845608028654
		gamma = 0.044715
	)
	got := gradOf(t, grads, x)
	for i, v := range inputs {
		xf := float64(v)
		u := c * (xf + gamma*xf*xf*xf)
		tanhU := math.Tanh(u)
		want := 0.5*(1+tanhU) + 0.5*xf*(1-tanhU*tanhU)*c*(1+3*gamma*xf*xf)
		assert.InDelta(t, want, got[i], 1e-4, "gelu grad at %v", v)
	}
}

func TestBackwardSumBroadcasts(t *testing.T) {
	x := variable(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	s, err := x.Sum(0)
	require.NoError(t, err)
	loss, err := s.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, gradOf(t, grads, x))
}

func TestBackwardMean(t *testing.T) {
	x := variable(t, []float32{1, 2, 3, 4}, tensor.Shape{4})
	loss, err := x.MeanAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, gradOf(t, grads, x))
}

func TestBackwardMaxRoutesToMaxima(t *testing.T) {
	x := variable(t, []float32{1, 3, 3}, tensor.Shape{3})
	m, err := x.Max(0)
	require.NoError(t, err)

	grads, err := autodiff.Backward(m)
	require.NoError(t, err)

	// Every position holding the maximum receives the gradient.
	assert.Equal(t, []float32{0, 1, 1}, gradOf(t, grads, x))
}

func TestBackwardBroadcastAdd(t *testing.T) {
	col := variable(t, []float32{1, 2}, tensor.Shape{2, 1})
	row := variable(t, []float32{10, 20, 30}, tensor.Shape{1, 3})

	z, err := col.BroadcastAdd(row)
	require.NoError(t, err)
	loss, err := z.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	// Gradients sum over the stretched dimensions back to the operand shape.
	assert.Equal(t, []float32{3, 3}, gradOf(t, grads, col))
	assert.Equal(t, []float32{2, 2, 2}, gradOf(t, grads, row))
}

func TestBackwardMatmul(t *testing.T) {
	a := variable(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := variable(t, []float32{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2})

	c, err := a.Matmul(b)
	require.NoError(t, err)
	loss, err := c.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	// dA = ones(2, 2) . B^T, dB = A^T . ones(2, 2)
	assert.Equal(t, []float32{1, 1, 2, 1, 1, 2}, gradOf(t, grads, a))
	assert.Equal(t, []float32{5, 5, 7, 7, 9, 9}, gradOf(t, grads, b))
}

func TestBackwardTranspose(t *testing.T) {
	x := variable(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	w := variable(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	xt, err := x.T()
	require.NoError(t, err)
	p, err := xt.Matmul(w)
	require.NoError(t, err)
	loss, err := p.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	// dx flows back through the transpose: dx = (ones(3, 3) . w^T)^T.
	assert.Equal(t, []float32{6, 6, 6, 15, 15, 15}, gradOf(t, grads, x))
}

func TestBackwardNarrowAndCat(t *testing.T) {
	x := variable(t, []float32{1, 2, 3, 4}, tensor.Shape{4})
	mid, err := x.Narrow(0, 1, 2)
	require.NoError(t, err)
	loss, err := mid.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 1, 0}, gradOf(t, grads, x))

	a := variable(t, []float32{1, 2}, tensor.Shape{2})
	b := variable(t, []float32{3}, tensor.Shape{1})
	c, err := tensor.Cat([]*tensor.Tensor{a, b}, 0)
	require.NoError(t, err)
	doubled, err := c.Affine(2, 0)
	require.NoError(t, err)
	loss, err = doubled.SumAll()
	require.NoError(t, err)

	grads, err = autodiff.Backward(loss)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, gradOf(t, grads, a))
	assert.Equal(t, []float32{2}, gradOf(t, grads, b))
}

func TestBackwardWhereCond(t *testing.T) {
	cond, err := tensor.FromSlice([]uint8{1, 0, 1}, tensor.Shape{3}, dev)
	require.NoError(t, err)
	a := variable(t, []float32{1, 2, 3}, tensor.Shape{3})
	b := variable(t, []float32{4, 5, 6}, tensor.Shape{3})

	sel, err := cond.WhereCond(a, b)
	require.NoError(t, err)
	loss, err := sel.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 0, 1}, gradOf(t, grads, a))
	assert.Equal(t, []float32{0, 1, 0}, gradOf(t, grads, b))
}

func TestBackwardIndexSelectAccumulates(t *testing.T) {
	table := variable(t, []float32{0, 1, 2, 3, 4, 5}, tensor.Shape{3, 2})
	ids, err := tensor.FromSlice([]uint32{2, 1, 2}, tensor.Shape{3}, dev)
	require.NoError(t, err)

	sel, err := table.IndexSelect(0, ids)
	require.NoError(t, err)
	loss, err := sel.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	// Row 2 is selected twice, so its gradient doubles.
	assert.Equal(t, []float32{0, 0, 1, 1, 2, 2}, gradOf(t, grads, table))
}

func TestBackwardGatherScatter(t *testing.T) {
	x := variable(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	ids, err := tensor.FromSlice([]uint32{0, 0, 1, 0}, tensor.Shape{2, 2}, dev)
	require.NoError(t, err)

	g, err := x.Gather(1, ids)
	require.NoError(t, err)
	loss, err := g.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	// Column 0 of row 0 is gathered twice; column 1 of row 0 never.
	assert.Equal(t, []float32{2, 0, 1, 1}, gradOf(t, grads, x))
}

func TestBackwardDetachStopsFlow(t *testing.T) {
	x := variable(t, []float32{2, 3}, tensor.Shape{2})
	frozen := x.Detach()

	p, err := x.Mul(frozen)
	require.NoError(t, err)
	loss, err := p.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	// The detached operand acts as a constant, so d/dx sum(x * const) = const.
	assert.Equal(t, []float32{2, 3}, gradOf(t, grads, x))
}

func TestBackwardReshapeAndPermute(t *testing.T) {
	x := variable(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	r, err := x.Reshape(tensor.Shape{3, 2})
	require.NoError(t, err)
	p, err := r.Transpose(0, 1)
	require.NoError(t, err)
	scaled, err := p.Affine(3, 0)
	require.NoError(t, err)
	loss, err := scaled.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	assert.Equal(t, []float32{3, 3, 3, 3, 3, 3}, gradOf(t, grads, x))
}

func TestBackwardConv2D(t *testing.T) {
	input := variable(t, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 1, 3, 3})
	kernel := variable(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	out, err := input.Conv2D(kernel, 0, 1)
	require.NoError(t, err)
	loss, err := out.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	// Each input cell receives one unit per sliding window covering it.
	assert.Equal(t, []float32{1, 2, 1, 2, 4, 2, 1, 2, 1}, gradOf(t, grads, input))
	// Each kernel tap sums the input values it touched across all windows.
	assert.Equal(t, []float32{8, 12, 20, 24}, gradOf(t, grads, kernel))
}

func TestBackwardPool2D(t *testing.T) {
	x := variable(t, []float32{1, 3, 2, 0}, tensor.Shape{1, 1, 2, 2})
	mx, err := x.MaxPool2D(2, 2)
	require.NoError(t, err)
	loss, err := mx.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 0}, gradOf(t, grads, x))

	y := variable(t, []float32{1, 3, 2, 0}, tensor.Shape{1, 1, 2, 2})
	avg, err := y.AvgPool2D(2, 2)
	require.NoError(t, err)
	loss, err = avg.SumAll()
	require.NoError(t, err)

	grads, err = autodiff.Backward(loss)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, gradOf(t, grads, y))
}

func TestBackwardIntRootRejected(t *testing.T) {
	x, err := tensor.FromSlice([]int64{1, 2}, tensor.Shape{2}, dev)
	require.NoError(t, err)

	_, err = autodiff.Backward(x)
	var unsupported *tensor.UnsupportedDTypeError
	require.True(t, errors.As(err, &unsupported), "Backward on i64 = %v, want UnsupportedDTypeError", err)
}

func TestBackwardCmpRejected(t *testing.T) {
	a := variable(t, []float32{1, 2}, tensor.Shape{2})
	b := variable(t, []float32{2, 2}, tensor.Shape{2})

	mask, err := a.Ge(b)
	require.NoError(t, err)
	f, err := mask.ToDType(tensor.F32)
	require.NoError(t, err)
	loss, err := f.SumAll()
	require.NoError(t, err)

	_, err = autodiff.Backward(loss)
	var notSupported *tensor.BackwardNotSupportedError
	require.True(t, errors.As(err, &notSupported), "Backward through cmp = %v, want BackwardNotSupportedError", err)
}

func TestGradStore(t *testing.T) {
	gs := autodiff.NewGradStore()
	x := variable(t, []float32{1}, tensor.Shape{1})
	g := variable(t, []float32{7}, tensor.Shape{1})

	_, ok := gs.Get(x)
	require.False(t, ok)

	gs.Insert(x, g)
	require.Equal(t, 1, gs.Len())
	got, ok := gs.Get(x)
	require.True(t, ok)
	require.Same(t, g, got)

	byID, ok := gs.GetByID(x.ID())
	require.True(t, ok)
	require.Same(t, g, byID)
	_, ok = gs.GetByID(g.ID())
	require.False(t, ok)

	removed, ok := gs.Remove(x)
	require.True(t, ok)
	require.Same(t, g, removed)
	require.Equal(t, 0, gs.Len())
}
