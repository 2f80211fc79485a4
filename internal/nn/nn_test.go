package nn

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/tensor"
)

var dev = cpu.New()

func mustVar(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	v, err := tensor.VarFromSlice(data, shape, dev)
	require.NoError(t, err)
	return v
}

func TestVarStoreGetCreatesVariable(t *testing.T) {
	vs := NewVarStore(dev, tensor.F32)
	v, err := vs.Get("layer.weight", tensor.Shape{2, 3}, ZerosInit{})
	require.NoError(t, err)

	assert.True(t, v.IsVariable())
	assert.True(t, v.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, tensor.F32, v.DType())
}

func TestVarStoreGetReturnsExisting(t *testing.T) {
	vs := NewVarStore(dev, tensor.F32)
	a, err := vs.Get("w", tensor.Shape{4}, ZerosInit{})
	require.NoError(t, err)
	b, err := vs.Get("w", tensor.Shape{4}, NormalInit{Std: 1})
	require.NoError(t, err)

	assert.Same(t, a, b, "second lookup must return the stored variable")
}

func TestVarStoreGetShapeMismatch(t *testing.T) {
	vs := NewVarStore(dev, tensor.F32)
	_, err := vs.Get("w", tensor.Shape{4}, ZerosInit{})
	require.NoError(t, err)

	_, err = vs.Get("w", tensor.Shape{5}, ZerosInit{})
	var mismatch *tensor.ShapeMismatchError
	require.True(t, errors.As(err, &mismatch), "Get with new shape = %v, want ShapeMismatchError", err)
}

func TestVarStoreAll(t *testing.T) {
	vs := NewVarStore(dev, tensor.F32)
	_, err := vs.Get("a", tensor.Shape{1}, ZerosInit{})
	require.NoError(t, err)
	_, err = vs.Get("b", tensor.Shape{2}, ZerosInit{})
	require.NoError(t, err)

	all := vs.All()
	assert.Len(t, all, 2)
	assert.Contains(t, all, "a")
	assert.Contains(t, all, "b")
}

func TestKaimingUniformBound(t *testing.T) {
	shape := tensor.Shape{8, 50}
	p, err := KaimingUniformInit{}.New(shape, tensor.F32, dev)
	require.NoError(t, err)

	flat, err := p.FlattenAll()
	require.NoError(t, err)
	vals, err := tensor.ToVec1[float32](flat)
	require.NoError(t, err)

	bound := math.Sqrt(3.0) * math.Sqrt(2.0/50.0)
	for _, v := range vals {
		require.LessOrEqual(t, math.Abs(float64(v)), bound*(1+1e-6))
	}
}

func TestLinearForward(t *testing.T) {
	l := &Linear{
		weight: mustVar(t, []float32{1, 0, 0, 0, 1, 0}, tensor.Shape{2, 3}),
		bias:   mustVar(t, []float32{10, 20}, tensor.Shape{2}),
	}

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, dev)
	require.NoError(t, err)
	y, err := l.Forward(x)
	require.NoError(t, err)

	got, err := tensor.ToVec2[float32](y)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{11, 22}, {14, 25}}, got)
}

func TestLinearForwardBatched(t *testing.T) {
	vs := NewVarStore(dev, tensor.F32)
	l, err := NewLinear(vs, "fc", 4, 3)
	require.NoError(t, err)

	x, err := tensor.Zeros(tensor.Shape{5, 2, 4}, tensor.F32, dev)
	require.NoError(t, err)
	y, err := l.Forward(x)
	require.NoError(t, err)

	assert.True(t, y.Shape().Equal(tensor.Shape{5, 2, 3}), "forward shape = %v", y.Shape())
}

func TestLinearNoBias(t *testing.T) {
	vs := NewVarStore(dev, tensor.F32)
	l, err := NewLinearNoBias(vs, "fc", 3, 2)
	require.NoError(t, err)
	assert.Nil(t, l.Bias())
	assert.Len(t, vs.All(), 1)
}

func TestLinearBackward(t *testing.T) {
	l := &Linear{
		weight: mustVar(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}),
	}

	x, err := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 2}, dev)
	require.NoError(t, err)
	y, err := l.Forward(x)
	require.NoError(t, err)
	loss, err := y.SumAll()
	require.NoError(t, err)

	grads, err := autodiff.Backward(loss)
	require.NoError(t, err)

	gw, ok := grads.Get(l.weight)
	require.True(t, ok)
	got, err := tensor.ToVec2[float32](gw)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {1, 1}}, got)
}

func TestEmbeddingForward(t *testing.T) {
	e := &Embedding{
		embeddings: mustVar(t, []float32{0, 1, 2, 3, 4, 5}, tensor.Shape{3, 2}),
	}

	ids, err := tensor.FromSlice([]uint32{2, 1, 2}, tensor.Shape{3}, dev)
	require.NoError(t, err)
	out, err := e.Forward(ids)
	require.NoError(t, err)

	got, err := tensor.ToVec2[float32](out)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{4, 5}, {2, 3}, {4, 5}}, got)
}

func TestConv2dForward(t *testing.T) {
	c := &Conv2d{
		weight: mustVar(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2}),
		bias:   mustVar(t, []float32{100}, tensor.Shape{1}),
		cfg:    DefaultConvConfig(),
	}

	x, err := tensor.FromSlice([]float32{0, 1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 1, 3, 3}, dev)
	require.NoError(t, err)
	y, err := c.Forward(x)
	require.NoError(t, err)

	require.True(t, y.Shape().Equal(tensor.Shape{1, 1, 2, 2}), "conv shape = %v", y.Shape())
	flat, err := y.FlattenAll()
	require.NoError(t, err)
	got, err := tensor.ToVec1[float32](flat)
	require.NoError(t, err)
	assert.Equal(t, []float32{108, 112, 120, 124}, got)
}

func TestConv2dForwardShapes(t *testing.T) {
	vs := NewVarStore(dev, tensor.F32)
	c, err := NewConv2d(vs, "conv", 3, 8, 3, ConvConfig{Padding: 1, Stride: 2})
	require.NoError(t, err)

	x, err := tensor.Zeros(tensor.Shape{2, 3, 8, 8}, tensor.F32, dev)
	require.NoError(t, err)
	y, err := c.Forward(x)
	require.NoError(t, err)

	assert.True(t, y.Shape().Equal(tensor.Shape{2, 8, 4, 4}), "conv shape = %v", y.Shape())
}

func TestConv1dForwardShapes(t *testing.T) {
	vs := NewVarStore(dev, tensor.F32)
	c, err := NewConv1d(vs, "conv", 2, 4, 3, DefaultConvConfig())
	require.NoError(t, err)

	x, err := tensor.Zeros(tensor.Shape{1, 2, 10}, tensor.F32, dev)
	require.NoError(t, err)
	y, err := c.Forward(x)
	require.NoError(t, err)

	assert.True(t, y.Shape().Equal(tensor.Shape{1, 4, 8}), "conv shape = %v", y.Shape())
}

func TestConvTranspose2dForwardShapes(t *testing.T) {
	vs := NewVarStore(dev, tensor.F32)
	c, err := NewConvTranspose2d(vs, "up", 4, 2, 2, ConvTranspose2dConfig{Stride: 2})
	require.NoError(t, err)

	x, err := tensor.Zeros(tensor.Shape{1, 4, 5, 5}, tensor.F32, dev)
	require.NoError(t, err)
	y, err := c.Forward(x)
	require.NoError(t, err)

	assert.True(t, y.Shape().Equal(tensor.Shape{1, 2, 10, 10}), "conv transpose shape = %v", y.Shape())
}
