// Package nn provides neural network building blocks layered on the tensor
// core: a variable store for trainable parameters, parameter initializers
// and layer wrappers.
package nn

import (
	"math"
	"sync"

	"github.com/ember-ml/ember/internal/tensor"
)

// Init produces a fresh parameter tensor for a shape.
type Init interface {
	New(shape tensor.Shape, dtype tensor.DType, dev tensor.Device) (*tensor.Tensor, error)
}

// ZerosInit initializes parameters to zero.
type ZerosInit struct{}

// New implements Init.
func (ZerosInit) New(shape tensor.Shape, dtype tensor.DType, dev tensor.Device) (*tensor.Tensor, error) {
	return tensor.Zeros(shape, dtype, dev)
}

// UniformInit samples parameters uniformly from [Lo, Up).
type UniformInit struct {
	Lo, Up float64
}

// New implements Init.
func (u UniformInit) New(shape tensor.Shape, dtype tensor.DType, dev tensor.Device) (*tensor.Tensor, error) {
	return tensor.Rand(shape, dtype, dev, u.Lo, u.Up)
}

// NormalInit samples parameters from a normal distribution.
type NormalInit struct {
	Mean, Std float64
}

// New implements Init.
func (n NormalInit) New(shape tensor.Shape, dtype tensor.DType, dev tensor.Device) (*tensor.Tensor, error) {
	return tensor.Randn(shape, dtype, dev, n.Mean, n.Std)
}

// KaimingUniformInit samples uniformly with a bound derived from the fan-in,
// the usual default for conv and linear weights.
type KaimingUniformInit struct{}

// New implements Init.
func (KaimingUniformInit) New(shape tensor.Shape, dtype tensor.DType, dev tensor.Device) (*tensor.Tensor, error) {
	fanIn := 1
	for _, d := range shape[1:] {
		fanIn *= d
	}
	if fanIn == 0 {
		fanIn = 1
	}
	bound := math.Sqrt(3.0) * math.Sqrt(2.0/float64(fanIn))
	return tensor.Rand(shape, dtype, dev, -bound, bound)
}

// VarStore owns the named trainable variables of a model. Layer constructors
// look parameters up by name, creating them with the given initializer on
// first use; a second lookup returns the stored variable after a shape check.
type VarStore struct {
	mu    sync.Mutex
	dev   tensor.Device
	dtype tensor.DType
	vars  map[string]*tensor.Tensor
}

// NewVarStore creates a variable store allocating on the given device.
func NewVarStore(dev tensor.Device, dtype tensor.DType) *VarStore {
	return &VarStore{
		dev:   dev,
		dtype: dtype,
		vars:  make(map[string]*tensor.Tensor),
	}
}

// Device returns the store's device.
func (vs *VarStore) Device() tensor.Device {
	return vs.dev
}

// DType returns the store's parameter dtype.
func (vs *VarStore) DType() tensor.DType {
	return vs.dtype
}

// Get returns the named variable, creating it with init when absent.
func (vs *VarStore) Get(name string, shape tensor.Shape, init Init) (*tensor.Tensor, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if v, ok := vs.vars[name]; ok {
		if !v.Shape().Equal(shape) {
			return nil, &tensor.ShapeMismatchError{Op: "var_store", Lhs: v.Shape().Clone(), Rhs: shape.Clone()}
		}
		return v, nil
	}
	t, err := init.New(shape, vs.dtype, vs.dev)
	if err != nil {
		return nil, err
	}
	v, err := tensor.Var(t)
	if err != nil {
		return nil, err
	}
	vs.vars[name] = v
	return v, nil
}

// All returns the stored variables keyed by name.
func (vs *VarStore) All() map[string]*tensor.Tensor {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	out := make(map[string]*tensor.Tensor, len(vs.vars))
	for k, v := range vs.vars {
		out[k] = v
	}
	return out
}

// Module transforms one tensor into another, typically a layer holding
// variables from a VarStore.
type Module interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
}
