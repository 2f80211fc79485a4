// Package autodiff implements reverse-mode automatic differentiation over
// the operation graph recorded by the tensor package.
package autodiff

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// GradStore maps tensor identifiers to their accumulated gradients.
type GradStore struct {
	grads map[tensor.TensorID]*tensor.Tensor
}

// NewGradStore creates an empty gradient store.
func NewGradStore() *GradStore {
	return &GradStore{grads: make(map[tensor.TensorID]*tensor.Tensor)}
}

// Get returns the gradient accumulated for a tensor, if any.
func (gs *GradStore) Get(t *tensor.Tensor) (*tensor.Tensor, bool) {
	g, ok := gs.grads[t.ID()]
	return g, ok
}

// GetByID returns the gradient accumulated for a tensor identifier, if any.
func (gs *GradStore) GetByID(id tensor.TensorID) (*tensor.Tensor, bool) {
	g, ok := gs.grads[id]
	return g, ok
}

// Insert sets the gradient for a tensor, replacing any previous value.
func (gs *GradStore) Insert(t *tensor.Tensor, grad *tensor.Tensor) {
	gs.grads[t.ID()] = grad
}

// Remove deletes and returns the gradient for a tensor.
func (gs *GradStore) Remove(t *tensor.Tensor) (*tensor.Tensor, bool) {
	g, ok := gs.grads[t.ID()]
	if ok {
		delete(gs.grads, t.ID())
	}
	return g, ok
}

// Len returns the number of stored gradients.
func (gs *GradStore) Len() int {
	return len(gs.grads)
}

// add accumulates a gradient contribution for a tensor.
func (gs *GradStore) add(t *tensor.Tensor, grad *tensor.Tensor) error {
	if cur, ok := gs.grads[t.ID()]; ok {
		sum, err := cur.Add(grad)
		if err != nil {
			return err
		}
		gs.grads[t.ID()] = sum
		return nil
	}
	gs.grads[t.ID()] = grad
	return nil
}

// sub accumulates a negated gradient contribution.
func (gs *GradStore) sub(t *tensor.Tensor, grad *tensor.Tensor) error {
	neg, err := grad.Neg()
	if err != nil {
		return err
	}
	return gs.add(t, neg)
}
