// Copyright 2025 Ember ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation for the
// Ember ML framework.
//
// Example:
//
//	x, _ := tensor.VarFromSlice([]float32{3}, tensor.Shape{1}, dev)
//	y, _ := x.Sqr()
//	grads, _ := autodiff.Backward(y)
//	gx, _ := grads.Get(x)
package autodiff

import (
	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/tensor"
)

// GradStore maps tensor identifiers to their accumulated gradients.
type GradStore = autodiff.GradStore

// NewGradStore creates an empty gradient store.
func NewGradStore() *GradStore {
	return autodiff.NewGradStore()
}

// Backward runs reverse-mode differentiation from root, returning the
// gradients of every variable it reaches.
func Backward(root *tensor.Tensor) (*GradStore, error) {
	return autodiff.Backward(root)
}
