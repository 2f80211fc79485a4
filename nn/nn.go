// Copyright 2025 Ember ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers for the Ember ML framework:
// a variable store for trainable parameters, initializers and layer wrappers
// over the tensor core.
package nn

import (
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/tensor"
)

// VarStore owns the named trainable variables of a model.
type VarStore = nn.VarStore

// Module transforms one tensor into another.
type Module = nn.Module

// Init produces a fresh parameter tensor for a shape.
type Init = nn.Init

// Initializers.
type (
	ZerosInit          = nn.ZerosInit
	UniformInit        = nn.UniformInit
	NormalInit         = nn.NormalInit
	KaimingUniformInit = nn.KaimingUniformInit
)

// Layers.
type (
	Linear          = nn.Linear
	Embedding       = nn.Embedding
	Conv1d          = nn.Conv1d
	Conv2d          = nn.Conv2d
	ConvTranspose2d = nn.ConvTranspose2d
)

// Configs.
type (
	ConvConfig            = nn.ConvConfig
	ConvTranspose2dConfig = nn.ConvTranspose2dConfig
)

// NewVarStore creates a variable store allocating on the given device.
func NewVarStore(dev tensor.Device, dtype tensor.DType) *VarStore {
	return nn.NewVarStore(dev, dtype)
}

// NewLinear creates a linear layer registered under name.
func NewLinear(vs *VarStore, name string, inFeatures, outFeatures int) (*Linear, error) {
	return nn.NewLinear(vs, name, inFeatures, outFeatures)
}

// NewLinearNoBias creates a linear layer without a bias term.
func NewLinearNoBias(vs *VarStore, name string, inFeatures, outFeatures int) (*Linear, error) {
	return nn.NewLinearNoBias(vs, name, inFeatures, outFeatures)
}

// NewEmbedding creates an embedding layer registered under name.
func NewEmbedding(vs *VarStore, name string, vocabSize, hidden int) (*Embedding, error) {
	return nn.NewEmbedding(vs, name, vocabSize, hidden)
}

// NewConv1d creates a 1D convolution layer registered under name.
func NewConv1d(vs *VarStore, name string, inC, outC, k int, cfg ConvConfig) (*Conv1d, error) {
	return nn.NewConv1d(vs, name, inC, outC, k, cfg)
}

// NewConv2d creates a 2D convolution layer registered under name.
func NewConv2d(vs *VarStore, name string, inC, outC, k int, cfg ConvConfig) (*Conv2d, error) {
	return nn.NewConv2d(vs, name, inC, outC, k, cfg)
}

// NewConvTranspose2d creates a transposed 2D convolution layer registered
// under name.
func NewConvTranspose2d(vs *VarStore, name string, inC, outC, k int, cfg ConvTranspose2dConfig) (*ConvTranspose2d, error) {
	return nn.NewConvTranspose2d(vs, name, inC, outC, k, cfg)
}

// DefaultConvConfig returns stride-1, unpadded convolution settings.
func DefaultConvConfig() ConvConfig {
	return nn.DefaultConvConfig()
}
