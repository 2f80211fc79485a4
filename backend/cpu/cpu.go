// Copyright 2025 Ember ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the public CPU device for the Ember ML framework.
//
// Example:
//
//	dev := cpu.New()
//	x, _ := tensor.Zeros(tensor.Shape{2, 3}, tensor.F32, dev)
package cpu

import (
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/parallel"
)

// Device is the CPU device provider.
type Device = cpu.Device

// Config controls the device's parallel execution behavior.
type Config = parallel.Config

// New creates a CPU device with default parallelism.
func New() *Device {
	return cpu.New()
}

// NewAt creates a CPU device with a distinct ordinal, which behaves as a
// separate device for transfer and mismatch purposes.
func NewAt(ordinal int) *Device {
	return cpu.NewAt(ordinal)
}

// NewWithConfig creates a CPU device with explicit parallelism settings.
func NewWithConfig(cfg Config) *Device {
	return cpu.NewWithConfig(cfg)
}

// DefaultConfig returns the default parallelism settings.
func DefaultConfig() Config {
	return parallel.DefaultConfig()
}
