// Copyright 2025 Ember ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for tensor operations in the Ember
// ML framework.
//
// Tensors are immutable handles onto shared, lock-guarded storage. Shape
// manipulation (narrow, transpose, permute, broadcast, reshape of contiguous
// data) produces zero-copy views; arithmetic produces fresh storage. Every
// operation records the edge needed for reverse-mode differentiation when an
// operand requires gradients.
//
// Example:
//
//	dev := cpu.New()
//	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, dev)
//	y, _ := x.Affine(4, -2)
package tensor

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// Tensor is an immutable handle onto shared tensor storage.
type Tensor = tensor.Tensor

// TensorID uniquely identifies a tensor.
type TensorID = tensor.TensorID

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2x3x4.
type Shape = tensor.Shape

// Layout describes how a logical shape maps onto storage.
type Layout = tensor.Layout

// Elem is a constraint for supported tensor element types.
type Elem = tensor.Elem

// DType represents runtime type information for tensors.
type DType = tensor.DType

// Data type constants.
const (
	U8  DType = tensor.U8
	U32 DType = tensor.U32
	I64 DType = tensor.I64
	F32 DType = tensor.F32
	F64 DType = tensor.F64
)

// Device is the provider contract each backend implements.
type Device = tensor.Device

// DeviceLocation identifies a device.
type DeviceLocation = tensor.DeviceLocation

// Storage is the kernel contract every backend satisfies.
type Storage = tensor.Storage

// Buffer is the canonical CPU representation of storage contents.
type Buffer = tensor.Buffer

// Op is the recorded graph edge of a tensor.
type Op = tensor.Op

// Operation kinds used by the Storage kernel contract.
type (
	UnaryOpKind  = tensor.UnaryOpKind
	BinaryOpKind = tensor.BinaryOpKind
	CmpOpKind    = tensor.CmpOpKind
	ReduceOpKind = tensor.ReduceOpKind
)

// Unary operation kinds.
const (
	UnaryExp   UnaryOpKind = tensor.UnaryExp
	UnaryLog   UnaryOpKind = tensor.UnaryLog
	UnarySin   UnaryOpKind = tensor.UnarySin
	UnaryCos   UnaryOpKind = tensor.UnaryCos
	UnaryAbs   UnaryOpKind = tensor.UnaryAbs
	UnaryNeg   UnaryOpKind = tensor.UnaryNeg
	UnaryRecip UnaryOpKind = tensor.UnaryRecip
	UnarySqr   UnaryOpKind = tensor.UnarySqr
	UnarySqrt  UnaryOpKind = tensor.UnarySqrt
	UnaryGelu  UnaryOpKind = tensor.UnaryGelu
	UnaryRelu  UnaryOpKind = tensor.UnaryRelu
)

// Binary operation kinds.
const (
	BinaryAdd BinaryOpKind = tensor.BinaryAdd
	BinarySub BinaryOpKind = tensor.BinarySub
	BinaryMul BinaryOpKind = tensor.BinaryMul
	BinaryDiv BinaryOpKind = tensor.BinaryDiv
)

// Comparison operation kinds.
const (
	CmpEq CmpOpKind = tensor.CmpEq
	CmpNe CmpOpKind = tensor.CmpNe
	CmpLt CmpOpKind = tensor.CmpLt
	CmpLe CmpOpKind = tensor.CmpLe
	CmpGt CmpOpKind = tensor.CmpGt
	CmpGe CmpOpKind = tensor.CmpGe
)

// Reduction operation kinds.
const (
	ReduceSum    ReduceOpKind = tensor.ReduceSum
	ReduceMax    ReduceOpKind = tensor.ReduceMax
	ReduceMin    ReduceOpKind = tensor.ReduceMin
	ReduceArgMax ReduceOpKind = tensor.ReduceArgMax
	ReduceArgMin ReduceOpKind = tensor.ReduceArgMin
)

// Custom operation contracts.
type (
	CustomOp1         = tensor.CustomOp1
	CustomOp2         = tensor.CustomOp2
	CustomOp3         = tensor.CustomOp3
	CustomOp1Backward = tensor.CustomOp1Backward
	CustomOp2Backward = tensor.CustomOp2Backward
	CustomOp3Backward = tensor.CustomOp3Backward
)

// Constructors.

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, dtype DType, device Device) (*Tensor, error) {
	return tensor.Zeros(shape, dtype, device)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DType, device Device) (*Tensor, error) {
	return tensor.Ones(shape, dtype, device)
}

// Rand creates a tensor with uniform samples from [lo, up).
func Rand(shape Shape, dtype DType, device Device, lo, up float64) (*Tensor, error) {
	return tensor.Rand(shape, dtype, device, lo, up)
}

// Randn creates a tensor with normal samples.
func Randn(shape Shape, dtype DType, device Device, mean, std float64) (*Tensor, error) {
	return tensor.Randn(shape, dtype, device, mean, std)
}

// FromSlice creates a tensor by copying a Go slice.
func FromSlice[T Elem](data []T, shape Shape, device Device) (*Tensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// Full creates a tensor filled with a single value.
func Full[T Elem](shape Shape, value T, device Device) (*Tensor, error) {
	return tensor.Full(shape, value, device)
}

// Arange creates a 1D tensor with values from start to end (exclusive).
func Arange[T Elem](start, end T, device Device) (*Tensor, error) {
	return tensor.Arange(start, end, device)
}

// ArangeStep creates a 1D tensor with values from start to end (exclusive)
// in the given step increments.
func ArangeStep[T Elem](start, end, step T, device Device) (*Tensor, error) {
	return tensor.ArangeStep(start, end, step, device)
}

// Var creates a trainable variable copying an existing tensor's values.
func Var(t *Tensor) (*Tensor, error) {
	return tensor.Var(t)
}

// VarFromSlice creates a trainable variable directly from a Go slice.
func VarFromSlice[T Elem](data []T, shape Shape, device Device) (*Tensor, error) {
	return tensor.VarFromSlice(data, shape, device)
}

// FromStorage wraps a backend storage into a fresh contiguous tensor.
func FromStorage(s Storage, shape Shape) (*Tensor, error) {
	return tensor.FromStorage(s, shape)
}

// Cat concatenates tensors along a dimension.
func Cat(tensors []*Tensor, dim int) (*Tensor, error) {
	return tensor.Cat(tensors, dim)
}

// Stack concatenates tensors along a fresh dimension inserted at dim.
func Stack(tensors []*Tensor, dim int) (*Tensor, error) {
	return tensor.Stack(tensors, dim)
}

// Readback.

// ToScalar extracts the single element of a rank-0 tensor.
func ToScalar[T Elem](t *Tensor) (T, error) {
	return tensor.ToScalar[T](t)
}

// ToVec1 extracts a rank-1 tensor as a Go slice.
func ToVec1[T Elem](t *Tensor) ([]T, error) {
	return tensor.ToVec1[T](t)
}

// ToVec2 extracts a rank-2 tensor as nested Go slices.
func ToVec2[T Elem](t *Tensor) ([][]T, error) {
	return tensor.ToVec2[T](t)
}

// ToVec3 extracts a rank-3 tensor as nested Go slices.
func ToVec3[T Elem](t *Tensor) ([][][]T, error) {
	return tensor.ToVec3[T](t)
}
