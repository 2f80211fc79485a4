// Copyright 2025 Ember ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// Typed errors surfaced by tensor operations; match with errors.As.
type (
	ShapeMismatchError        = tensor.ShapeMismatchError
	ShapeMismatchCatError     = tensor.ShapeMismatchCatError
	DTypeMismatchError        = tensor.DTypeMismatchError
	DeviceMismatchError       = tensor.DeviceMismatchError
	DimOutOfRangeError        = tensor.DimOutOfRangeError
	UnexpectedRankError       = tensor.UnexpectedRankError
	InvalidArgumentError      = tensor.InvalidArgumentError
	UnsupportedDTypeError     = tensor.UnsupportedDTypeError
	BackendError              = tensor.BackendError
	BackwardNotSupportedError = tensor.BackwardNotSupportedError
)
