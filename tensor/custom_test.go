// Copyright 2025 Ember ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/ember-ml/ember/autodiff"
	"github.com/ember-ml/ember/tensor"
)

// doubleOp scales its operand by two through the storage contract.
type doubleOp struct{}

func (doubleOp) Name() string { return "double" }

func (doubleOp) Forward(s tensor.Storage, l *tensor.Layout) (tensor.Storage, tensor.Shape, error) {
	out, err := s.Affine(l, 2, 0)
	if err != nil {
		return nil, nil, err
	}
	return out, l.Shape(), nil
}

func (doubleOp) Backward(arg, res, grad *tensor.Tensor) (*tensor.Tensor, error) {
	return grad.Affine(2, 0)
}

// maskedSumOp is a two-operand custom op without a backward rule.
type maskedSumOp struct{}

func (maskedSumOp) Name() string { return "masked_sum" }

func (maskedSumOp) Forward(s1 tensor.Storage, l1 *tensor.Layout, s2 tensor.Storage, l2 *tensor.Layout) (tensor.Storage, tensor.Shape, error) {
	out, err := s1.Binary(tensor.BinaryMul, s2, l1, l2)
	if err != nil {
		return nil, nil, err
	}
	return out, l1.Shape(), nil
}

func TestCustomOpForward(t *testing.T) {
	x := mustFromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})
	y, err := x.ApplyOp1(doubleOp{})
	if err != nil {
		t.Fatalf("ApplyOp1: %v", err)
	}
	assertVec1(t, y, []float32{2, 4, 6}, "custom forward")
	if y.Op() != nil {
		t.Error("op recorded for an untracked operand")
	}
}

func TestCustomOpBackward(t *testing.T) {
	x, err := tensor.VarFromSlice([]float32{1, 2, 3}, tensor.Shape{3}, dev)
	if err != nil {
		t.Fatalf("VarFromSlice: %v", err)
	}
	y, err := x.ApplyOp1(doubleOp{})
	if err != nil {
		t.Fatalf("ApplyOp1: %v", err)
	}
	loss, err := y.SumAll()
	if err != nil {
		t.Fatalf("SumAll: %v", err)
	}

	grads, err := autodiff.Backward(loss)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	g, ok := grads.Get(x)
	if !ok {
		t.Fatal("no gradient for the custom op operand")
	}
	assertVec1(t, g, []float32{2, 2, 2}, "custom backward")
}

func TestCustomOp2Forward(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})
	mask := mustFromSlice(t, []float32{1, 0, 1}, tensor.Shape{3})
	y, err := a.ApplyOp2(mask, maskedSumOp{})
	if err != nil {
		t.Fatalf("ApplyOp2: %v", err)
	}
	assertVec1(t, y, []float32{1, 0, 3}, "custom two-operand forward")
}

func TestCustomOpWithoutBackwardRejected(t *testing.T) {
	a, err := tensor.VarFromSlice([]float32{1, 2}, tensor.Shape{2}, dev)
	if err != nil {
		t.Fatalf("VarFromSlice: %v", err)
	}
	mask := mustFromSlice(t, []float32{1, 1}, tensor.Shape{2})
	y, err := a.ApplyOp2(mask, maskedSumOp{})
	if err != nil {
		t.Fatalf("ApplyOp2: %v", err)
	}
	loss, err := y.SumAll()
	if err != nil {
		t.Fatalf("SumAll: %v", err)
	}

	if _, err := autodiff.Backward(loss); err == nil {
		t.Error("Backward through a custom op with no gradient rule succeeded, want error")
	}
}
