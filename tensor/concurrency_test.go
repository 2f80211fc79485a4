// Copyright 2025 Ember ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"sync"
	"testing"

	"github.com/ember-ml/ember/tensor"
)

func TestConcurrentReadsOnSharedStorage(t *testing.T) {
	x := mustFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := x.Transpose(0, 1)
			if err != nil {
				errs <- err
				return
			}
			sum, err := view.SumAll()
			if err != nil {
				errs <- err
				return
			}
			v, err := tensor.ToScalar[float32](sum)
			if err != nil {
				errs <- err
				return
			}
			if v != 21 {
				errs <- &tensor.InvalidArgumentError{Op: "test", Msg: "bad concurrent sum"}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent read: %v", err)
	}
}

func TestConcurrentTensorIDsUnique(t *testing.T) {
	const perWorker = 100
	var mu sync.Mutex
	seen := make(map[tensor.TensorID]bool)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]tensor.TensorID, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				z, err := tensor.Zeros(tensor.Shape{1}, tensor.F32, dev)
				if err != nil {
					t.Errorf("Zeros: %v", err)
					return
				}
				ids = append(ids, z.ID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("duplicate tensor id %d", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()
}
