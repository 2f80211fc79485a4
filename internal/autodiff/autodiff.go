package autodiff

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// sortedNodes collects every gradient-tracking tensor reachable from root in
// reverse topological order (root first). A tensor tracks gradients when it
// is a variable or any operand of its op does.
func sortedNodes(root *tensor.Tensor) []*tensor.Tensor {
	seen := make(map[tensor.TensorID]bool)
	var nodes []*tensor.Tensor

	var walk func(t *tensor.Tensor) bool
	walk = func(t *tensor.Tensor) bool {
		if tracked, ok := seen[t.ID()]; ok {
			return tracked
		}
		tracked := t.IsVariable()
		if op := t.Op(); op != nil {
			for _, arg := range tensor.OpInputs(op) {
				if walk(arg) {
					tracked = true
				}
			}
		}
		seen[t.ID()] = tracked
		if tracked {
			nodes = append(nodes, t)
		}
		return tracked
	}
	walk(root)

	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return nodes
}

// Backward runs reverse-mode differentiation from root, which must hold a
// float dtype. It returns a store holding the gradient of root with respect
// to every variable (and every intermediate tracked node still alive in the
// store when traversal passes it).
func Backward(root *tensor.Tensor) (*GradStore, error) {
	if !root.DType().IsFloat() {
		return nil, &tensor.UnsupportedDTypeError{Op: "backward", DType: root.DType()}
	}
	grads := NewGradStore()
	seed, err := root.OnesLike()
	if err != nil {
		return nil, err
	}
	grads.Insert(root, seed)

	for _, node := range sortedNodes(root) {
		if node.IsVariable() {
			continue
		}
		grad, ok := grads.Remove(node)
		if !ok {
			// The node is tracked but received no gradient contribution;
			// nothing flows further down this branch.
			continue
		}
		op := node.Op()
		if op == nil {
			continue
		}
		if err := backwardStep(grads, node, grad, op); err != nil {
			return nil, err
		}
	}
	return grads, nil
}
