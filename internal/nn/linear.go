package nn

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// Linear applies y = x W^T + b with a (outFeatures, inFeatures) weight.
type Linear struct {
	weight *tensor.Tensor
	bias   *tensor.Tensor
}

// NewLinear creates a linear layer with kaiming-uniform weights and a zero
// bias, registered under name in the store.
func NewLinear(vs *VarStore, name string, inFeatures, outFeatures int) (*Linear, error) {
	w, err := vs.Get(name+".weight", tensor.Shape{outFeatures, inFeatures}, KaimingUniformInit{})
	if err != nil {
		return nil, err
	}
	b, err := vs.Get(name+".bias", tensor.Shape{outFeatures}, ZerosInit{})
	if err != nil {
		return nil, err
	}
	return &Linear{weight: w, bias: b}, nil
}

// NewLinearNoBias creates a linear layer without a bias term.
func NewLinearNoBias(vs *VarStore, name string, inFeatures, outFeatures int) (*Linear, error) {
	w, err := vs.Get(name+".weight", tensor.Shape{outFeatures, inFeatures}, KaimingUniformInit{})
	if err != nil {
		return nil, err
	}
	return &Linear{weight: w}, nil
}

// Weight returns the layer weight.
func (l *Linear) Weight() *tensor.Tensor { return l.weight }

// Bias returns the layer bias, or nil.
func (l *Linear) Bias() *tensor.Tensor { return l.bias }

// Forward applies the layer to a (..., inFeatures) input.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	wT, err := l.weight.T()
	if err != nil {
		return nil, err
	}
	y, err := x.BroadcastMatmul(wT)
	if err != nil {
		return nil, err
	}
	if l.bias == nil {
		return y, nil
	}
	return y.BroadcastAdd(l.bias)
}

// Embedding maps integer ids onto rows of a learned (vocab, hidden) table.
type Embedding struct {
	embeddings *tensor.Tensor
}

// NewEmbedding creates an embedding layer with normal-initialized weights.
func NewEmbedding(vs *VarStore, name string, vocabSize, hidden int) (*Embedding, error) {
	e, err := vs.Get(name+".weight", tensor.Shape{vocabSize, hidden}, NormalInit{Std: 1})
	if err != nil {
		return nil, err
	}
	return &Embedding{embeddings: e}, nil
}

// Embeddings returns the lookup table.
func (e *Embedding) Embeddings() *tensor.Tensor { return e.embeddings }

// Forward looks up a rank-1 id tensor.
func (e *Embedding) Forward(ids *tensor.Tensor) (*tensor.Tensor, error) {
	return e.embeddings.Embedding(ids)
}
