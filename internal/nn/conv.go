package nn

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// ConvConfig carries the shared convolution hyperparameters.
type ConvConfig struct {
	Padding int
	Stride  int
}

// DefaultConvConfig returns stride-1, unpadded convolution settings.
func DefaultConvConfig() ConvConfig {
	return ConvConfig{Stride: 1}
}

// Conv1d is a 1D convolution layer with a (outC, inC, k) weight.
type Conv1d struct {
	weight *tensor.Tensor
	bias   *tensor.Tensor
	cfg    ConvConfig
}

// NewConv1d creates a 1D convolution layer registered under name.
func NewConv1d(vs *VarStore, name string, inC, outC, k int, cfg ConvConfig) (*Conv1d, error) {
	w, err := vs.Get(name+".weight", tensor.Shape{outC, inC, k}, KaimingUniformInit{})
	if err != nil {
		return nil, err
	}
	b, err := vs.Get(name+".bias", tensor.Shape{outC}, ZerosInit{})
	if err != nil {
		return nil, err
	}
	return &Conv1d{weight: w, bias: b, cfg: cfg}, nil
}

// Weight returns the kernel.
func (c *Conv1d) Weight() *tensor.Tensor { return c.weight }

// Forward applies the layer to a (batch, inC, l) input.
func (c *Conv1d) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := x.Conv1D(c.weight, c.cfg.Padding, c.cfg.Stride)
	if err != nil {
		return nil, err
	}
	if c.bias == nil {
		return y, nil
	}
	b, err := c.bias.Reshape(tensor.Shape{1, c.bias.Dims()[0], 1})
	if err != nil {
		return nil, err
	}
	return y.BroadcastAdd(b)
}

// Conv2d is a 2D convolution layer with a (outC, inC, k, k) weight.
type Conv2d struct {
	weight *tensor.Tensor
	bias   *tensor.Tensor
	cfg    ConvConfig
}

// NewConv2d creates a 2D convolution layer registered under name.
func NewConv2d(vs *VarStore, name string, inC, outC, k int, cfg ConvConfig) (*Conv2d, error) {
	w, err := vs.Get(name+".weight", tensor.Shape{outC, inC, k, k}, KaimingUniformInit{})
	if err != nil {
		return nil, err
	}
	b, err := vs.Get(name+".bias", tensor.Shape{outC}, ZerosInit{})
	if err != nil {
		return nil, err
	}
	return &Conv2d{weight: w, bias: b, cfg: cfg}, nil
}

// Weight returns the kernel.
func (c *Conv2d) Weight() *tensor.Tensor { return c.weight }

// Forward applies the layer to a (batch, inC, h, w) input.
func (c *Conv2d) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := x.Conv2D(c.weight, c.cfg.Padding, c.cfg.Stride)
	if err != nil {
		return nil, err
	}
	if c.bias == nil {
		return y, nil
	}
	b, err := c.bias.Reshape(tensor.Shape{1, c.bias.Dims()[0], 1, 1})
	if err != nil {
		return nil, err
	}
	return y.BroadcastAdd(b)
}

// ConvTranspose2dConfig extends ConvConfig with output padding.
type ConvTranspose2dConfig struct {
	Padding       int
	OutputPadding int
	Stride        int
}

// ConvTranspose2d is a transposed 2D convolution layer with a
// (inC, outC, k, k) weight.
type ConvTranspose2d struct {
	weight *tensor.Tensor
	bias   *tensor.Tensor
	cfg    ConvTranspose2dConfig
}

// NewConvTranspose2d creates a transposed 2D convolution layer registered
// under name.
func NewConvTranspose2d(vs *VarStore, name string, inC, outC, k int, cfg ConvTranspose2dConfig) (*ConvTranspose2d, error) {
	w, err := vs.Get(name+".weight", tensor.Shape{inC, outC, k, k}, KaimingUniformInit{})
	if err != nil {
		return nil, err
	}
	b, err := vs.Get(name+".bias", tensor.Shape{outC}, ZerosInit{})
	if err != nil {
		return nil, err
	}
	return &ConvTranspose2d{weight: w, bias: b, cfg: cfg}, nil
}

// Forward applies the layer to a (batch, inC, h, w) input.
func (c *ConvTranspose2d) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := x.ConvTranspose2D(c.weight, c.cfg.Padding, c.cfg.OutputPadding, c.cfg.Stride)
	if err != nil {
		return nil, err
	}
	if c.bias == nil {
		return y, nil
	}
	b, err := c.bias.Reshape(tensor.Shape{1, c.bias.Dims()[0], 1, 1})
	if err != nil {
		return nil, err
	}
	return y.BroadcastAdd(b)
}
