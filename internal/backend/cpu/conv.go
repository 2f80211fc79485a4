package cpu

import (
	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

// Direct convolution kernels, parallelized over (batch, channel) planes so
// no two goroutines write the same output region.

func (s *Storage) Conv1D(l *tensor.Layout, kernel tensor.Storage, kl *tensor.Layout, p *tensor.ConvParams1D) (tensor.Storage, error) {
	ks, err := asCPU("conv1d", kernel)
	if err != nil {
		return nil, err
	}
	switch s.DType() {
	case tensor.F32:
		return conv1DTyped[float32](s, l, ks, kl, p), nil
	case tensor.F64:
		return conv1DTyped[float64](s, l, ks, kl, p), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "conv1d", DType: s.DType()}
	}
}

func conv1DTyped[T tensor.Elem](s *Storage, l *tensor.Layout, ks *Storage, kl *tensor.Layout, p *tensor.ConvParams1D) tensor.Storage {
	in := gatherElems[T](s, l)
	k := gatherElems[T](ks, kl)
	lOut := p.LOut()
	out := s.alloc(p.Batch*p.COut*lOut, s.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(p.Batch, p.COut, func(b, co int) {
		for lo := 0; lo < lOut; lo++ {
			var acc T
			for ci := 0; ci < p.CIn; ci++ {
				for kk := 0; kk < p.K; kk++ {
					pos := lo*p.Stride + kk - p.Padding
					if pos < 0 || pos >= p.LIn {
						continue
					}
					acc += in[(b*p.CIn+ci)*p.LIn+pos] * k[(co*p.CIn+ci)*p.K+kk]
				}
			}
			dst[(b*p.COut+co)*lOut+lo] = acc
		}
	}, s.dev.cfg)
	return out
}

func (s *Storage) Conv2D(l *tensor.Layout, kernel tensor.Storage, kl *tensor.Layout, p *tensor.ConvParams2D) (tensor.Storage, error) {
	ks, err := asCPU("conv2d", kernel)
	if err != nil {
		return nil, err
	}
	switch s.DType() {
	case tensor.F32:
		return conv2DTyped[float32](s, l, ks, kl, p), nil
	case tensor.F64:
		return conv2DTyped[float64](s, l, ks, kl, p), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "conv2d", DType: s.DType()}
	}
}

func conv2DTyped[T tensor.Elem](s *Storage, l *tensor.Layout, ks *Storage, kl *tensor.Layout, p *tensor.ConvParams2D) tensor.Storage {
	in := gatherElems[T](s, l)
	k := gatherElems[T](ks, kl)
	hOut, wOut := p.HOut(), p.WOut()
	out := s.alloc(p.Batch*p.COut*hOut*wOut, s.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(p.Batch, p.COut, func(b, co int) {
		for ho := 0; ho < hOut; ho++ {
			for wo := 0; wo < wOut; wo++ {
				var acc T
				for ci := 0; ci < p.CIn; ci++ {
					for kh := 0; kh < p.KH; kh++ {
						h := ho*p.Stride + kh - p.Padding
						if h < 0 || h >= p.HIn {
							continue
						}
						for kw := 0; kw < p.KW; kw++ {
							w := wo*p.Stride + kw - p.Padding
							if w < 0 || w >= p.WIn {
								continue
							}
							acc += in[((b*p.CIn+ci)*p.HIn+h)*p.WIn+w] *
								k[((co*p.CIn+ci)*p.KH+kh)*p.KW+kw]
						}
					}
				}
				dst[((b*p.COut+co)*hOut+ho)*wOut+wo] = acc
			}
		}
	}, s.dev.cfg)
	return out
}

func (s *Storage) ConvTranspose2D(l *tensor.Layout, kernel tensor.Storage, kl *tensor.Layout, p *tensor.ConvTransposeParams2D) (tensor.Storage, error) {
	ks, err := asCPU("conv_transpose2d", kernel)
	if err != nil {
		return nil, err
	}
	switch s.DType() {
	case tensor.F32:
		return convTranspose2DTyped[float32](s, l, ks, kl, p), nil
	case tensor.F64:
		return convTranspose2DTyped[float64](s, l, ks, kl, p), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "conv_transpose2d", DType: s.DType()}
	}
}

func convTranspose2DTyped[T tensor.Elem](s *Storage, l *tensor.Layout, ks *Storage, kl *tensor.Layout, p *tensor.ConvTransposeParams2D) tensor.Storage {
	in := gatherElems[T](s, l)
	k := gatherElems[T](ks, kl)
	hOut, wOut := p.HOut(), p.WOut()
	out := s.alloc(p.Batch*p.COut*hOut*wOut, s.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(p.Batch, p.COut, func(b, co int) {
		for ci := 0; ci < p.CIn; ci++ {
			for hi := 0; hi < p.HIn; hi++ {
				for wi := 0; wi < p.WIn; wi++ {
					v := in[((b*p.CIn+ci)*p.HIn+hi)*p.WIn+wi]
					for kh := 0; kh < p.KH; kh++ {
						h := hi*p.Stride + kh - p.Padding
						if h < 0 || h >= hOut {
							continue
						}
						for kw := 0; kw < p.KW; kw++ {
							w := wi*p.Stride + kw - p.Padding
							if w < 0 || w >= wOut {
								continue
							}
							dst[((b*p.COut+co)*hOut+h)*wOut+w] +=
								v * k[((ci*p.COut+co)*p.KH+kh)*p.KW+kw]
						}
					}
				}
			}
		}
	}, s.dev.cfg)
	return out
}

// Conv2DBackwardInput computes the input gradient of a 2D convolution. The
// receiver carries the device; gradOut and kernel supply the data.
func (s *Storage) Conv2DBackwardInput(gradOut tensor.Storage, gl *tensor.Layout, kernel tensor.Storage, kl *tensor.Layout, p *tensor.ConvParams2D) (tensor.Storage, error) {
	gs, err := asCPU("conv2d_backward_input", gradOut)
	if err != nil {
		return nil, err
	}
	ks, err := asCPU("conv2d_backward_input", kernel)
	if err != nil {
		return nil, err
	}
	switch gs.DType() {
	case tensor.F32:
		return conv2DBackwardInputTyped[float32](gs, gl, ks, kl, p), nil
	case tensor.F64:
		return conv2DBackwardInputTyped[float64](gs, gl, ks, kl, p), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "conv2d_backward_input", DType: gs.DType()}
	}
}

func conv2DBackwardInputTyped[T tensor.Elem](gs *Storage, gl *tensor.Layout, ks *Storage, kl *tensor.Layout, p *tensor.ConvParams2D) tensor.Storage {
	g := gatherElems[T](gs, gl)
	k := gatherElems[T](ks, kl)
	hOut, wOut := p.HOut(), p.WOut()
	out := gs.alloc(p.Batch*p.CIn*p.HIn*p.WIn, gs.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(p.Batch, p.CIn, func(b, ci int) {
		for hi := 0; hi < p.HIn; hi++ {
			for wi := 0; wi < p.WIn; wi++ {
				var acc T
				for co := 0; co < p.COut; co++ {
					for kh := 0; kh < p.KH; kh++ {
						hp := hi + p.Padding - kh
						if hp < 0 || hp%p.Stride != 0 {
							continue
						}
						ho := hp / p.Stride
						if ho >= hOut {
							continue
						}
						for kw := 0; kw < p.KW; kw++ {
							wp := wi + p.Padding - kw
							if wp < 0 || wp%p.Stride != 0 {
								continue
							}
							wo := wp / p.Stride
							if wo >= wOut {
								continue
							}
							acc += g[((b*p.COut+co)*hOut+ho)*wOut+wo] *
								k[((co*p.CIn+ci)*p.KH+kh)*p.KW+kw]
						}
					}
				}
				dst[((b*p.CIn+ci)*p.HIn+hi)*p.WIn+wi] = acc
			}
		}
	}, gs.dev.cfg)
	return out
}

// Conv2DBackwardKernel computes the kernel gradient of a 2D convolution; the
// receiver is the forward input.
func (s *Storage) Conv2DBackwardKernel(input tensor.Storage, l *tensor.Layout, gradOut tensor.Storage, gl *tensor.Layout, p *tensor.ConvParams2D) (tensor.Storage, error) {
	is, err := asCPU("conv2d_backward_kernel", input)
	if err != nil {
		return nil, err
	}
	gs, err := asCPU("conv2d_backward_kernel", gradOut)
	if err != nil {
		return nil, err
	}
	switch is.DType() {
	case tensor.F32:
		return conv2DBackwardKernelTyped[float32](is, l, gs, gl, p), nil
	case tensor.F64:
		return conv2DBackwardKernelTyped[float64](is, l, gs, gl, p), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "conv2d_backward_kernel", DType: is.DType()}
	}
}

func conv2DBackwardKernelTyped[T tensor.Elem](is *Storage, l *tensor.Layout, gs *Storage, gl *tensor.Layout, p *tensor.ConvParams2D) tensor.Storage {
	in := gatherElems[T](is, l)
	g := gatherElems[T](gs, gl)
	hOut, wOut := p.HOut(), p.WOut()
	out := is.alloc(p.COut*p.CIn*p.KH*p.KW, is.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(p.COut, p.CIn, func(co, ci int) {
		for kh := 0; kh < p.KH; kh++ {
			for kw := 0; kw < p.KW; kw++ {
				var acc T
				for b := 0; b < p.Batch; b++ {
					for ho := 0; ho < hOut; ho++ {
						h := ho*p.Stride + kh - p.Padding
						if h < 0 || h >= p.HIn {
							continue
						}
						for wo := 0; wo < wOut; wo++ {
							w := wo*p.Stride + kw - p.Padding
							if w < 0 || w >= p.WIn {
								continue
							}
							acc += g[((b*p.COut+co)*hOut+ho)*wOut+wo] *
								in[((b*p.CIn+ci)*p.HIn+h)*p.WIn+w]
						}
					}
				}
				dst[((co*p.CIn+ci)*p.KH+kh)*p.KW+kw] = acc
			}
		}
	}, is.dev.cfg)
	return out
}

// Conv1DBackwardInput computes the input gradient of a 1D convolution.
func (s *Storage) Conv1DBackwardInput(gradOut tensor.Storage, gl *tensor.Layout, kernel tensor.Storage, kl *tensor.Layout, p *tensor.ConvParams1D) (tensor.Storage, error) {
	gs, err := asCPU("conv1d_backward_input", gradOut)
	if err != nil {
		return nil, err
	}
	ks, err := asCPU("conv1d_backward_input", kernel)
	if err != nil {
		return nil, err
	}
	switch gs.DType() {
	case tensor.F32:
		return conv1DBackwardInputTyped[float32](gs, gl, ks, kl, p), nil
	case tensor.F64:
		return conv1DBackwardInputTyped[float64](gs, gl, ks, kl, p), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "conv1d_backward_input", DType: gs.DType()}
	}
}

func conv1DBackwardInputTyped[T tensor.Elem](gs *Storage, gl *tensor.Layout, ks *Storage, kl *tensor.Layout, p *tensor.ConvParams1D) tensor.Storage {
	g := gatherElems[T](gs, gl)
	k := gatherElems[T](ks, kl)
	lOut := p.LOut()
	out := gs.alloc(p.Batch*p.CIn*p.LIn, gs.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(p.Batch, p.CIn, func(b, ci int) {
		for li := 0; li < p.LIn; li++ {
			var acc T
			for co := 0; co < p.COut; co++ {
				for kk := 0; kk < p.K; kk++ {
					lp := li + p.Padding - kk
					if lp < 0 || lp%p.Stride != 0 {
						continue
					}
					lo := lp / p.Stride
					if lo >= lOut {
						continue
					}
					acc += g[(b*p.COut+co)*lOut+lo] * k[(co*p.CIn+ci)*p.K+kk]
				}
			}
			dst[(b*p.CIn+ci)*p.LIn+li] = acc
		}
	}, gs.dev.cfg)
	return out
}

// Conv1DBackwardKernel computes the kernel gradient of a 1D convolution; the
// receiver is the forward input.
func (s *Storage) Conv1DBackwardKernel(input tensor.Storage, l *tensor.Layout, gradOut tensor.Storage, gl *tensor.Layout, p *tensor.ConvParams1D) (tensor.Storage, error) {
	is, err := asCPU("conv1d_backward_kernel", input)
	if err != nil {
		return nil, err
	}
	gs, err := asCPU("conv1d_backward_kernel", gradOut)
	if err != nil {
		return nil, err
	}
	switch is.DType() {
	case tensor.F32:
		return conv1DBackwardKernelTyped[float32](is, l, gs, gl, p), nil
	case tensor.F64:
		return conv1DBackwardKernelTyped[float64](is, l, gs, gl, p), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "conv1d_backward_kernel", DType: is.DType()}
	}
}

func conv1DBackwardKernelTyped[T tensor.Elem](is *Storage, l *tensor.Layout, gs *Storage, gl *tensor.Layout, p *tensor.ConvParams1D) tensor.Storage {
	in := gatherElems[T](is, l)
	g := gatherElems[T](gs, gl)
	lOut := p.LOut()
	out := is.alloc(p.COut*p.CIn*p.K, is.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(p.COut, p.CIn, func(co, ci int) {
		for kk := 0; kk < p.K; kk++ {
			var acc T
			for b := 0; b < p.Batch; b++ {
				for lo := 0; lo < lOut; lo++ {
					pos := lo*p.Stride + kk - p.Padding
					if pos < 0 || pos >= p.LIn {
						continue
					}
					acc += g[(b*p.COut+co)*lOut+lo] * in[(b*p.CIn+ci)*p.LIn+pos]
				}
			}
			dst[(co*p.CIn+ci)*p.K+kk] = acc
		}
	}, is.dev.cfg)
	return out
}
