package cpu

import (
	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

// Pooling and upsampling kernels over (batch, channel, h, w) inputs.

func pool2DDims(shape tensor.Shape, kh, kw, sh, sw int) (b, c, hIn, wIn, hOut, wOut int) {
	b, c, hIn, wIn = shape[0], shape[1], shape[2], shape[3]
	hOut = (hIn-kh)/sh + 1
	wOut = (wIn-kw)/sw + 1
	return b, c, hIn, wIn, hOut, wOut
}

func (s *Storage) AvgPool2D(l *tensor.Layout, kh, kw, sh, sw int) (tensor.Storage, error) {
	switch s.DType() {
	case tensor.F32:
		return avgPool2DTyped[float32](s, l, kh, kw, sh, sw), nil
	case tensor.F64:
		return avgPool2DTyped[float64](s, l, kh, kw, sh, sw), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "avg_pool2d", DType: s.DType()}
	}
}

func avgPool2DTyped[T tensor.Elem](s *Storage, l *tensor.Layout, kh, kw, sh, sw int) tensor.Storage {
	in := gatherElems[T](s, l)
	b, c, hIn, wIn, hOut, wOut := pool2DDims(l.Shape(), kh, kw, sh, sw)
	out := s.alloc(b*c*hOut*wOut, s.DType())
	dst := tensor.As[T](out.buf)
	scale := T(1) / T(kh*kw)
	parallel.ForBatch(b, c, func(bi, ci int) {
		plane := (bi*c + ci) * hIn * wIn
		for ho := 0; ho < hOut; ho++ {
			for wo := 0; wo < wOut; wo++ {
				var acc T
				for i := 0; i < kh; i++ {
					for j := 0; j < kw; j++ {
						acc += in[plane+(ho*sh+i)*wIn+(wo*sw+j)]
					}
				}
				dst[((bi*c+ci)*hOut+ho)*wOut+wo] = acc * scale
			}
		}
	}, s.dev.cfg)
	return out
}

func (s *Storage) MaxPool2D(l *tensor.Layout, kh, kw, sh, sw int) (tensor.Storage, error) {
	switch s.DType() {
	case tensor.U8:
		return maxPool2DTyped[uint8](s, l, kh, kw, sh, sw), nil
	case tensor.U32:
		return maxPool2DTyped[uint32](s, l, kh, kw, sh, sw), nil
	case tensor.I64:
		return maxPool2DTyped[int64](s, l, kh, kw, sh, sw), nil
	case tensor.F32:
		return maxPool2DTyped[float32](s, l, kh, kw, sh, sw), nil
	case tensor.F64:
		return maxPool2DTyped[float64](s, l, kh, kw, sh, sw), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "max_pool2d", DType: s.DType()}
	}
}

func maxPool2DTyped[T tensor.Elem](s *Storage, l *tensor.Layout, kh, kw, sh, sw int) tensor.Storage {
	in := gatherElems[T](s, l)
	b, c, hIn, wIn, hOut, wOut := pool2DDims(l.Shape(), kh, kw, sh, sw)
	out := s.alloc(b*c*hOut*wOut, s.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(b, c, func(bi, ci int) {
		plane := (bi*c + ci) * hIn * wIn
		for ho := 0; ho < hOut; ho++ {
			for wo := 0; wo < wOut; wo++ {
				best := in[plane+(ho*sh)*wIn+(wo*sw)]
				for i := 0; i < kh; i++ {
					for j := 0; j < kw; j++ {
						if v := in[plane+(ho*sh+i)*wIn+(wo*sw+j)]; v > best {
							best = v
						}
					}
				}
				dst[((bi*c+ci)*hOut+ho)*wOut+wo] = best
			}
		}
	}, s.dev.cfg)
	return out
}

// AvgPool2DBackward spreads each output gradient evenly over its window; the
// receiver is the forward input.
func (s *Storage) AvgPool2DBackward(l *tensor.Layout, gradOut tensor.Storage, gl *tensor.Layout, kh, kw, sh, sw int) (tensor.Storage, error) {
	gs, err := asCPU("avg_pool2d_backward", gradOut)
	if err != nil {
		return nil, err
	}
	switch gs.DType() {
	case tensor.F32:
		return avgPool2DBackwardTyped[float32](s, l, gs, gl, kh, kw, sh, sw), nil
	case tensor.F64:
		return avgPool2DBackwardTyped[float64](s, l, gs, gl, kh, kw, sh, sw), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "avg_pool2d_backward", DType: gs.DType()}
	}
}

func avgPool2DBackwardTyped[T tensor.Elem](s *Storage, l *tensor.Layout, gs *Storage, gl *tensor.Layout, kh, kw, sh, sw int) tensor.Storage {
	g := gatherElems[T](gs, gl)
	b, c, hIn, wIn, hOut, wOut := pool2DDims(l.Shape(), kh, kw, sh, sw)
	out := s.alloc(b*c*hIn*wIn, s.DType())
	dst := tensor.As[T](out.buf)
	scale := T(1) / T(kh*kw)
	parallel.ForBatch(b, c, func(bi, ci int) {
		plane := (bi*c + ci) * hIn * wIn
		for ho := 0; ho < hOut; ho++ {
			for wo := 0; wo < wOut; wo++ {
				v := g[((bi*c+ci)*hOut+ho)*wOut+wo] * scale
				for i := 0; i < kh; i++ {
					for j := 0; j < kw; j++ {
						dst[plane+(ho*sh+i)*wIn+(wo*sw+j)] += v
					}
				}
			}
		}
	}, s.dev.cfg)
	return out
}

// MaxPool2DBackward routes each output gradient to the argmax position of its
// window, recomputed from the forward input held by the receiver.
func (s *Storage) MaxPool2DBackward(l *tensor.Layout, gradOut tensor.Storage, gl *tensor.Layout, kh, kw, sh, sw int) (tensor.Storage, error) {
	gs, err := asCPU("max_pool2d_backward", gradOut)
	if err != nil {
		return nil, err
	}
	switch gs.DType() {
	case tensor.F32:
		return maxPool2DBackwardTyped[float32](s, l, gs, gl, kh, kw, sh, sw), nil
	case tensor.F64:
		return maxPool2DBackwardTyped[float64](s, l, gs, gl, kh, kw, sh, sw), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "max_pool2d_backward", DType: gs.DType()}
	}
}

func maxPool2DBackwardTyped[T tensor.Elem](s *Storage, l *tensor.Layout, gs *Storage, gl *tensor.Layout, kh, kw, sh, sw int) tensor.Storage {
	in := gatherElems[T](s, l)
	g := gatherElems[T](gs, gl)
	b, c, hIn, wIn, hOut, wOut := pool2DDims(l.Shape(), kh, kw, sh, sw)
	out := s.alloc(b*c*hIn*wIn, s.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(b, c, func(bi, ci int) {
		plane := (bi*c + ci) * hIn * wIn
		for ho := 0; ho < hOut; ho++ {
			for wo := 0; wo < wOut; wo++ {
				bestPos := plane + (ho*sh)*wIn + (wo * sw)
				best := in[bestPos]
				for i := 0; i < kh; i++ {
					for j := 0; j < kw; j++ {
						pos := plane + (ho*sh+i)*wIn + (wo*sw + j)
						if in[pos] > best {
							best = in[pos]
							bestPos = pos
						}
					}
				}
				dst[bestPos] += g[((bi*c+ci)*hOut+ho)*wOut+wo]
			}
		}
	}, s.dev.cfg)
	return out
}

func (s *Storage) UpsampleNearest2D(l *tensor.Layout, outH, outW int) (tensor.Storage, error) {
	switch s.DType() {
	case tensor.U8:
		return upsampleTyped[uint8](s, l, outH, outW), nil
	case tensor.U32:
		return upsampleTyped[uint32](s, l, outH, outW), nil
	case tensor.I64:
		return upsampleTyped[int64](s, l, outH, outW), nil
	case tensor.F32:
		return upsampleTyped[float32](s, l, outH, outW), nil
	case tensor.F64:
		return upsampleTyped[float64](s, l, outH, outW), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "upsample_nearest2d", DType: s.DType()}
	}
}

func upsampleTyped[T tensor.Elem](s *Storage, l *tensor.Layout, outH, outW int) tensor.Storage {
	in := gatherElems[T](s, l)
	shape := l.Shape()
	b, c, hIn, wIn := shape[0], shape[1], shape[2], shape[3]
	out := s.alloc(b*c*outH*outW, s.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(b, c, func(bi, ci int) {
		plane := (bi*c + ci) * hIn * wIn
		for ho := 0; ho < outH; ho++ {
			hi := ho * hIn / outH
			for wo := 0; wo < outW; wo++ {
				wi := wo * wIn / outW
				dst[((bi*c+ci)*outH+ho)*outW+wo] = in[plane+hi*wIn+wi]
			}
		}
	}, s.dev.cfg)
	return out
}

// UpsampleNearest2DBackward accumulates output gradients onto their nearest
// source element; the receiver's layout supplies the input geometry.
func (s *Storage) UpsampleNearest2DBackward(l *tensor.Layout, gradOut tensor.Storage, gl *tensor.Layout) (tensor.Storage, error) {
	gs, err := asCPU("upsample_nearest2d_backward", gradOut)
	if err != nil {
		return nil, err
	}
	switch gs.DType() {
	case tensor.F32:
		return upsampleBackwardTyped[float32](s, l, gs, gl), nil
	case tensor.F64:
		return upsampleBackwardTyped[float64](s, l, gs, gl), nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "upsample_nearest2d_backward", DType: gs.DType()}
	}
}

func upsampleBackwardTyped[T tensor.Elem](s *Storage, l *tensor.Layout, gs *Storage, gl *tensor.Layout) tensor.Storage {
	g := gatherElems[T](gs, gl)
	in := l.Shape()
	gShape := gl.Shape()
	b, c, hIn, wIn := in[0], in[1], in[2], in[3]
	outH, outW := gShape[2], gShape[3]
	out := s.alloc(b*c*hIn*wIn, s.DType())
	dst := tensor.As[T](out.buf)
	parallel.ForBatch(b, c, func(bi, ci int) {
		plane := (bi*c + ci) * hIn * wIn
		for ho := 0; ho < outH; ho++ {
			hi := ho * hIn / outH
			for wo := 0; wo < outW; wo++ {
				wi := wo * wIn / outW
				dst[plane+hi*wIn+wi] += g[((bi*c+ci)*outH+ho)*outW+wo]
			}
		}
	}, s.dev.cfg)
	return out
}
