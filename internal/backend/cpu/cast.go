package cpu

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// ToDType converts each element to the target type. Values round-trip
// through float64, which is exact for everything except i64 magnitudes
// beyond 2^53.
func (s *Storage) ToDType(l *tensor.Layout, dtype tensor.DType) (tensor.Storage, error) {
	vals, err := s.asFloat64(l)
	if err != nil {
		return nil, err
	}
	out := s.alloc(len(vals), dtype)
	switch dtype {
	case tensor.U8:
		dst := out.buf.AsU8()
		for i, v := range vals {
			dst[i] = uint8(v)
		}
	case tensor.U32:
		dst := out.buf.AsU32()
		for i, v := range vals {
			dst[i] = uint32(v)
		}
	case tensor.I64:
		dst := out.buf.AsI64()
		for i, v := range vals {
			dst[i] = int64(v)
		}
	case tensor.F32:
		dst := out.buf.AsF32()
		for i, v := range vals {
			dst[i] = float32(v)
		}
	case tensor.F64:
		copy(out.buf.AsF64(), vals)
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "to_dtype", DType: dtype}
	}
	return out, nil
}

func (s *Storage) asFloat64(l *tensor.Layout) ([]float64, error) {
	out := make([]float64, 0, l.NumElements())
	switch s.DType() {
	case tensor.U8:
		for _, v := range gatherElems[uint8](s, l) {
			out = append(out, float64(v))
		}
	case tensor.U32:
		for _, v := range gatherElems[uint32](s, l) {
			out = append(out, float64(v))
		}
	case tensor.I64:
		for _, v := range gatherElems[int64](s, l) {
			out = append(out, float64(v))
		}
	case tensor.F32:
		for _, v := range gatherElems[float32](s, l) {
			out = append(out, float64(v))
		}
	case tensor.F64:
		out = append(out, gatherElems[float64](s, l)...)
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "to_dtype", DType: s.DType()}
	}
	return out, nil
}
