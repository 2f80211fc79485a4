package cpu

import (
	"gonum.org/v1/gonum/blas"
	blasimpl "gonum.org/v1/gonum/blas/gonum"

	"github.com/ember-ml/ember/internal/tensor"
)

var gemm blasimpl.Implementation

// Matmul contracts (b, m, k) x (b, k, n) -> (b, m, n) through BLAS gemm
// calls, one per batch. Operands are materialized in logical order first so
// arbitrary views multiply correctly. Float dtypes only.
func (s *Storage) Matmul(rhs tensor.Storage, b, m, n, k int, ll, rl *tensor.Layout) (tensor.Storage, error) {
	r, err := asCPU("matmul", rhs)
	if err != nil {
		return nil, err
	}
	switch s.DType() {
	case tensor.F32:
		a := gatherElems[float32](s, ll)
		bb := gatherElems[float32](r, rl)
		out := s.alloc(b*m*n, tensor.F32)
		c := out.buf.AsF32()
		for i := 0; i < b; i++ {
			if m == 0 || n == 0 || k == 0 {
				continue
			}
			gemm.Sgemm(blas.NoTrans, blas.NoTrans, m, n, k,
				1, a[i*m*k:(i+1)*m*k], k,
				bb[i*k*n:(i+1)*k*n], n,
				0, c[i*m*n:(i+1)*m*n], n)
		}
		return out, nil
	case tensor.F64:
		a := gatherElems[float64](s, ll)
		bb := gatherElems[float64](r, rl)
		out := s.alloc(b*m*n, tensor.F64)
		c := out.buf.AsF64()
		for i := 0; i < b; i++ {
			if m == 0 || n == 0 || k == 0 {
				continue
			}
			gemm.Dgemm(blas.NoTrans, blas.NoTrans, m, n, k,
				1, a[i*m*k:(i+1)*m*k], k,
				bb[i*k*n:(i+1)*k*n], n,
				0, c[i*m*n:(i+1)*m*n], n)
		}
		return out, nil
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "matmul", DType: s.DType()}
	}
}
