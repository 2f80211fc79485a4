// Package cpu implements the CPU device and its kernels for the Ember ML
// framework. Storage lives in host memory as a typed byte buffer; kernels
// operate through layout-aware strided iteration with parallel chunking for
// large contiguous workloads.
package cpu

import (
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

var cpuLocation = tensor.DeviceLocation{Backend: "cpu"}

// Device is the CPU device provider. Distinct ordinals behave as separate
// devices for transfer and mismatch purposes while sharing the same kernels.
type Device struct {
	cfg parallel.Config
	loc tensor.DeviceLocation
}

// New creates a CPU device with default parallelism.
func New() *Device {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewAt creates a CPU device with a distinct ordinal. Tensors on different
// ordinals must be moved with ToDevice before they can be combined.
func NewAt(ordinal int) *Device {
	d := NewWithConfig(parallel.DefaultConfig())
	d.loc.Ordinal = ordinal
	return d
}

// NewWithConfig creates a CPU device with explicit parallelism settings.
func NewWithConfig(cfg parallel.Config) *Device {
	log.Debug().
		Bool("parallel", cfg.Enabled).
		Int("workers", cfg.NumWorkers).
		Msg("cpu device initialized")
	return &Device{cfg: cfg, loc: cpuLocation}
}

// Location identifies the CPU device.
func (d *Device) Location() tensor.DeviceLocation {
	return d.loc
}

// Zeros allocates a zero-filled storage.
func (d *Device) Zeros(shape tensor.Shape, dtype tensor.DType) (tensor.Storage, error) {
	return &Storage{buf: tensor.NewBuffer(shape.NumElements(), dtype), dev: d}, nil
}

// Ones allocates a one-filled storage.
func (d *Device) Ones(shape tensor.Shape, dtype tensor.DType) (tensor.Storage, error) {
	s := &Storage{buf: tensor.NewBuffer(shape.NumElements(), dtype), dev: d}
	switch dtype {
	case tensor.U8:
		fill(s.buf.AsU8(), uint8(1))
	case tensor.U32:
		fill(s.buf.AsU32(), uint32(1))
	case tensor.I64:
		fill(s.buf.AsI64(), int64(1))
	case tensor.F32:
		fill(s.buf.AsF32(), float32(1))
	case tensor.F64:
		fill(s.buf.AsF64(), float64(1))
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "ones", DType: dtype}
	}
	return s, nil
}

// RandUniform fills a storage with uniform samples from [lo, up).
func (d *Device) RandUniform(shape tensor.Shape, dtype tensor.DType, lo, up float64) (tensor.Storage, error) {
	s := &Storage{buf: tensor.NewBuffer(shape.NumElements(), dtype), dev: d}
	span := up - lo
	switch dtype {
	case tensor.F32:
		data := s.buf.AsF32()
		for i := range data {
			data[i] = float32(lo + span*rand.Float64())
		}
	case tensor.F64:
		data := s.buf.AsF64()
		for i := range data {
			data[i] = lo + span*rand.Float64()
		}
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "rand_uniform", DType: dtype}
	}
	return s, nil
}

// RandNormal fills a storage with normal samples.
func (d *Device) RandNormal(shape tensor.Shape, dtype tensor.DType, mean, std float64) (tensor.Storage, error) {
	s := &Storage{buf: tensor.NewBuffer(shape.NumElements(), dtype), dev: d}
	switch dtype {
	case tensor.F32:
		data := s.buf.AsF32()
		for i := range data {
			data[i] = float32(mean + std*rand.NormFloat64())
		}
	case tensor.F64:
		data := s.buf.AsF64()
		for i := range data {
			data[i] = mean + std*rand.NormFloat64()
		}
	default:
		return nil, &tensor.UnsupportedDTypeError{Op: "rand_normal", DType: dtype}
	}
	return s, nil
}

// FromCPU copies a CPU buffer into a fresh storage.
func (d *Device) FromCPU(buf *tensor.Buffer) (tensor.Storage, error) {
	return &Storage{buf: buf.Clone(), dev: d}, nil
}

func fill[T tensor.Elem](data []T, v T) {
	for i := range data {
		data[i] = v
	}
}
