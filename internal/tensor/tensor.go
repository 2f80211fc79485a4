package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// TensorID uniquely identifies a tensor. Identifiers are allocated from one
// process-wide atomic counter so identity assignment is thread-safe.
type TensorID uint64

var tensorCounter atomic.Uint64

func newTensorID() TensorID {
	return TensorID(tensorCounter.Add(1))
}

// storageCell guards a storage shared by every view derived from it without a
// copy. Any number of concurrent readers or exactly one writer may hold it.
type storageCell struct {
	mu      sync.RWMutex
	storage Storage
}

// Tensor is an immutable, cheaply shareable handle onto a shared storage:
// an identifier, the lock-guarded storage, an owned layout, an optional graph
// edge, a variable flag, and dtype/device tags. No field ever changes after
// construction; only the storage contents may be observed to change, through
// another view sharing the same cell.
//
// Views (reshape of contiguous, transpose, permute, narrow, broadcast,
// detach) share storage with their source, so mutating through one view is
// observable through the others. Callers must not treat views as independent
// copies when planning in-place writes.
type Tensor struct {
	id         TensorID
	cell       *storageCell
	layout     Layout
	op         Op
	isVariable bool
	dtype      DType
	device     Device
}

// fromStorage wraps a freshly produced storage into a tensor with contiguous
// strides.
func fromStorage(s Storage, shape Shape, op Op, isVariable bool, device Device) *Tensor {
	return &Tensor{
		id:         newTensorID(),
		cell:       &storageCell{storage: s},
		layout:     ContiguousLayout(shape),
		op:         op,
		isVariable: isVariable,
		dtype:      s.DType(),
		device:     device,
	}
}

// FromStorage wraps a backend storage into a fresh contiguous tensor with no
// graph edge. It is the entry point for custom op implementations.
func FromStorage(s Storage, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return fromStorage(s, shape, nil, false, s.Device()), nil
}

// view derives a tensor sharing this tensor's storage under a new layout.
func (t *Tensor) view(layout Layout, op Op) *Tensor {
	return &Tensor{
		id:     newTensorID(),
		cell:   t.cell,
		layout: layout,
		op:     op,
		dtype:  t.dtype,
		device: t.device,
	}
}

// ID returns the tensor's unique identifier.
func (t *Tensor) ID() TensorID {
	return t.id
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.layout.Shape()
}

// Dims returns the dimension sizes.
func (t *Tensor) Dims() []int {
	return t.layout.Dims()
}

// Dim returns the size of the given dimension, which may be negative.
func (t *Tensor) Dim(dim int) (int, error) {
	d, err := t.Shape().normalizeDim(dim, "dim")
	if err != nil {
		return 0, err
	}
	return t.Shape()[d], nil
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return t.layout.Shape().Rank()
}

// NumElements returns the total number of logical elements.
func (t *Tensor) NumElements() int {
	return t.layout.NumElements()
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DType {
	return t.dtype
}

// Device returns the tensor's device.
func (t *Tensor) Device() Device {
	return t.device
}

// Layout returns the tensor's layout.
func (t *Tensor) Layout() *Layout {
	return &t.layout
}

// Stride returns the per-dimension strides in element units.
func (t *Tensor) Stride() []int {
	return t.layout.Stride()
}

// IsVariable reports whether the tensor is a trainable variable.
func (t *Tensor) IsVariable() bool {
	return t.isVariable
}

// Op returns the graph edge that produced this tensor, or nil for graph
// terminals (constructed tensors, detached tensors, untracked results).
func (t *Tensor) Op() Op {
	return t.op
}

// isTracked reports whether gradients should flow through this tensor: it is
// a variable or transitively depends on one.
func (t *Tensor) isTracked() bool {
	return t.isVariable || t.op != nil
}

// IsContiguous reports whether the data is stored row-major.
func (t *Tensor) IsContiguous() bool {
	return t.layout.IsContiguous()
}

// SameStorage reports whether two tensors share one storage cell, i.e. they
// are views of the same buffer.
func (t *Tensor) SameStorage(other *Tensor) bool {
	return t.cell == other.cell
}

// StorageAndLayout acquires shared read access to the storage and returns it
// together with the layout. The release function must be called when done.
// Exposed for backend kernels, the backward engine and custom ops; regular
// callers go through the operation surface.
func (t *Tensor) StorageAndLayout() (Storage, *Layout, func()) {
	t.cell.mu.RLock()
	return t.cell.storage, &t.layout, t.cell.mu.RUnlock
}

// withReadStorage runs f while holding shared read access to the storage.
func (t *Tensor) withReadStorage(f func(Storage) error) error {
	t.cell.mu.RLock()
	defer t.cell.mu.RUnlock()
	return f(t.cell.storage)
}

// withReadStorage2 runs f while holding shared read access to both storages.
// If both tensors share one cell the lock is taken once.
func withReadStorage2(a, b *Tensor, f func(sa, sb Storage) error) error {
	a.cell.mu.RLock()
	defer a.cell.mu.RUnlock()
	if a.cell != b.cell {
		b.cell.mu.RLock()
		defer b.cell.mu.RUnlock()
	}
	return f(a.cell.storage, b.cell.storage)
}

// withReadStorage3 runs f while holding shared read access to three storages.
func withReadStorage3(a, b, c *Tensor, f func(sa, sb, sc Storage) error) error {
	return withReadStorage2(a, b, func(sa, sb Storage) error {
		if c.cell != a.cell && c.cell != b.cell {
			c.cell.mu.RLock()
			defer c.cell.mu.RUnlock()
		}
		return f(sa, sb, c.cell.storage)
	})
}

// String returns a short human-readable description.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[%d; %s%v; %s]", t.id, t.dtype, t.Dims(), t.device.Location())
}

// sameShapeBinaryOp checks that two operands agree on shape, dtype and
// device, failing fast with a typed error naming the operation.
func (t *Tensor) sameShapeBinaryOp(rhs *Tensor, op string) (Shape, error) {
	if t.dtype != rhs.dtype {
		return nil, &DTypeMismatchError{Op: op, Lhs: t.dtype, Rhs: rhs.dtype}
	}
	if !SameDevice(t.device, rhs.device) {
		return nil, &DeviceMismatchError{Op: op, Lhs: t.device.Location(), Rhs: rhs.device.Location()}
	}
	if !t.Shape().Equal(rhs.Shape()) {
		return nil, &ShapeMismatchError{Op: op, Lhs: t.Shape().Clone(), Rhs: rhs.Shape().Clone()}
	}
	return t.Shape(), nil
}

// Detach returns a tensor sharing this tensor's storage but cut from the
// graph: gradients do not propagate through it.
func (t *Tensor) Detach() *Tensor {
	return t.view(t.layout, nil)
}

// Copy duplicates the storage. Unlike views, the result never aliases the
// source.
func (t *Tensor) Copy() (*Tensor, error) {
	var cloned Storage
	err := t.withReadStorage(func(s Storage) error {
		var err error
		cloned, err = s.TryClone()
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpCopy{Arg: arg} })
	return &Tensor{
		id:     newTensorID(),
		cell:   &storageCell{storage: cloned},
		layout: t.layout,
		op:     op,
		dtype:  t.dtype,
		device: t.device,
	}, nil
}

// Contiguous returns a row-major tensor: the same handle when the layout is
// already contiguous, otherwise a copy into a freshly allocated buffer.
func (t *Tensor) Contiguous() (*Tensor, error) {
	if t.IsContiguous() {
		return t, nil
	}
	shape := t.Shape()
	dst, err := t.device.Zeros(shape, t.dtype)
	if err != nil {
		return nil, &BackendError{Op: "contiguous", Err: err}
	}
	if err := t.withReadStorage(func(s Storage) error {
		return s.CopyStrided(dst, 0, &t.layout)
	}); err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpCopy{Arg: arg} })
	return fromStorage(dst, shape.Clone(), op, false, t.device), nil
}

// ToDevice moves the tensor to another device. When the target device equals
// the current one this returns the same handle; otherwise the data is copied
// through the CPU representation and never aliases the source storage.
func (t *Tensor) ToDevice(device Device) (*Tensor, error) {
	if SameDevice(t.device, device) {
		return t, nil
	}
	var moved Storage
	err := t.withReadStorage(func(s Storage) error {
		buf, err := s.ToCPU()
		if err != nil {
			return &BackendError{Op: "to_device", Err: err}
		}
		moved, err = device.FromCPU(buf)
		if err != nil {
			return &BackendError{Op: "to_device", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpToDevice{Arg: arg} })
	return &Tensor{
		id:     newTensorID(),
		cell:   &storageCell{storage: moved},
		layout: t.layout,
		op:     op,
		dtype:  t.dtype,
		device: device,
	}, nil
}

// ToDType casts the tensor to another data type, returning the same handle
// when the dtype already matches.
func (t *Tensor) ToDType(dtype DType) (*Tensor, error) {
	if t.dtype == dtype {
		return t, nil
	}
	var cast Storage
	err := t.withReadStorage(func(s Storage) error {
		var err error
		cast, err = s.ToDType(&t.layout, dtype)
		return err
	})
	if err != nil {
		return nil, err
	}
	op := opNew1(t, func(arg *Tensor) Op { return &OpToDType{Arg: arg} })
	return fromStorage(cast, t.Shape().Clone(), op, false, t.device), nil
}
