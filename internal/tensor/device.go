package tensor

import "fmt"

// DeviceLocation identifies a device for equality and compatibility checks.
// Two devices are the same iff their locations compare equal.
type DeviceLocation struct {
	Backend string
	Ordinal int
}

func (l DeviceLocation) String() string {
	if l.Ordinal == 0 {
		return l.Backend
	}
	return fmt.Sprintf("%s:%d", l.Backend, l.Ordinal)
}

// Device is the provider contract each backend implements: allocate filled or
// random storages, report its identity, and transfer buffers to and from the
// CPU representation.
type Device interface {
	Location() DeviceLocation

	Zeros(shape Shape, dtype DType) (Storage, error)
	Ones(shape Shape, dtype DType) (Storage, error)

	// RandUniform fills with samples from [lo, up); float dtypes only.
	RandUniform(shape Shape, dtype DType, lo, up float64) (Storage, error)
	// RandNormal fills with normal samples; float dtypes only.
	RandNormal(shape Shape, dtype DType, mean, std float64) (Storage, error)

	// FromCPU uploads a CPU-resident buffer into a device storage. The
	// buffer contents are copied; the storage never aliases the buffer
	// unless the device is itself the CPU.
	FromCPU(buf *Buffer) (Storage, error)
}

// SameDevice reports whether two devices share one location.
func SameDevice(a, b Device) bool {
	return a.Location() == b.Location()
}
