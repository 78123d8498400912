package compute

import (
	"unsafe"

	"github.com/pkg/errors"
)

// deviceRuntime is the boundary to the CUDA runtime and the legacy cuSOLVER
// dense API. Handles, streams and device pointers are opaque.
type deviceRuntime interface {
	CreateHandle() (unsafe.Pointer, error)
	DestroyHandle(handle unsafe.Pointer) error
	CreateStream() (unsafe.Pointer, error)
	DestroyStream(stream unsafe.Pointer) error
	SetStream(handle, stream unsafe.Pointer) error

	Malloc(bytes int) (unsafe.Pointer, error)
	Free(ptr unsafe.Pointer) error
	CopyToDevice(dst, src unsafe.Pointer, bytes int) error
	CopyToHost(dst, src unsafe.Pointer, bytes int) error

	DeviceSynchronize() error
	StreamSynchronize(stream unsafe.Pointer) error

	// DpotrfBufferSize returns the workspace size in doubles.
	DpotrfBufferSize(handle unsafe.Pointer, n int, a unsafe.Pointer, lda int) (int, error)
	Dpotrf(handle unsafe.Pointer, n int, a unsafe.Pointer, lda int, work unsafe.Pointer, lwork int, info unsafe.Pointer) error
	Dpotrs(handle unsafe.Pointer, n, nrhs int, a unsafe.Pointer, lda int, b unsafe.Pointer, ldb int, info unsafe.Pointer) error
}

// genericSolver is the 64-bit cuSOLVER API (CUDA 11.1+). Runtimes built
// against older toolkits do not implement it.
type genericSolver interface {
	// XpotrfBufferSize returns the device and host workspace sizes in bytes.
	XpotrfBufferSize(handle unsafe.Pointer, n int64, a unsafe.Pointer, lda int64) (deviceBytes, hostBytes int, err error)
	Xpotrf(handle unsafe.Pointer, n int64, a unsafe.Pointer, lda int64,
		deviceWork unsafe.Pointer, deviceBytes int, hostWork unsafe.Pointer, hostBytes int, info unsafe.Pointer) error
	Xpotrs(handle unsafe.Pointer, n, nrhs int64, a unsafe.Pointer, lda int64, b unsafe.Pointer, ldb int64, info unsafe.Pointer) error

	HostAlloc(bytes int) (unsafe.Pointer, error)
	HostFree(ptr unsafe.Pointer) error
}

// genericRuntime is a device runtime that also offers the 64-bit API.
type genericRuntime struct {
	deviceRuntime
	genericSolver
}

// runtimeFor attaches x to rt when the toolkit the binary was built against
// provides the 64-bit API. Otherwise rt is returned as is and the 64-bit
// backend refuses to initialize.
func runtimeFor(rt deviceRuntime, x genericSolver, available bool) deviceRuntime {
	if !available || x == nil {
		return rt
	}
	return genericRuntime{deviceRuntime: rt, genericSolver: x}
}

// deviceBuffer is a device allocation of size elements of T. It only grows.
type deviceBuffer[T any] struct {
	rt   deviceRuntime
	data unsafe.Pointer
	size int
}

func (b *deviceBuffer[T]) elemSize() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Reserve makes room for size elements, reallocating only when the buffer
// is too small. Contents are not preserved across a reallocation.
func (b *deviceBuffer[T]) Reserve(size int) error {
	if size <= b.size {
		return nil
	}
	if err := b.Free(); err != nil {
		return err
	}
	p, err := b.rt.Malloc(size * b.elemSize())
	if err != nil {
		return errors.Wrap(err, "cudaMalloc failed")
	}
	b.data = p
	b.size = size
	return nil
}

func (b *deviceBuffer[T]) CopyToGpu(src []T) error {
	if err := b.Reserve(len(src)); err != nil {
		return err
	}
	if len(src) == 0 {
		return nil
	}
	if err := b.rt.CopyToDevice(b.data, unsafe.Pointer(unsafe.SliceData(src)), len(src)*b.elemSize()); err != nil {
		return errors.Wrap(err, "cudaMemcpy host to device failed")
	}
	return nil
}

func (b *deviceBuffer[T]) CopyToHost(dst []T) error {
	if len(dst) > b.size {
		return errors.Errorf("device buffer holds %d elements, %d requested", b.size, len(dst))
	}
	if len(dst) == 0 {
		return nil
	}
	if err := b.rt.CopyToHost(unsafe.Pointer(unsafe.SliceData(dst)), b.data, len(dst)*b.elemSize()); err != nil {
		return errors.Wrap(err, "cudaMemcpy device to host failed")
	}
	return nil
}

func (b *deviceBuffer[T]) Free() error {
	if b.data == nil {
		return nil
	}
	err := b.rt.Free(b.data)
	b.data = nil
	b.size = 0
	if err != nil {
		return errors.Wrap(err, "cudaFree failed")
	}
	return nil
}

func (b *deviceBuffer[T]) Data() unsafe.Pointer { return b.data }
func (b *deviceBuffer[T]) Size() int            { return b.size }

// hostBuffer is host scratch for the 64-bit API. It lives outside the Go
// heap since cuSOLVER may read it after Xpotrf returns.
type hostBuffer struct {
	x    genericSolver
	data unsafe.Pointer
	size int
}

func (h *hostBuffer) Reserve(bytes int) error {
	if bytes <= h.size {
		return nil
	}
	if err := h.Free(); err != nil {
		return err
	}
	p, err := h.x.HostAlloc(bytes)
	if err != nil {
		return errors.Wrap(err, "host workspace allocation failed")
	}
	h.data = p
	h.size = bytes
	return nil
}

func (h *hostBuffer) Free() error {
	if h.data == nil {
		return nil
	}
	err := h.x.HostFree(h.data)
	h.data = nil
	h.size = 0
	return err
}
