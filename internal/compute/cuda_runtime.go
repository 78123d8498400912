//go:build cuda

package compute

/*
#cgo CFLAGS: -I/opt/cuda/include -I/usr/local/cuda/include
#cgo LDFLAGS: -L/opt/cuda/lib64 -L/usr/local/cuda/lib64 -lcusolver -lcudart
#include <stdlib.h>
#include <cuda_runtime.h>
#include <cusolverDn.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

var cudaRuntimeVersion = int(C.CUDART_VERSION)

type cudaError C.cudaError_t

func (e cudaError) Error() string {
	return C.GoString(C.cudaGetErrorString(C.cudaError_t(e)))
}

type cusolverStatus C.cusolverStatus_t

func (s cusolverStatus) Error() string {
	return fmt.Sprintf("cusolver status %d", int(s))
}

func checkCUDA(e C.cudaError_t) error {
	if e != C.cudaSuccess {
		return cudaError(e)
	}
	return nil
}

func checkCusolver(s C.cusolverStatus_t) error {
	if s != C.CUSOLVER_STATUS_SUCCESS {
		return cusolverStatus(s)
	}
	return nil
}

// cudaRuntime talks to the CUDA runtime and cuSOLVER on the current device.
type cudaRuntime struct{}

func (cudaRuntime) CreateHandle() (unsafe.Pointer, error) {
	var h C.cusolverDnHandle_t
	if err := checkCusolver(C.cusolverDnCreate(&h)); err != nil {
		return nil, err
	}
	return unsafe.Pointer(h), nil
}

func (cudaRuntime) DestroyHandle(handle unsafe.Pointer) error {
	return checkCusolver(C.cusolverDnDestroy(C.cusolverDnHandle_t(handle)))
}

func (cudaRuntime) CreateStream() (unsafe.Pointer, error) {
	var s C.cudaStream_t
	if err := checkCUDA(C.cudaStreamCreate(&s)); err != nil {
		return nil, err
	}
	return unsafe.Pointer(s), nil
}

func (cudaRuntime) DestroyStream(stream unsafe.Pointer) error {
	return checkCUDA(C.cudaStreamDestroy(C.cudaStream_t(stream)))
}

func (cudaRuntime) SetStream(handle, stream unsafe.Pointer) error {
	return checkCusolver(C.cusolverDnSetStream(C.cusolverDnHandle_t(handle), C.cudaStream_t(stream)))
}

func (cudaRuntime) Malloc(bytes int) (unsafe.Pointer, error) {
	var p unsafe.Pointer
	if err := checkCUDA(C.cudaMalloc(&p, C.size_t(bytes))); err != nil {
		return nil, err
	}
	return p, nil
}

func (cudaRuntime) Free(ptr unsafe.Pointer) error {
	return checkCUDA(C.cudaFree(ptr))
}

func (cudaRuntime) CopyToDevice(dst, src unsafe.Pointer, bytes int) error {
	return checkCUDA(C.cudaMemcpy(dst, src, C.size_t(bytes), C.cudaMemcpyHostToDevice))
}

func (cudaRuntime) CopyToHost(dst, src unsafe.Pointer, bytes int) error {
	return checkCUDA(C.cudaMemcpy(dst, src, C.size_t(bytes), C.cudaMemcpyDeviceToHost))
}

func (cudaRuntime) DeviceSynchronize() error {
	return checkCUDA(C.cudaDeviceSynchronize())
}

func (cudaRuntime) StreamSynchronize(stream unsafe.Pointer) error {
	return checkCUDA(C.cudaStreamSynchronize(C.cudaStream_t(stream)))
}

func (cudaRuntime) DpotrfBufferSize(handle unsafe.Pointer, n int, a unsafe.Pointer, lda int) (int, error) {
	var lwork C.int
	err := checkCusolver(C.cusolverDnDpotrf_bufferSize(
		C.cusolverDnHandle_t(handle), C.CUBLAS_FILL_MODE_LOWER,
		C.int(n), (*C.double)(a), C.int(lda), &lwork))
	return int(lwork), err
}

func (cudaRuntime) Dpotrf(handle unsafe.Pointer, n int, a unsafe.Pointer, lda int, work unsafe.Pointer, lwork int, info unsafe.Pointer) error {
	return checkCusolver(C.cusolverDnDpotrf(
		C.cusolverDnHandle_t(handle), C.CUBLAS_FILL_MODE_LOWER,
		C.int(n), (*C.double)(a), C.int(lda),
		(*C.double)(work), C.int(lwork), (*C.int)(info)))
}

func (cudaRuntime) Dpotrs(handle unsafe.Pointer, n, nrhs int, a unsafe.Pointer, lda int, b unsafe.Pointer, ldb int, info unsafe.Pointer) error {
	return checkCusolver(C.cusolverDnDpotrs(
		C.cusolverDnHandle_t(handle), C.CUBLAS_FILL_MODE_LOWER,
		C.int(n), C.int(nrhs), (*C.double)(a), C.int(lda),
		(*C.double)(b), C.int(ldb), (*C.int)(info)))
}
