//go:build cuda

package compute

/*
#cgo CFLAGS: -I/opt/cuda/include -I/usr/local/cuda/include
#include <stdint.h>
#include <stdlib.h>
#include <cuda_runtime.h>
#include <cusolverDn.h>

#if CUDART_VERSION >= 11010
static int ds_has_xpotrf(void) { return 1; }

static cusolverStatus_t ds_xpotrf_buffer_size(cusolverDnHandle_t h, int64_t n, void *a, int64_t lda,
                                              size_t *device_bytes, size_t *host_bytes) {
	return cusolverDnXpotrf_bufferSize(h, NULL, CUBLAS_FILL_MODE_LOWER, n, CUDA_R_64F, a, lda,
	                                   CUDA_R_64F, device_bytes, host_bytes);
}

static cusolverStatus_t ds_xpotrf(cusolverDnHandle_t h, int64_t n, void *a, int64_t lda,
                                  void *device_work, size_t device_bytes,
                                  void *host_work, size_t host_bytes, int *info) {
	return cusolverDnXpotrf(h, NULL, CUBLAS_FILL_MODE_LOWER, n, CUDA_R_64F, a, lda, CUDA_R_64F,
	                        device_work, device_bytes, host_work, host_bytes, info);
}

static cusolverStatus_t ds_xpotrs(cusolverDnHandle_t h, int64_t n, int64_t nrhs, void *a, int64_t lda,
                                  void *b, int64_t ldb, int *info) {
	return cusolverDnXpotrs(h, NULL, CUBLAS_FILL_MODE_LOWER, n, nrhs, CUDA_R_64F, a, lda,
	                        CUDA_R_64F, b, ldb, info);
}
#else
static int ds_has_xpotrf(void) { return 0; }

static cusolverStatus_t ds_xpotrf_buffer_size(cusolverDnHandle_t h, int64_t n, void *a, int64_t lda,
                                              size_t *device_bytes, size_t *host_bytes) {
	return CUSOLVER_STATUS_NOT_SUPPORTED;
}

static cusolverStatus_t ds_xpotrf(cusolverDnHandle_t h, int64_t n, void *a, int64_t lda,
                                  void *device_work, size_t device_bytes,
                                  void *host_work, size_t host_bytes, int *info) {
	return CUSOLVER_STATUS_NOT_SUPPORTED;
}

static cusolverStatus_t ds_xpotrs(cusolverDnHandle_t h, int64_t n, int64_t nrhs, void *a, int64_t lda,
                                  void *b, int64_t ldb, int *info) {
	return CUSOLVER_STATUS_NOT_SUPPORTED;
}
#endif
*/
import "C"

import (
	"unsafe"

	"github.com/pkg/errors"
)

// The 64-bit entry points exist from CUDA 11.1. Older toolkits compile the
// stubs above and the runtime is handed out without them.
var systemDeviceRuntime = func() deviceRuntime {
	return runtimeFor(cudaRuntime{}, cudaGenericAPI{}, C.ds_has_xpotrf() != 0)
}

// cudaGenericAPI is cusolverDnXpotrf/cusolverDnXpotrs with default params.
type cudaGenericAPI struct{}

var _ genericSolver = cudaGenericAPI{}

func (cudaGenericAPI) XpotrfBufferSize(handle unsafe.Pointer, n int64, a unsafe.Pointer, lda int64) (int, int, error) {
	var deviceBytes, hostBytes C.size_t
	err := checkCusolver(C.ds_xpotrf_buffer_size(C.cusolverDnHandle_t(handle),
		C.int64_t(n), a, C.int64_t(lda), &deviceBytes, &hostBytes))
	return int(deviceBytes), int(hostBytes), err
}

func (cudaGenericAPI) Xpotrf(handle unsafe.Pointer, n int64, a unsafe.Pointer, lda int64,
	deviceWork unsafe.Pointer, deviceBytes int, hostWork unsafe.Pointer, hostBytes int, info unsafe.Pointer) error {
	return checkCusolver(C.ds_xpotrf(C.cusolverDnHandle_t(handle),
		C.int64_t(n), a, C.int64_t(lda),
		deviceWork, C.size_t(deviceBytes), hostWork, C.size_t(hostBytes),
		(*C.int)(info)))
}

func (cudaGenericAPI) Xpotrs(handle unsafe.Pointer, n, nrhs int64, a unsafe.Pointer, lda int64, b unsafe.Pointer, ldb int64, info unsafe.Pointer) error {
	return checkCusolver(C.ds_xpotrs(C.cusolverDnHandle_t(handle),
		C.int64_t(n), C.int64_t(nrhs), a, C.int64_t(lda),
		b, C.int64_t(ldb), (*C.int)(info)))
}

func (cudaGenericAPI) HostAlloc(bytes int) (unsafe.Pointer, error) {
	if bytes == 0 {
		return nil, nil
	}
	p := C.malloc(C.size_t(bytes))
	if p == nil {
		return nil, errors.New("malloc failed")
	}
	return p, nil
}

func (cudaGenericAPI) HostFree(ptr unsafe.Pointer) error {
	C.free(ptr)
	return nil
}
