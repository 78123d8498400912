package compute

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// cudaContext is the state shared by both cuSOLVER generations: one solver
// handle bound to one stream, and the device copies of the system.
type cudaContext struct {
	rt     deviceRuntime
	handle unsafe.Pointer
	stream unsafe.Pointer

	lhs     deviceBuffer[float64]
	rhs     deviceBuffer[float64]
	devInfo deviceBuffer[int32]

	numCols         int
	factorizeResult LinearSolverTerminationType
}

func newCUDAContext(rt deviceRuntime) cudaContext {
	return cudaContext{
		rt:              rt,
		lhs:             deviceBuffer[float64]{rt: rt},
		rhs:             deviceBuffer[float64]{rt: rt},
		devInfo:         deviceBuffer[int32]{rt: rt},
		factorizeResult: LinearSolverNotFactorized,
	}
}

// setup creates the handle and stream and binds them. On failure everything
// created so far is destroyed again.
func (c *cudaContext) setup() error {
	handle, err := c.rt.CreateHandle()
	if err != nil {
		return errors.Wrap(err, "cuSolverDN::cusolverDnCreate failed")
	}
	stream, err := c.rt.CreateStream()
	if err != nil {
		c.rt.DestroyHandle(handle)
		return errors.Wrap(err, "cuSolverDN::cudaStreamCreate failed")
	}
	if err := c.rt.SetStream(handle, stream); err != nil {
		c.rt.DestroyStream(stream)
		c.rt.DestroyHandle(handle)
		return errors.Wrap(err, "cuSolverDN::cusolverDnSetStream failed")
	}
	c.handle = handle
	c.stream = stream

	if err := c.devInfo.Reserve(1); err != nil {
		c.cleanup()
		return err
	}
	return nil
}

func (c *cudaContext) cleanup() {
	for _, free := range []func() error{c.lhs.Free, c.rhs.Free, c.devInfo.Free} {
		if err := free(); err != nil {
			log.Error().Err(err).Msg("releasing cuda buffer")
		}
	}
	if c.handle == nil {
		return
	}
	if err := c.rt.DestroyHandle(c.handle); err != nil {
		fatalf("cusolverDnDestroy failed: %v", err)
	}
	if err := c.rt.DestroyStream(c.stream); err != nil {
		fatalf("cudaStreamDestroy failed: %v", err)
	}
	c.handle = nil
	c.stream = nil
}

// synchronize waits for the device and then for the solver stream. Both are
// checked.
func (c *cudaContext) synchronize() error {
	if err := c.rt.DeviceSynchronize(); err != nil {
		return err
	}
	return c.rt.StreamSynchronize(c.stream)
}

func (c *cudaContext) readInfo() (int, error) {
	info := []int32{0}
	if err := c.devInfo.CopyToHost(info); err != nil {
		return 0, err
	}
	return int(info[0]), nil
}

// beginFactorize validates the input, uploads the matrix and leaves the
// context marked as failed until the factorization reports back.
func (c *cudaContext) beginFactorize(numCols int, lhs []float64) (LinearSolverTerminationType, string, bool) {
	c.factorizeResult = LinearSolverFatalError
	if msg, ok := checkSystem(numCols, lhs); !ok {
		status, msg := misuse(msg)
		return status, msg, false
	}
	c.numCols = numCols
	if err := c.lhs.CopyToGpu(lhs[:numCols*numCols]); err != nil {
		return LinearSolverFatalError, err.Error(), false
	}
	return LinearSolverSuccess, "", true
}

// finishFactorize synchronizes, reads the device info code and records the
// outcome for Solve.
func (c *cudaContext) finishFactorize(routine string) (LinearSolverTerminationType, string) {
	if err := c.synchronize(); err != nil {
		return LinearSolverFatalError, syncFailedMessage
	}
	info, err := c.readInfo()
	if err != nil {
		return LinearSolverFatalError, err.Error()
	}

	switch {
	case info < 0:
		msg := invalidArgument(routine, info)
		fatalf("%s", msg)
		return LinearSolverFatalError, msg
	case info > 0:
		c.factorizeResult = LinearSolverFailure
		return LinearSolverFailure, notPositiveDefinite(routine, info)
	}
	c.factorizeResult = LinearSolverSuccess
	return LinearSolverSuccess, successMessage
}

// beginSolve refuses to run without a successful factorization and uploads
// the right hand side otherwise.
func (c *cudaContext) beginSolve(rhs, solution []float64) (LinearSolverTerminationType, string, bool) {
	if c.factorizeResult != LinearSolverSuccess {
		return c.factorizeResult, notFactorizedMessage, false
	}
	if msg, ok := checkVectors(c.numCols, rhs, solution); !ok {
		status, msg := misuse(msg)
		return status, msg, false
	}
	if err := c.rhs.CopyToGpu(rhs[:c.numCols]); err != nil {
		return LinearSolverFatalError, err.Error(), false
	}
	return LinearSolverSuccess, "", true
}

func (c *cudaContext) finishSolve(routine string, solution []float64) (LinearSolverTerminationType, string) {
	if err := c.synchronize(); err != nil {
		return LinearSolverFatalError, syncFailedMessage
	}
	info, err := c.readInfo()
	if err != nil {
		return LinearSolverFatalError, err.Error()
	}
	if info != 0 {
		msg := invalidArgument(routine, info)
		fatalf("%s", msg)
		return LinearSolverFatalError, msg
	}
	if err := c.rhs.CopyToHost(solution[:c.numCols]); err != nil {
		return LinearSolverFatalError, err.Error()
	}
	return LinearSolverSuccess, successMessage
}

// CUDADenseCholesky32Bit uses the legacy cusolverDnDpotrf/cusolverDnDpotrs
// entry points with 32-bit indices.
type CUDADenseCholesky32Bit struct {
	cudaContext
	workspace deviceBuffer[float64]
}

func newCUDADenseCholesky32Bit(rt deviceRuntime) *CUDADenseCholesky32Bit {
	return &CUDADenseCholesky32Bit{
		cudaContext: newCUDAContext(rt),
		workspace:   deviceBuffer[float64]{rt: rt},
	}
}

func (c *CUDADenseCholesky32Bit) Name() string { return "cuda-legacy" }

func (c *CUDADenseCholesky32Bit) Init() error {
	return c.setup()
}

func (c *CUDADenseCholesky32Bit) Cleanup() {
	if err := c.workspace.Free(); err != nil {
		log.Error().Err(err).Msg("releasing cuda workspace")
	}
	c.cleanup()
}

func (c *CUDADenseCholesky32Bit) Factorize(numCols int, lhs []float64) (LinearSolverTerminationType, string) {
	if status, msg, ok := c.beginFactorize(numCols, lhs); !ok {
		return status, msg
	}
	n := numCols

	lwork, err := c.rt.DpotrfBufferSize(c.handle, n, c.lhs.Data(), lda(n))
	if err != nil {
		return LinearSolverFatalError, "cuSolverDN::cusolverDnDpotrf_bufferSize failed."
	}
	if err := c.workspace.Reserve(lwork); err != nil {
		return LinearSolverFatalError, err.Error()
	}
	if err := c.rt.Dpotrf(c.handle, n, c.lhs.Data(), lda(n),
		c.workspace.Data(), c.workspace.Size(), c.devInfo.Data()); err != nil {
		return LinearSolverFatalError, "cuSolverDN::cusolverDnDpotrf failed."
	}
	return c.finishFactorize("cuSolverDN::cusolverDnDpotrf")
}

func (c *CUDADenseCholesky32Bit) Solve(rhs, solution []float64) (LinearSolverTerminationType, string) {
	if status, msg, ok := c.beginSolve(rhs, solution); !ok {
		return status, msg
	}
	n := c.numCols
	if err := c.rt.Dpotrs(c.handle, n, 1, c.lhs.Data(), lda(n),
		c.rhs.Data(), lda(n), c.devInfo.Data()); err != nil {
		return LinearSolverFatalError, "cuSolverDN::cusolverDnDpotrs failed."
	}
	return c.finishSolve("cuSolverDN::cusolverDnDpotrs", solution)
}

// CUDADenseCholesky64Bit uses the generic cusolverDnXpotrf/cusolverDnXpotrs
// API with 64-bit indices and separate host and device workspaces.
type CUDADenseCholesky64Bit struct {
	cudaContext
	x               genericSolver
	deviceWorkspace deviceBuffer[byte]
	hostWorkspace   hostBuffer
}

func newCUDADenseCholesky64Bit(rt deviceRuntime) *CUDADenseCholesky64Bit {
	x, _ := rt.(genericSolver)
	return &CUDADenseCholesky64Bit{
		cudaContext:     newCUDAContext(rt),
		x:               x,
		deviceWorkspace: deviceBuffer[byte]{rt: rt},
		hostWorkspace:   hostBuffer{x: x},
	}
}

func (c *CUDADenseCholesky64Bit) Name() string { return "cuda-current" }

// Init fails without touching the device when the runtime predates the
// 64-bit API.
func (c *CUDADenseCholesky64Bit) Init() error {
	if c.x == nil {
		return errors.New(cuda64NotBuiltMessage)
	}
	return c.setup()
}

func (c *CUDADenseCholesky64Bit) Cleanup() {
	if err := c.deviceWorkspace.Free(); err != nil {
		log.Error().Err(err).Msg("releasing cuda workspace")
	}
	if c.x != nil {
		if err := c.hostWorkspace.Free(); err != nil {
			log.Error().Err(err).Msg("releasing host workspace")
		}
	}
	c.cleanup()
}

func (c *CUDADenseCholesky64Bit) Factorize(numCols int, lhs []float64) (LinearSolverTerminationType, string) {
	if c.x == nil {
		c.factorizeResult = LinearSolverFatalError
		return LinearSolverFatalError, cuda64NotBuiltMessage
	}
	if status, msg, ok := c.beginFactorize(numCols, lhs); !ok {
		return status, msg
	}
	n := int64(numCols)
	ld := int64(lda(numCols))

	deviceBytes, hostBytes, err := c.x.XpotrfBufferSize(c.handle, n, c.lhs.Data(), ld)
	if err != nil {
		return LinearSolverFatalError, "cuSolverDN::cusolverDnXpotrf_bufferSize failed."
	}
	if err := c.hostWorkspace.Reserve(hostBytes); err != nil {
		return LinearSolverFatalError, err.Error()
	}
	if err := c.deviceWorkspace.Reserve(deviceBytes); err != nil {
		return LinearSolverFatalError, err.Error()
	}
	if err := c.x.Xpotrf(c.handle, n, c.lhs.Data(), ld,
		c.deviceWorkspace.Data(), c.deviceWorkspace.Size(),
		c.hostWorkspace.data, c.hostWorkspace.size,
		c.devInfo.Data()); err != nil {
		return LinearSolverFatalError, "cuSolverDN::cusolverDnXpotrf failed."
	}
	return c.finishFactorize("cuSolverDN::cusolverDnXpotrf")
}

func (c *CUDADenseCholesky64Bit) Solve(rhs, solution []float64) (LinearSolverTerminationType, string) {
	if status, msg, ok := c.beginSolve(rhs, solution); !ok {
		return status, msg
	}
	n := int64(c.numCols)
	ld := int64(lda(c.numCols))
	if err := c.x.Xpotrs(c.handle, n, 1, c.lhs.Data(), ld,
		c.rhs.Data(), ld, c.devInfo.Data()); err != nil {
		return LinearSolverFatalError, "cuSolverDN::cusolverDnXpotrs failed."
	}
	return c.finishSolve("cuSolverDN::cusolverDnXpotrs", solution)
}
