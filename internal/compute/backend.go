package compute

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DenseLinearAlgebraLibraryType names the library that performs the
// factorization.
type DenseLinearAlgebraLibraryType int

const (
	Gonum DenseLinearAlgebraLibraryType = iota
	LAPACK
	CUDA
)

func (t DenseLinearAlgebraLibraryType) String() string {
	switch t {
	case Gonum:
		return "GONUM"
	case LAPACK:
		return "LAPACK"
	case CUDA:
		return "CUDA"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(t))
	}
}

// ParseLibraryType accepts the names printed by String, in any case.
func ParseLibraryType(s string) (DenseLinearAlgebraLibraryType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GONUM":
		return Gonum, nil
	case "LAPACK":
		return LAPACK, nil
	case "CUDA":
		return CUDA, nil
	}
	return Gonum, errors.Wrapf(ErrUnknownLibrary, "%q", s)
}

// CUDASolverAPI picks the cuSOLVER generation used by the CUDA backend.
type CUDASolverAPI int

const (
	// CUDASolverAuto uses the 64-bit API when the runtime provides it.
	CUDASolverAuto CUDASolverAPI = iota
	// CUDASolverLegacy uses cusolverDnDpotrf/cusolverDnDpotrs.
	CUDASolverLegacy
	// CUDASolverCurrent uses cusolverDnXpotrf/cusolverDnXpotrs.
	CUDASolverCurrent
)

func (a CUDASolverAPI) String() string {
	switch a {
	case CUDASolverAuto:
		return "auto"
	case CUDASolverLegacy:
		return "legacy"
	case CUDASolverCurrent:
		return "current"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

func ParseCUDASolverAPI(s string) (CUDASolverAPI, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return CUDASolverAuto, nil
	case "legacy", "32bit":
		return CUDASolverLegacy, nil
	case "current", "64bit":
		return CUDASolverCurrent, nil
	}
	return CUDASolverAuto, errors.Wrapf(ErrUnknownSolverAPI, "%q", s)
}

// Options configures backend construction. It is read once by Create.
type Options struct {
	DenseLinearAlgebraLibraryType DenseLinearAlgebraLibraryType
	CUDASolverAPI                 CUDASolverAPI
}

// DenseCholesky factorizes a dense symmetric positive definite matrix and
// solves against the stored factor.
//
// Every call returns a termination type and a message. The message is always
// set, so callers can log it unconditionally.
type DenseCholesky interface {
	Name() string

	// Factorize computes the Cholesky factor of the numCols x numCols
	// column-major matrix in lhs. Only the lower triangle is read. lhs may be
	// overwritten and, for some backends, must stay alive until the last
	// Solve.
	Factorize(numCols int, lhs []float64) (LinearSolverTerminationType, string)

	// Solve computes solution = A^-1 rhs using the factor from the most recent
	// Factorize. rhs and solution must not overlap.
	Solve(rhs, solution []float64) (LinearSolverTerminationType, string)

	// Cleanup releases every external resource. The instance must not be
	// used afterwards.
	Cleanup()
}

// FactorAndSolve runs Factorize and, if it succeeded, Solve.
func FactorAndSolve(d DenseCholesky, numCols int, lhs, rhs, solution []float64) (LinearSolverTerminationType, string) {
	status, msg := d.Factorize(numCols, lhs)
	if status == LinearSolverSuccess {
		status, msg = d.Solve(rhs, solution)
	}
	return status, msg
}

// backendSources holds the constructors of the optional backends. A nil
// field means the backend was not compiled in.
type backendSources struct {
	lapack func() fortranLAPACK
	device func() deviceRuntime
}

var compiled = backendSources{
	lapack: systemLAPACK,
	device: systemDeviceRuntime,
}

// Create returns the backend selected by opts.
//
// A library that was not compiled into the binary is a deployment defect and
// terminates the process. A CUDA device that cannot be initialized is not:
// Create returns nil and the reason.
func Create(opts Options) (DenseCholesky, string) {
	return compiled.create(opts)
}

// CompiledLibraries lists the libraries available in this binary.
func CompiledLibraries() []DenseLinearAlgebraLibraryType {
	return compiled.libraries()
}

// CheckCompiled reports whether t can be passed to Create without
// terminating the process.
func CheckCompiled(t DenseLinearAlgebraLibraryType) error {
	for _, l := range compiled.libraries() {
		if l == t {
			return nil
		}
	}
	if t < Gonum || t > CUDA {
		return errors.Wrap(ErrUnknownLibrary, t.String())
	}
	return errors.Wrap(ErrLibraryNotCompiled, t.String())
}

func (s backendSources) libraries() []DenseLinearAlgebraLibraryType {
	libs := []DenseLinearAlgebraLibraryType{Gonum}
	if s.lapack != nil {
		libs = append(libs, LAPACK)
	}
	if s.device != nil {
		libs = append(libs, CUDA)
	}
	return libs
}

func (s backendSources) create(opts Options) (DenseCholesky, string) {
	switch opts.DenseLinearAlgebraLibraryType {
	case Gonum:
		return NewGonumDenseCholesky(), successMessage

	case LAPACK:
		if s.lapack == nil {
			msg := "densesolve was compiled without support for LAPACK."
			fatalf("%s", msg)
			return nil, msg
		}
		return newLAPACKDenseCholesky(s.lapack()), successMessage

	case CUDA:
		if s.device == nil {
			msg := "densesolve was compiled without support for CUDA."
			fatalf("%s", msg)
			return nil, msg
		}
		return createCUDA(opts, s.device())
	}

	msg := "Unknown dense linear algebra library type : " + opts.DenseLinearAlgebraLibraryType.String()
	fatalf("%s", msg)
	return nil, msg
}

type cudaBackend interface {
	DenseCholesky
	Init() error
}

func createCUDA(opts Options, rt deviceRuntime) (DenseCholesky, string) {
	api := opts.CUDASolverAPI
	if api == CUDASolverAuto {
		api = CUDASolverLegacy
		if _, ok := rt.(genericSolver); ok {
			api = CUDASolverCurrent
		}
	}

	var backend cudaBackend
	switch api {
	case CUDASolverLegacy:
		backend = newCUDADenseCholesky32Bit(rt)
	case CUDASolverCurrent:
		backend = newCUDADenseCholesky64Bit(rt)
	default:
		msg := "Unknown CUDA solver API : " + api.String()
		fatalf("%s", msg)
		return nil, msg
	}

	if err := backend.Init(); err != nil {
		log.Error().Err(err).Str("backend", backend.Name()).Msg("cuda dense cholesky init failed")
		return nil, err.Error()
	}
	log.Debug().Str("backend", backend.Name()).Msg("cuda dense cholesky ready")
	return backend, successMessage
}
