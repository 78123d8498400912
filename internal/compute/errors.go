package compute

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// LinearSolverTerminationType is the outcome of Factorize and Solve.
type LinearSolverTerminationType int

const (
	// LinearSolverNotFactorized means no factorization has been attempted.
	// Only the CUDA backends report it, from Solve.
	LinearSolverNotFactorized LinearSolverTerminationType = iota

	LinearSolverSuccess

	// LinearSolverFailure means the matrix is not numerically positive
	// definite. The caller may regularize, switch backends or reject the
	// step.
	LinearSolverFailure

	// LinearSolverFatalError means a defect: invalid arguments, or a device
	// or library call failing outside the numerical algorithm. Not retryable.
	LinearSolverFatalError
)

func (t LinearSolverTerminationType) String() string {
	switch t {
	case LinearSolverNotFactorized:
		return "NOT_FACTORIZED"
	case LinearSolverSuccess:
		return "SUCCESS"
	case LinearSolverFailure:
		return "FAILURE"
	case LinearSolverFatalError:
		return "FATAL_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(t))
	}
}

var (
	// ErrUnknownLibrary indicates a library name or value outside GONUM, LAPACK, CUDA.
	ErrUnknownLibrary = errors.New("compute: unknown dense linear algebra library")

	// ErrLibraryNotCompiled indicates a library left out of this build.
	ErrLibraryNotCompiled = errors.New("compute: dense linear algebra library not compiled in")

	// ErrUnknownSolverAPI indicates a cuSOLVER generation name that is not recognized.
	ErrUnknownSolverAPI = errors.New("compute: unknown cuda solver api")
)

const (
	successMessage        = "Success."
	notFactorizedMessage  = "Factorize did not complete successfully previously."
	syncFailedMessage     = "Cuda device synchronization failed."
	gonumFailureMessage   = "Gonum failure. Unable to perform dense Cholesky factorization."
	cuda64NotBuiltMessage = "Cannot use CUDADenseCholesky64Bit with CUDA < 11.1."
)

// fatalf reports an unrecoverable defect and terminates the process.
var fatalf = func(format string, args ...any) {
	log.Fatal().Msgf(format, args...)
}

func invalidArgument(routine string, info int) string {
	return fmt.Sprintf("Congratulations, you found a bug in densesolve. Please report it. "+
		"%s fatal error. Argument: %d is invalid.", routine, -info)
}

func notPositiveDefinite(routine string, info int) string {
	return fmt.Sprintf("%s numerical failure. The leading minor of order %d is not positive definite.", routine, info)
}

// checkSystem validates the Factorize arguments. A malformed system is a
// caller defect.
func checkSystem(numCols int, lhs []float64) (string, bool) {
	if numCols < 0 {
		return fmt.Sprintf("Invalid number of columns: %d.", numCols), false
	}
	if len(lhs) < numCols*numCols {
		return fmt.Sprintf("lhs has %d entries, a %dx%d system needs %d.", len(lhs), numCols, numCols, numCols*numCols), false
	}
	return "", true
}

func checkVectors(numCols int, rhs, solution []float64) (string, bool) {
	if len(rhs) < numCols || len(solution) < numCols {
		return fmt.Sprintf("rhs (%d) and solution (%d) must hold %d entries.", len(rhs), len(solution), numCols), false
	}
	return "", true
}

// misuse reports a caller defect through fatalf.
func misuse(msg string) (LinearSolverTerminationType, string) {
	fatalf("%s", msg)
	return LinearSolverFatalError, msg
}
