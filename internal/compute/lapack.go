package compute

// fortranLAPACK is the Fortran calling convention boundary: column-major
// storage, 'L'/'U' triangle selectors, and an info code instead of an error.
// info < 0 names an invalid argument, info > 0 the failing leading minor.
type fortranLAPACK interface {
	Dpotrf(uplo byte, n int, a []float64, lda int) (info int)
	Dpotrs(uplo byte, n, nrhs int, a []float64, lda int, b []float64, ldb int) (info int)
}

// LAPACKDenseCholesky calls dpotrf/dpotrs in place on the caller's buffer.
// The buffer passed to Factorize is retained, not copied, and must outlive
// every Solve.
type LAPACKDenseCholesky struct {
	lapack          fortranLAPACK
	lhs             []float64
	numCols         int
	terminationType LinearSolverTerminationType
}

func newLAPACKDenseCholesky(l fortranLAPACK) *LAPACKDenseCholesky {
	return &LAPACKDenseCholesky{
		lapack:          l,
		terminationType: LinearSolverFatalError,
	}
}

func (l *LAPACKDenseCholesky) Name() string { return "lapack" }
func (l *LAPACKDenseCholesky) Cleanup()     { l.lhs = nil }

func (l *LAPACKDenseCholesky) Factorize(numCols int, lhs []float64) (LinearSolverTerminationType, string) {
	if msg, ok := checkSystem(numCols, lhs); !ok {
		l.terminationType = LinearSolverFatalError
		return misuse(msg)
	}
	l.lhs = lhs[:numCols*numCols]
	l.numCols = numCols

	info := l.lapack.Dpotrf('L', numCols, l.lhs, lda(numCols))
	switch {
	case info < 0:
		l.terminationType = LinearSolverFatalError
		msg := invalidArgument("LAPACK::dpotrf", info)
		fatalf("%s", msg)
		return l.terminationType, msg
	case info > 0:
		l.terminationType = LinearSolverFailure
		return l.terminationType, notPositiveDefinite("LAPACK::dpotrf", info)
	}

	l.terminationType = LinearSolverSuccess
	return l.terminationType, successMessage
}

func (l *LAPACKDenseCholesky) Solve(rhs, solution []float64) (LinearSolverTerminationType, string) {
	if l.terminationType != LinearSolverSuccess {
		return l.terminationType, notFactorizedMessage
	}
	n := l.numCols
	if msg, ok := checkVectors(n, rhs, solution); !ok {
		return misuse(msg)
	}

	copy(solution[:n], rhs[:n])
	info := l.lapack.Dpotrs('L', n, 1, l.lhs, lda(n), solution[:n], lda(n))
	if info < 0 {
		msg := invalidArgument("LAPACK::dpotrs", info)
		fatalf("%s", msg)
		return LinearSolverFatalError, msg
	}
	return LinearSolverSuccess, successMessage
}

// lda is the leading dimension LAPACK expects for an n x n matrix; it must
// be at least 1 even when n is 0.
func lda(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
