package compute

import (
	"github.com/pkg/errors"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// GonumDenseCholesky factorizes with gonum's mat.Cholesky. It holds no
// external resources.
type GonumDenseCholesky struct {
	chol    mat.Cholesky
	numCols int
	ok      bool
}

func NewGonumDenseCholesky() *GonumDenseCholesky {
	return &GonumDenseCholesky{}
}

func (g *GonumDenseCholesky) Name() string { return "gonum" }
func (g *GonumDenseCholesky) Cleanup()     {}

func (g *GonumDenseCholesky) Factorize(numCols int, lhs []float64) (LinearSolverTerminationType, string) {
	g.ok = false
	if msg, ok := checkSystem(numCols, lhs); !ok {
		return misuse(msg)
	}
	g.numCols = numCols

	if numCols == 0 {
		g.chol.Reset()
		g.ok = true
		return LinearSolverSuccess, successMessage
	}

	// The row-major upper triangle of a column-major buffer is its lower
	// triangle, so the caller's data is viewed as is. Factorize copies it
	// into the decomposition and leaves lhs untouched.
	a := mat.NewSymDense(numCols, lhs[:numCols*numCols])
	if !g.chol.Factorize(a) {
		return LinearSolverFailure, gonumFailureMessage
	}

	g.ok = true
	return LinearSolverSuccess, successMessage
}

func (g *GonumDenseCholesky) Solve(rhs, solution []float64) (LinearSolverTerminationType, string) {
	if !g.valid() {
		return LinearSolverFailure, gonumFailureMessage
	}
	n := g.numCols
	if msg, ok := checkVectors(n, rhs, solution); !ok {
		return misuse(msg)
	}
	if n == 0 {
		return LinearSolverSuccess, successMessage
	}

	b := mat.NewVecDense(n, rhs[:n])
	x := mat.NewVecDense(n, solution[:n])
	if err := g.chol.SolveVecTo(x, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return LinearSolverFailure, gonumFailureMessage
		}
		log.Debug().Float64("cond", float64(cond)).Int("n", n).Msg("gonum cholesky factor is poorly conditioned")
	}
	return LinearSolverSuccess, successMessage
}

func (g *GonumDenseCholesky) valid() bool {
	if !g.ok {
		return false
	}
	return g.numCols == 0 || !g.chol.IsEmpty()
}
