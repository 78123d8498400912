// Package problem holds the linear systems fed to the dense Cholesky
// backends: their storage, the generators used by the CLI and benchmarks,
// and residual checks.
//
// Matrices are square and stored column-major, the layout every backend
// reads. Only the lower triangle is significant.
package problem

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape indicates LHS or RHS lengths that do not match N.
	ErrShape = errors.New("problem: matrix and vector sizes do not match")

	// ErrNonFinite indicates a NaN or Inf entry.
	ErrNonFinite = errors.New("problem: system contains NaN or Inf")

	// ErrUnknownKind indicates a generator name that is not registered.
	ErrUnknownKind = errors.New("problem: unknown generator")

	// ErrBadParameter indicates a generator argument outside its valid range.
	ErrBadParameter = errors.New("problem: generator parameter out of range")
)

// residualScale is the multiple of machine epsilon allowed by ResidualBound.
const residualScale = 16

// System is A x = b with A an N x N column-major matrix.
type System struct {
	Name string
	N    int
	LHS  []float64
	RHS  []float64
}

func New(name string, n int) *System {
	return &System{
		Name: name,
		N:    n,
		LHS:  make([]float64, n*n),
		RHS:  make([]float64, n),
	}
}

func (s *System) Clone() *System {
	c := &System{Name: s.Name, N: s.N}
	c.LHS = append([]float64(nil), s.LHS...)
	c.RHS = append([]float64(nil), s.RHS...)
	return c
}

func (s *System) At(i, j int) float64 {
	return s.LHS[i+j*s.N]
}

func (s *System) Set(i, j int, v float64) {
	s.LHS[i+j*s.N] = v
}

func (s *System) Validate() error {
	if s.N < 0 || len(s.LHS) != s.N*s.N || len(s.RHS) != s.N {
		return errors.Wrapf(ErrShape, "n=%d lhs=%d rhs=%d", s.N, len(s.LHS), len(s.RHS))
	}
	for i, v := range s.LHS {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrNonFinite, "lhs(%d,%d)", i%s.N, i/s.N)
		}
	}
	for i, v := range s.RHS {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrNonFinite, "rhs(%d)", i)
		}
	}
	return nil
}

// Symmetrize mirrors the lower triangle into the upper one.
func (s *System) Symmetrize() {
	n := s.N
	for j := 0; j < n; j++ {
		for i := j + 1; i < n; i++ {
			s.LHS[j+i*n] = s.LHS[i+j*n]
		}
	}
}

// Sym views the lower triangle as a gonum symmetric matrix. The view shares
// LHS.
func (s *System) Sym() *mat.SymDense {
	if s.N == 0 {
		return nil
	}
	// Row-major upper is column-major lower.
	return mat.NewSymDense(s.N, s.LHS)
}

// Residual returns ||A x - b|| in the max norm.
func (s *System) Residual(x []float64) float64 {
	if s.N == 0 {
		return 0
	}
	var r mat.VecDense
	r.MulVec(s.Sym(), mat.NewVecDense(s.N, x[:s.N]))
	r.SubVec(&r, mat.NewVecDense(s.N, s.RHS))
	return mat.Norm(&r, math.Inf(1))
}

// ResidualBound is the largest residual a backward-stable solve should leave
// for solution x: a small multiple of eps * ||A|| * ||x||.
func (s *System) ResidualBound(x []float64) float64 {
	if s.N == 0 {
		return 0
	}
	normA := mat.Norm(s.Sym(), math.Inf(1))
	normX := mat.Norm(mat.NewVecDense(s.N, x[:s.N]), math.Inf(1))
	eps := math.Nextafter(1, 2) - 1
	return residualScale * float64(s.N) * eps * normA * normX
}

// Accurate reports whether x solves the system to within ResidualBound.
func (s *System) Accurate(x []float64) bool {
	return s.Residual(x) <= s.ResidualBound(x)
}
