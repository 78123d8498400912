package problem

import (
	"math/rand/v2"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Generator builds an n x n system. seed is ignored by deterministic kinds.
type Generator func(n int, seed uint64) (*System, error)

var generators = map[string]Generator{
	"random": func(n int, seed uint64) (*System, error) {
		return RandomSPD(n, seed), nil
	},
	"laplacian": func(n int, _ uint64) (*System, error) {
		return Laplacian(n), nil
	},
	"hilbert": func(n int, _ uint64) (*System, error) {
		return Hilbert(n), nil
	},
	"indefinite": func(n int, _ uint64) (*System, error) {
		return Indefinite(n, (n+1)/2)
	},
}

// Kinds lists the generator names accepted by Generate.
func Kinds() []string {
	kinds := make([]string, 0, len(generators))
	for k := range generators {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func Generate(kind string, n int, seed uint64) (*System, error) {
	gen, ok := generators[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
	if n < 0 {
		return nil, errors.Wrapf(ErrBadParameter, "n=%d", n)
	}
	return gen(n, seed)
}

// RandomSPD returns B B^T + n I for B uniform on [-1, 1], with a uniform
// right hand side.
func RandomSPD(n int, seed uint64) *System {
	s := New("random", n)
	if n == 0 {
		return s
	}
	u := distuv.Uniform{Min: -1, Max: 1, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}

	b := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			b.Set(i, j, u.Rand())
		}
	}
	var a mat.SymDense
	a.SymOuterK(1, b)

	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			v := a.At(i, j)
			if i == j {
				v += float64(n)
			}
			s.Set(i, j, v)
		}
		s.RHS[j] = u.Rand()
	}
	return s
}

// Laplacian is the 1-D second difference matrix tridiag(-1, 2, -1).
func Laplacian(n int) *System {
	s := New("laplacian", n)
	for i := 0; i < n; i++ {
		s.Set(i, i, 2)
		if i > 0 {
			s.Set(i, i-1, -1)
			s.Set(i-1, i, -1)
		}
		s.RHS[i] = 1
	}
	return s
}

// Hilbert is SPD but badly conditioned. Large orders stop factoring in
// double precision.
func Hilbert(n int) *System {
	s := New("hilbert", n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			s.Set(i, j, 1/float64(i+j+1))
		}
		s.RHS[j] = 1
	}
	return s
}

// Indefinite is the Laplacian with diagonal entry k-1 zeroed, so its leading
// minor of order k is the first one that is not positive.
func Indefinite(n, k int) (*System, error) {
	if k < 1 || k > n {
		return nil, errors.Wrapf(ErrBadParameter, "minor %d of a %dx%d matrix", k, n, n)
	}
	s := Laplacian(n)
	s.Name = "indefinite"
	s.Set(k-1, k-1, 0)
	return s, nil
}
