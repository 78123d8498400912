package compute

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type backendFactory func() DenseCholesky

func gonumBackend() DenseCholesky { return NewGonumDenseCholesky() }

func lapackBackend() DenseCholesky { return newLAPACKDenseCholesky(&fakeLAPACK{}) }

func cudaLegacyBackend() DenseCholesky {
	b := newCUDADenseCholesky32Bit(newFakeDevice())
	Expect(b.Init()).To(Succeed())
	return b
}

func cudaCurrentBackend() DenseCholesky {
	b := newCUDADenseCholesky64Bit(newFakeDevice())
	Expect(b.Init()).To(Succeed())
	return b
}

// randomSPD returns B*B^T + n*I in column-major order.
func randomSPD(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	b := make([]float64, n*n)
	for i := range b {
		b[i] = r.Float64()*2 - 1
	}
	a := make([]float64, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			var s float64
			for k := 0; k < n; k++ {
				s += b[i+k*n] * b[j+k*n]
			}
			if i == j {
				s += float64(n)
			}
			a[i+j*n] = s
		}
	}
	return a
}

func residualNorm(n int, a, x, b []float64) float64 {
	var worst float64
	for i := 0; i < n; i++ {
		s := -b[i]
		for j := 0; j < n; j++ {
			s += a[i+j*n] * x[j]
		}
		worst = math.Max(worst, math.Abs(s))
	}
	return worst
}

// residualBound is 16 n eps ||A||inf ||x||inf, the residual a backward
// stable Cholesky solve stays under.
func residualBound(n int, a, x []float64) float64 {
	if n == 0 {
		return 0
	}
	eps := math.Nextafter(1, 2) - 1
	normA := mat.Norm(mat.NewDense(n, n, a), math.Inf(1))
	return 16 * float64(n) * eps * normA * floats.Norm(x, math.Inf(1))
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

var backendEntries = []TableEntry{
	Entry("gonum", backendFactory(gonumBackend)),
	Entry("lapack", backendFactory(lapackBackend)),
	Entry("cuda legacy", backendFactory(cudaLegacyBackend)),
	Entry("cuda current", backendFactory(cudaCurrentBackend)),
}

var _ = Describe("DenseCholesky", func() {
	var fatals *[]string

	BeforeEach(func() {
		fatals = recordFatals()
	})

	DescribeTable("solves the 2x2 system",
		func(newBackend backendFactory) {
			d := newBackend()
			defer d.Cleanup()

			lhs := []float64{4, 2, 2, 3}
			solution := make([]float64, 2)
			status, msg := FactorAndSolve(d, 2, lhs, []float64{1, 1}, solution)

			Expect(status).To(Equal(LinearSolverSuccess))
			Expect(msg).To(Equal(successMessage))
			Expect(solution[0]).To(BeNumerically("~", 0.125, 1e-12))
			Expect(solution[1]).To(BeNumerically("~", 0.25, 1e-12))
			Expect(*fatals).To(BeEmpty())
		},
		backendEntries,
	)

	DescribeTable("reads only the lower triangle",
		func(newBackend backendFactory) {
			d := newBackend()
			defer d.Cleanup()

			lhs := []float64{4, 2, -99, 3}
			solution := make([]float64, 2)
			status, _ := FactorAndSolve(d, 2, lhs, []float64{1, 1}, solution)

			Expect(status).To(Equal(LinearSolverSuccess))
			Expect(solution[0]).To(BeNumerically("~", 0.125, 1e-12))
			Expect(solution[1]).To(BeNumerically("~", 0.25, 1e-12))
		},
		backendEntries,
	)

	DescribeTable("keeps the residual small on random SPD systems",
		func(newBackend backendFactory) {
			d := newBackend()
			defer d.Cleanup()

			for _, n := range []int{1, 3, 8, 17} {
				a := randomSPD(n, int64(n))
				lhs := append([]float64(nil), a...)
				rhs := ones(n)
				solution := make([]float64, n)

				status, msg := FactorAndSolve(d, n, lhs, rhs, solution)
				Expect(status).To(Equal(LinearSolverSuccess), msg)
				Expect(residualNorm(n, a, solution, rhs)).To(BeNumerically("<=", residualBound(n, a, solution)))
			}
		},
		backendEntries,
	)

	DescribeTable("treats an empty system as solved",
		func(newBackend backendFactory) {
			d := newBackend()
			defer d.Cleanup()

			status, _ := d.Factorize(0, nil)
			Expect(status).To(Equal(LinearSolverSuccess))
			status, _ = d.Solve(nil, nil)
			Expect(status).To(Equal(LinearSolverSuccess))
			Expect(*fatals).To(BeEmpty())
		},
		backendEntries,
	)

	DescribeTable("reports an indefinite matrix as a failure",
		func(newBackend backendFactory) {
			d := newBackend()
			defer d.Cleanup()

			status, _ := d.Factorize(2, []float64{1, 2, 2, 1})
			Expect(status).To(Equal(LinearSolverFailure))
			Expect(*fatals).To(BeEmpty())

			solution := []float64{7, 7}
			status, _ = d.Solve([]float64{1, 1}, solution)
			Expect(status).To(Equal(LinearSolverFailure))
			Expect(*fatals).To(BeEmpty())
		},
		backendEntries,
	)

	DescribeTable("recovers after a failed factorization",
		func(newBackend backendFactory) {
			d := newBackend()
			defer d.Cleanup()

			status, _ := d.Factorize(2, []float64{1, 2, 2, 1})
			Expect(status).To(Equal(LinearSolverFailure))

			solution := make([]float64, 2)
			status, _ = FactorAndSolve(d, 2, []float64{4, 2, 2, 3}, []float64{1, 1}, solution)
			Expect(status).To(Equal(LinearSolverSuccess))
			Expect(solution[1]).To(BeNumerically("~", 0.25, 1e-12))
		},
		backendEntries,
	)

	DescribeTable("repeats Solve against the same factor",
		func(newBackend backendFactory) {
			d := newBackend()
			defer d.Cleanup()

			status, _ := d.Factorize(2, []float64{4, 2, 2, 3})
			Expect(status).To(Equal(LinearSolverSuccess))

			first := make([]float64, 2)
			second := make([]float64, 2)
			status, _ = d.Solve([]float64{1, 1}, first)
			Expect(status).To(Equal(LinearSolverSuccess))
			status, _ = d.Solve([]float64{1, 1}, second)
			Expect(status).To(Equal(LinearSolverSuccess))
			Expect(second).To(Equal(first))

			status, _ = d.Solve([]float64{2, 2}, second)
			Expect(status).To(Equal(LinearSolverSuccess))
			Expect(second[0]).To(BeNumerically("~", 0.25, 1e-12))
			Expect(second[1]).To(BeNumerically("~", 0.5, 1e-12))
		},
		backendEntries,
	)

	DescribeTable("handles systems that change size",
		func(newBackend backendFactory) {
			d := newBackend()
			defer d.Cleanup()

			for _, n := range []int{2, 6, 3} {
				a := randomSPD(n, 99)
				lhs := append([]float64(nil), a...)
				rhs := ones(n)
				solution := make([]float64, n)

				status, msg := FactorAndSolve(d, n, lhs, rhs, solution)
				Expect(status).To(Equal(LinearSolverSuccess), msg)
				Expect(residualNorm(n, a, solution, rhs)).To(BeNumerically("<=", residualBound(n, a, solution)))
			}
		},
		backendEntries,
	)

	DescribeTable("treats a short lhs as a caller defect",
		func(newBackend backendFactory) {
			d := newBackend()
			defer d.Cleanup()

			status, _ := d.Factorize(3, make([]float64, 4))
			Expect(status).To(Equal(LinearSolverFatalError))
			Expect(*fatals).To(HaveLen(1))
		},
		backendEntries,
	)

	DescribeTable("names the failing leading minor",
		func(newBackend backendFactory, routine string) {
			d := newBackend()
			defer d.Cleanup()

			// Leading 2x2 minor is singular: 1*1 - 1*1 = 0.
			lhs := []float64{
				1, 1, 0,
				1, 1, 0,
				0, 0, 5,
			}
			status, msg := d.Factorize(3, lhs)
			Expect(status).To(Equal(LinearSolverFailure))
			Expect(msg).To(Equal(routine + " numerical failure. The leading minor of order 2 is not positive definite."))
		},
		Entry("lapack", backendFactory(lapackBackend), "LAPACK::dpotrf"),
		Entry("cuda legacy", backendFactory(cudaLegacyBackend), "cuSolverDN::cusolverDnDpotrf"),
		Entry("cuda current", backendFactory(cudaCurrentBackend), "cuSolverDN::cusolverDnXpotrf"),
	)

	It("reports gonum failures with a fixed message", func() {
		d := NewGonumDenseCholesky()
		status, msg := d.Factorize(2, []float64{1, 2, 2, 1})
		Expect(status).To(Equal(LinearSolverFailure))
		Expect(msg).To(Equal(gonumFailureMessage))
	})
})

var _ = Describe("LAPACKDenseCholesky", func() {
	var fatals *[]string

	BeforeEach(func() {
		fatals = recordFatals()
	})

	It("refuses to solve before any factorization", func() {
		lapack := &fakeLAPACK{}
		d := newLAPACKDenseCholesky(lapack)

		status, msg := d.Solve([]float64{1}, []float64{0})
		Expect(status).To(Equal(LinearSolverFatalError))
		Expect(msg).To(Equal(notFactorizedMessage))
		Expect(lapack.potrss).To(BeZero())
	})

	It("refuses to solve after a numerical failure", func() {
		lapack := &fakeLAPACK{}
		d := newLAPACKDenseCholesky(lapack)

		d.Factorize(2, []float64{1, 2, 2, 1})
		status, msg := d.Solve([]float64{1, 1}, make([]float64, 2))
		Expect(status).To(Equal(LinearSolverFailure))
		Expect(msg).To(Equal(notFactorizedMessage))
		Expect(lapack.potrss).To(BeZero())
	})

	It("factors in place", func() {
		d := newLAPACKDenseCholesky(&fakeLAPACK{})
		lhs := []float64{4, 2, 2, 3}

		status, _ := d.Factorize(2, lhs)
		Expect(status).To(Equal(LinearSolverSuccess))
		Expect(lhs[0]).To(BeNumerically("~", 2, 1e-12))
		Expect(lhs[1]).To(BeNumerically("~", 1, 1e-12))
	})

	It("treats a negative info code as fatal", func() {
		info := -4
		d := newLAPACKDenseCholesky(&fakeLAPACK{forceInfo: &info})

		status, msg := d.Factorize(2, []float64{4, 2, 2, 3})
		Expect(status).To(Equal(LinearSolverFatalError))
		Expect(msg).To(Equal("Congratulations, you found a bug in densesolve. Please report it. " +
			"LAPACK::dpotrf fatal error. Argument: 4 is invalid."))
		Expect(*fatals).To(ConsistOf(msg))

		status, msg = d.Solve([]float64{1, 1}, make([]float64, 2))
		Expect(status).To(Equal(LinearSolverFatalError))
		Expect(msg).To(Equal(notFactorizedMessage))
	})
})

var _ = Describe("GonumDenseCholesky", func() {
	It("factors a copy and leaves the caller's matrix unchanged", func() {
		d := NewGonumDenseCholesky()
		lhs := []float64{4, 2, 2, 3}

		status, msg := d.Factorize(2, lhs)
		Expect(status).To(Equal(LinearSolverSuccess), msg)
		Expect(lhs).To(Equal([]float64{4, 2, 2, 3}))

		x := make([]float64, 2)
		status, msg = d.Solve([]float64{1, 1}, x)
		Expect(status).To(Equal(LinearSolverSuccess), msg)
		Expect(x[0]).To(BeNumerically("~", 0.125, 1e-12))
	})
})
