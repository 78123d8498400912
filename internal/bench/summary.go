package bench

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/densesolve/internal/compute"
)

// Summary aggregates the repeats of one size.
type Summary struct {
	Library         string
	Backend         string
	N               int
	Runs            int
	Failures        int
	MedianFactorize time.Duration
	MedianSolve     time.Duration
	MaxResidual     float64
	// GFlops is n^3/3 over the median factorization time.
	GFlops float64
}

// Summarize groups samples by size. Timing statistics only cover successful
// samples.
func Summarize(samples []Sample) []Summary {
	bySize := map[int][]Sample{}
	for _, s := range samples {
		bySize[s.N] = append(bySize[s.N], s)
	}

	out := make([]Summary, 0, len(bySize))
	for n, group := range bySize {
		sum := Summary{Library: group[0].Library, Backend: group[0].Backend, N: n, Runs: len(group)}
		var fact, solve, resid []float64
		for _, s := range group {
			if s.Status != compute.LinearSolverSuccess {
				sum.Failures++
				continue
			}
			fact = append(fact, float64(s.FactorizeTime))
			solve = append(solve, float64(s.SolveTime))
			resid = append(resid, s.Residual)
		}
		if len(fact) > 0 {
			sum.MedianFactorize = time.Duration(median(fact))
			sum.MedianSolve = time.Duration(median(solve))
			sum.MaxResidual = floats.Max(resid)
		}
		if sum.MedianFactorize > 0 {
			flops := float64(n) * float64(n) * float64(n) / 3
			sum.GFlops = flops / float64(sum.MedianFactorize)
		}
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].N < out[j].N })
	return out
}

func median(xs []float64) float64 {
	sort.Float64s(xs)
	return stat.Quantile(0.5, stat.Empirical, xs, nil)
}
