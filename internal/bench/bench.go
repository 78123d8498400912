// Package bench times dense Cholesky backends over a sweep of system sizes.
//
// Each worker goroutine owns one backend instance for its whole share of the
// sweep and visits its sizes in increasing order, so device buffers grow
// across calls the way they do inside a solver loop.
package bench

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/densesolve/internal/compute"
	"github.com/san-kum/densesolve/internal/problem"
)

// ErrNoBackend indicates that Create returned no backend, typically a CUDA
// build without a usable device.
var ErrNoBackend = errors.New("bench: backend unavailable")

type Sample struct {
	Library       string
	Backend       string
	N             int
	Repeat        int
	FactorizeTime time.Duration
	SolveTime     time.Duration
	Residual      float64
	ResidualBound float64
	Status        compute.LinearSolverTerminationType
	Message       string
}

// Accurate reports a successful solve within the residual bound.
func (s Sample) Accurate() bool {
	return s.Status == compute.LinearSolverSuccess && s.Residual <= s.ResidualBound
}

type Runner struct {
	Options compute.Options
	Kind    string
	Seed    uint64
	Sizes   []int
	Repeats int
	Workers int

	// NewBackend defaults to compute.Create.
	NewBackend func(compute.Options) (compute.DenseCholesky, string)
}

func (r *Runner) repeats() int {
	if r.Repeats < 1 {
		return 1
	}
	return r.Repeats
}

// shards deals the sorted sizes round-robin so every worker gets a mix of
// small and large systems, each share still in increasing order.
func (r *Runner) shards() [][]int {
	sizes := append([]int(nil), r.Sizes...)
	sort.Ints(sizes)

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(sizes) {
		workers = len(sizes)
	}
	shards := make([][]int, workers)
	for i, n := range sizes {
		shards[i%workers] = append(shards[i%workers], n)
	}
	return shards
}

// Run executes the sweep. progress, if set, is called once per sample and
// never concurrently. Numerical failures are samples, not errors; Run fails
// only when a backend cannot be built, a problem cannot be generated, or ctx
// ends.
func (r *Runner) Run(ctx context.Context, progress func(Sample)) ([]Sample, error) {
	newBackend := r.NewBackend
	if newBackend == nil {
		newBackend = compute.Create
	}
	kind := r.Kind
	if kind == "" {
		kind = "random"
	}

	var (
		mu      sync.Mutex
		samples []Sample
	)
	record := func(s Sample) {
		mu.Lock()
		defer mu.Unlock()
		samples = append(samples, s)
		if progress != nil {
			progress(s)
		}
	}

	shards := r.shards()
	if len(shards) == 0 {
		return []Sample{}, nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(len(shards))

	for w, sizes := range shards {
		g.Go(func() error {
			d, msg := newBackend(r.Options)
			if d == nil {
				return errors.Wrap(ErrNoBackend, msg)
			}
			defer d.Cleanup()

			logger := log.With().Int("worker", w).Str("backend", d.Name()).Logger()
			for _, n := range sizes {
				if err := ctx.Err(); err != nil {
					return err
				}
				sys, err := problem.Generate(kind, n, r.Seed+uint64(n))
				if err != nil {
					return err
				}
				for rep := 0; rep < r.repeats(); rep++ {
					s := measure(d, sys)
					s.Library = r.Options.DenseLinearAlgebraLibraryType.String()
					s.Repeat = rep
					logger.Debug().Int("n", n).Int("repeat", rep).
						Dur("factorize", s.FactorizeTime).Stringer("status", s.Status).
						Msg("sample")
					record(s)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].N != samples[j].N {
			return samples[i].N < samples[j].N
		}
		return samples[i].Repeat < samples[j].Repeat
	})
	return samples, nil
}

// measure factors and solves a private copy of sys.
func measure(d compute.DenseCholesky, sys *problem.System) Sample {
	s := Sample{Backend: d.Name(), N: sys.N}
	work := sys.Clone()
	x := make([]float64, sys.N)

	start := time.Now()
	s.Status, s.Message = d.Factorize(work.N, work.LHS)
	s.FactorizeTime = time.Since(start)
	if s.Status != compute.LinearSolverSuccess {
		return s
	}

	start = time.Now()
	s.Status, s.Message = d.Solve(sys.RHS, x)
	s.SolveTime = time.Since(start)
	if s.Status == compute.LinearSolverSuccess {
		s.Residual = sys.Residual(x)
		s.ResidualBound = sys.ResidualBound(x)
	}
	return s
}
