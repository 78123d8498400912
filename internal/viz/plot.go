package viz

import (
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/densesolve/internal/bench"
)

// ExportTiming writes a log-log chart of median factorize and solve times
// against n. The format follows the file extension (png, svg, pdf, ...).
// Sizes without a successful sample are left out.
func ExportTiming(path, title string, summaries []bench.Summary) error {
	var factorize, solve plotter.XYs
	for _, s := range summaries {
		if s.N == 0 || s.MedianFactorize <= 0 {
			continue
		}
		factorize = append(factorize, plotter.XY{X: float64(s.N), Y: ms(s.MedianFactorize)})
		if s.MedianSolve > 0 {
			solve = append(solve, plotter.XY{X: float64(s.N), Y: ms(s.MedianSolve)})
		}
	}
	if len(factorize) == 0 {
		return errors.New("no successful samples to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "n"
	p.Y.Label.Text = "time (ms)"
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	lines := []any{"factorize", factorize}
	if len(solve) > 0 {
		lines = append(lines, "solve", solve)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Wrap(err, "building plot")
	}

	return errors.Wrap(p.Save(6*vg.Inch, 4*vg.Inch, path), "saving plot")
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
