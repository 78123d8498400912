package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/densesolve/internal/bench"
	"github.com/san-kum/densesolve/internal/compute"
	"github.com/san-kum/densesolve/internal/storage"
)

// maxShownEntries bounds the solution vector printed by RenderSolve.
const maxShownEntries = 8

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(CurrentTheme.Border)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Title.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func metric(label, value string) string {
	return MetricLabel.Render(label) + MetricValue.Render(value) + "\n"
}

// RenderSolve summarizes one solve and the head of its solution.
func RenderSolve(meta storage.RunMetadata, x []float64) string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(fmt.Sprintf("%s  n=%d", meta.Problem, meta.N)) + "\n\n")
	s.WriteString(metric("Library", meta.Library))
	s.WriteString(metric("Backend", meta.Backend))
	s.WriteString(MetricLabel.Render("Status") + RenderStatus(meta.Status) + "\n")
	s.WriteString(MetricLabel.Render("Message") + Subtle.Render(meta.Message) + "\n")
	s.WriteString(metric("Factorize", meta.FactorizeTime.String()))
	s.WriteString(metric("Solve", meta.SolveTime.String()))
	if meta.Status == compute.LinearSolverSuccess.String() {
		s.WriteString(metric("Residual", fmt.Sprintf("%.3e (bound %.3e)", meta.Residual, meta.ResidualBound)))
	}
	if meta.ID != "" {
		s.WriteString(metric("Run", meta.ID))
	}

	if len(x) > 0 {
		s.WriteString("\n")
		shown := x
		if len(shown) > maxShownEntries {
			shown = shown[:maxShownEntries]
		}
		parts := make([]string, len(shown))
		for i, v := range shown {
			parts[i] = fmt.Sprintf("%.6g", v)
		}
		line := "x = [" + strings.Join(parts, ", ")
		if len(x) > len(shown) {
			line += fmt.Sprintf(", ... %d more", len(x)-len(shown))
		}
		s.WriteString(line + "]\n")
	}
	return Panel.Render(s.String())
}

// RenderBench tabulates per-size summaries.
func RenderBench(summaries []bench.Summary) string {
	t := newTable("n", "runs", "failed", "factorize", "solve", "GFLOP/s", "max residual")
	for _, s := range summaries {
		failed := fmt.Sprintf("%d", s.Failures)
		if s.Failures > 0 {
			failed = StatusFailure.Render(failed)
		}
		t.Row(
			fmt.Sprintf("%d", s.N),
			fmt.Sprintf("%d", s.Runs),
			failed,
			roundDuration(s.MedianFactorize),
			roundDuration(s.MedianSolve),
			fmt.Sprintf("%.2f", s.GFlops),
			fmt.Sprintf("%.2e", s.MaxResidual),
		)
	}
	return t.Render()
}

// FactorizeChart plots median factorization time in milliseconds, one point
// per size in sweep order.
func FactorizeChart(summaries []bench.Summary, caption string) string {
	var data []float64
	for _, s := range summaries {
		if s.Runs > s.Failures {
			data = append(data, float64(s.MedianFactorize)/float64(time.Millisecond))
		}
	}
	if len(data) == 0 {
		return Subtle.Render("no successful samples to plot")
	}
	if len(data) == 1 {
		data = append(data, data[0])
	}
	return asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption(caption),
	)
}

// RenderBackends lists every library with its availability in this build.
func RenderBackends() string {
	t := newTable("library", "status")
	for _, lib := range []compute.DenseLinearAlgebraLibraryType{compute.Gonum, compute.LAPACK, compute.CUDA} {
		status := StatusSuccess.Render("compiled in")
		if err := compute.CheckCompiled(lib); err != nil {
			status = Subtle.Render("not compiled")
		}
		t.Row(lib.String(), status)
	}
	return t.Render() + "\n" + Subtle.Render(compute.VersionString())
}

// RenderRuns lists stored runs, oldest first.
func RenderRuns(runs []storage.RunMetadata) string {
	if len(runs) == 0 {
		return Subtle.Render("no runs found")
	}
	t := newTable("id", "problem", "n", "library", "status", "factorize")
	for _, r := range runs {
		t.Row(r.ID, r.Problem, fmt.Sprintf("%d", r.N), r.Library, RenderStatus(r.Status), roundDuration(r.FactorizeTime))
	}
	return t.Render()
}

func roundDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "-"
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(time.Microsecond).String()
	}
	return d.String()
}
