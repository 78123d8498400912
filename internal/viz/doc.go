// Package viz renders solves and benchmark sweeps for the terminal and for
// image files.
//
//   - [RenderSolve], [RenderBench], [RenderRuns], [RenderBackends]: lipgloss
//     panels and tables
//   - [FactorizeChart]: asciigraph chart of factorization time
//   - [SpyPlot]: braille nonzero pattern of a system matrix
//   - [BenchModel]: Bubble Tea view that follows a running sweep
//   - [ExportTiming]: gonum/plot chart written as PNG, SVG or PDF
//
// # Key Bindings
//
//	q, Esc, Ctrl+C - stop the sweep and quit the live view
package viz
