package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/densesolve/internal/bench"
	"github.com/san-kum/densesolve/internal/compute"
)

const historyCapacity = 120

var (
	statsStyle = lipgloss.NewStyle().Padding(1, 2)
	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
)

// SampleMsg delivers one finished sample to the live view.
type SampleMsg bench.Sample

// DoneMsg ends the sweep. Err is nil on success.
type DoneMsg struct {
	Err error
}

type TickMsg time.Time

// BenchModel is the bubbletea model behind `bench --live`. Samples arrive
// through Program.Send from the goroutine running the sweep.
type BenchModel struct {
	library  string
	total    int
	started  time.Time
	elapsed  time.Duration
	samples  []bench.Sample
	timings  []float64
	failures int
	frame    int
	done     bool
	err      error
	// Cancel, if set, is called when the user quits early.
	Cancel func()
}

func NewBenchModel(library string, total int) BenchModel {
	return BenchModel{
		library: library,
		total:   total,
		started: time.Now(),
		timings: make([]float64, 0, historyCapacity),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m BenchModel) Init() tea.Cmd {
	return tick()
}

func (m BenchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.Cancel != nil {
				m.Cancel()
			}
			return m, tea.Quit
		}
	case SampleMsg:
		s := bench.Sample(msg)
		m.samples = append(m.samples, s)
		if s.Status == compute.LinearSolverSuccess {
			m.timings = append(m.timings, float64(s.FactorizeTime)/float64(time.Millisecond))
			if len(m.timings) > historyCapacity {
				m.timings = m.timings[1:]
			}
		} else {
			m.failures++
		}
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.elapsed = time.Since(m.started)
		return m, tea.Quit
	case TickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		m.elapsed = time.Since(m.started)
		return m, tick()
	}
	return m, nil
}

// Samples returns what has been received so far.
func (m BenchModel) Samples() []bench.Sample { return m.samples }

func (m BenchModel) Err() error { return m.err }

func spinner(frame int) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return frames[frame%len(frames)]
}

func (m BenchModel) View() string {
	var s strings.Builder

	state := spinner(m.frame) + " running"
	switch {
	case m.done && m.err != nil:
		state = StatusFatal.Render("stopped: " + m.err.Error())
	case m.done:
		state = StatusSuccess.Render("done")
	}
	s.WriteString(HeaderStyle.Render("BENCH "+m.library) + "\n")
	s.WriteString(state + "\n\n")

	pct := 0.0
	if m.total > 0 {
		pct = float64(len(m.samples)) / float64(m.total)
	}
	s.WriteString(ProgressBar(pct, 30) + fmt.Sprintf(" %d/%d\n\n", len(m.samples), m.total))

	if len(m.timings) > 1 {
		chart := asciigraph.Plot(m.timings, asciigraph.Height(6), asciigraph.Width(40), asciigraph.Caption("factorize (ms)"))
		s.WriteString(graphStyle.Render(chart) + "\n")
		s.WriteString(SparklineChart(m.timings, 40) + "\n\n")
	}

	if n := len(m.samples); n > 0 {
		last := m.samples[n-1]
		s.WriteString(metric("Last size", fmt.Sprintf("%d", last.N)))
		s.WriteString(MetricLabel.Render("Last status") + StatusStyle(last.Status).Render(last.Status.String()) + "\n")
		s.WriteString(metric("Factorize", roundDuration(last.FactorizeTime)))
	}
	s.WriteString(metric("Failures", fmt.Sprintf("%d", m.failures)))
	s.WriteString(metric("Elapsed", m.elapsed.Round(100*time.Millisecond).String()))
	s.WriteString(KeyHint.MarginTop(1).Render("q: stop"))

	return statsStyle.Render(s.String())
}
