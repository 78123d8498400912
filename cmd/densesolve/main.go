package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/san-kum/densesolve/internal/bench"
	"github.com/san-kum/densesolve/internal/compute"
	"github.com/san-kum/densesolve/internal/config"
	"github.com/san-kum/densesolve/internal/problem"
	"github.com/san-kum/densesolve/internal/storage"
	"github.com/san-kum/densesolve/internal/viz"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config

	configFile string
	dataDir    string
	logLevel   string
	library    string
	cudaAPI    string
	theme      string
	preset     string

	kind        string
	size        int
	seed        uint64
	problemFile string
	save        bool
	spy         bool

	sizes    []int
	repeats  int
	workers  int
	plotPath string
	live     bool

	outputPath string
)

// main registers the densesolve commands and exits with status 1 when a
// command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:               "densesolve",
		Short:             "dense cholesky solver workbench",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "preset as kind/name, applied before --config")
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level")
	pf.StringVar(&library, "library", config.DefaultLibrary, "dense linear algebra library (gonum, lapack, cuda)")
	pf.StringVar(&cudaAPI, "cuda-api", "auto", "cuSOLVER generation (auto, legacy, current)")
	pf.StringVar(&theme, "theme", viz.ThemeSlate.Name, "color theme")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "factor and solve one system",
		Args:  cobra.NoArgs,
		RunE:  runSolve,
	}
	solveCmd.Flags().StringVar(&kind, "kind", config.DefaultKind, fmt.Sprintf("generator %v", problem.Kinds()))
	solveCmd.Flags().IntVar(&size, "n", config.DefaultN, "system size")
	solveCmd.Flags().Uint64Var(&seed, "seed", 1, "generator seed")
	solveCmd.Flags().StringVarP(&problemFile, "file", "f", "", "read the system from a yaml file")
	solveCmd.Flags().BoolVar(&save, "save", false, "store the run under the data directory")
	solveCmd.Flags().BoolVar(&spy, "spy", false, "print the nonzero pattern of the matrix")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time factorize and solve over a size sweep",
		Args:  cobra.NoArgs,
		RunE:  runBench,
	}
	benchCmd.Flags().StringVar(&kind, "kind", config.DefaultKind, fmt.Sprintf("generator %v", problem.Kinds()))
	benchCmd.Flags().Uint64Var(&seed, "seed", 1, "generator seed")
	benchCmd.Flags().IntSliceVar(&sizes, "sizes", config.DefaultSizes, "system sizes")
	benchCmd.Flags().IntVar(&repeats, "repeats", config.DefaultRepeats, "samples per size")
	benchCmd.Flags().IntVar(&workers, "workers", 1, "concurrent backend instances")
	benchCmd.Flags().StringVar(&plotPath, "plot", "", "write a timing chart (png, svg, pdf)")
	benchCmd.Flags().BoolVar(&live, "live", false, "follow the sweep in a live view")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	generateCmd := &cobra.Command{
		Use:   "generate [path]",
		Short: "write a generated system to a yaml problem file",
		Args:  cobra.ExactArgs(1),
		RunE:  generateProblem,
	}
	generateCmd.Flags().StringVar(&kind, "kind", config.DefaultKind, fmt.Sprintf("generator %v", problem.Kinds()))
	generateCmd.Flags().IntVar(&size, "n", config.DefaultN, "system size")
	generateCmd.Flags().Uint64Var(&seed, "seed", 1, "generator seed")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default stdout)")

	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "list the libraries compiled into this binary",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(viz.RenderBackends())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print the build description",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			title := viz.GradientText("densesolve", viz.CurrentTheme.Title, lipgloss.Color("#ff00ff"))
			fmt.Println(title + " " + compute.VersionString())
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [kind]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the effective configuration to a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(solveCmd, benchCmd, generateCmd, listCmd, showCmd, exportCmd, backendsCmd, versionCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup builds the effective configuration (defaults, then preset, then
// config file, then explicitly set flags) and configures logging.
func setup(cmd *cobra.Command, args []string) error {
	cfg = config.DefaultConfig()

	if preset != "" {
		k, name, _ := strings.Cut(preset, "/")
		p := config.GetPreset(k, name)
		if p == nil {
			return errors.Errorf("unknown preset: %s (available for %s: %v)", preset, k, config.ListPresets(k))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("library") {
		cfg.Library = library
	}
	if flags.Changed("cuda-api") {
		cfg.CUDASolverAPI = cudaAPI
	}
	if flags.Changed("kind") {
		cfg.Problem.Kind = kind
	}
	if flags.Changed("n") {
		cfg.Problem.N = size
	}
	if flags.Changed("seed") {
		cfg.Problem.Seed = seed
	}
	if flags.Changed("file") {
		cfg.Problem.File = problemFile
	}
	if flags.Changed("sizes") {
		cfg.Bench.Sizes = sizes
	}
	if flags.Changed("repeats") {
		cfg.Bench.Repeats = repeats
	}
	if flags.Changed("workers") {
		cfg.Bench.Workers = workers
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	lvl, _ := cfg.Level()
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	return viz.SetTheme(theme)
}

// newBackend checks the library against the build before calling Create,
// which terminates the process on a library that is not compiled in.
func newBackend() (compute.DenseCholesky, compute.Options, error) {
	opts, err := cfg.SolverOptions()
	if err != nil {
		return nil, opts, err
	}
	if err := compute.CheckCompiled(opts.DenseLinearAlgebraLibraryType); err != nil {
		return nil, opts, errors.Wrapf(err, "available %v, rebuild with the %s build tag",
			compute.CompiledLibraries(), buildTag(opts.DenseLinearAlgebraLibraryType))
	}
	d, msg := compute.Create(opts)
	if d == nil {
		return nil, opts, errors.Wrap(bench.ErrNoBackend, msg)
	}
	return d, opts, nil
}

func buildTag(t compute.DenseLinearAlgebraLibraryType) string {
	switch t {
	case compute.LAPACK:
		return "lapack"
	case compute.CUDA:
		return "cuda"
	}
	return t.String()
}

// loadSystem reads the configured problem file or runs the generator. File
// systems are symmetrized from their lower triangle, the part every backend
// reads.
func loadSystem() (*problem.System, error) {
	if cfg.Problem.File != "" {
		sys, err := problem.Load(cfg.Problem.File)
		if err != nil {
			return nil, err
		}
		sys.Symmetrize()
		return sys, nil
	}
	return problem.Generate(cfg.Problem.Kind, cfg.Problem.N, cfg.Problem.Seed)
}

func runSolve(cmd *cobra.Command, args []string) error {
	sys, err := loadSystem()
	if err != nil {
		return err
	}
	d, opts, err := newBackend()
	if err != nil {
		return err
	}
	defer d.Cleanup()

	log.Info().Str("backend", d.Name()).Str("problem", sys.Name).Int("n", sys.N).Msg("solving")

	meta := storage.RunMetadata{
		Version: compute.VersionString(),
		Library: opts.DenseLinearAlgebraLibraryType.String(),
		Backend: d.Name(),
		Problem: sys.Name,
		N:       sys.N,
		Seed:    cfg.Problem.Seed,
	}
	lhs := sys.Clone().LHS
	x := make([]float64, sys.N)

	start := time.Now()
	status, msg := d.Factorize(sys.N, lhs)
	meta.FactorizeTime = time.Since(start)
	if status == compute.LinearSolverSuccess {
		start = time.Now()
		status, msg = d.Solve(sys.RHS, x)
		meta.SolveTime = time.Since(start)
	}
	meta.Status = status.String()
	meta.Message = msg

	if status == compute.LinearSolverSuccess {
		meta.Residual = sys.Residual(x)
		meta.ResidualBound = sys.ResidualBound(x)
		if !sys.Accurate(x) {
			log.Warn().Float64("residual", meta.Residual).Float64("bound", meta.ResidualBound).Msg("residual above bound")
		}
	} else {
		x = nil
	}

	if save {
		st := storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(&storage.Run{Metadata: meta, Solution: x})
		if err != nil {
			return err
		}
		meta.ID = runID
	}

	if spy {
		fmt.Println(viz.SpyPlot(sys, 40))
	}
	fmt.Println(viz.RenderSolve(meta, x))
	if status != compute.LinearSolverSuccess {
		return errors.Errorf("solve ended with %s: %s", status, msg)
	}
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	opts, err := cfg.SolverOptions()
	if err != nil {
		return err
	}
	if err := compute.CheckCompiled(opts.DenseLinearAlgebraLibraryType); err != nil {
		return errors.Wrapf(err, "rebuild with the %s build tag", buildTag(opts.DenseLinearAlgebraLibraryType))
	}

	runner := &bench.Runner{
		Options: opts,
		Kind:    cfg.Problem.Kind,
		Seed:    cfg.Problem.Seed,
		Sizes:   cfg.Bench.Sizes,
		Repeats: cfg.Bench.Repeats,
		Workers: cfg.Bench.Workers,
	}

	var samples []bench.Sample
	if live {
		samples, err = runBenchLive(runner, opts)
	} else {
		samples, err = runner.Run(context.Background(), func(s bench.Sample) {
			log.Debug().Int("n", s.N).Dur("factorize", s.FactorizeTime).Stringer("status", s.Status).Msg("sample")
		})
	}
	if err != nil {
		return err
	}

	summaries := bench.Summarize(samples)
	fmt.Println(viz.RenderBench(summaries))
	fmt.Println()
	fmt.Println(viz.FactorizeChart(summaries, fmt.Sprintf("median factorize (ms), %s", opts.DenseLinearAlgebraLibraryType)))

	if plotPath != "" {
		if err := viz.ExportTiming(plotPath, opts.DenseLinearAlgebraLibraryType.String(), summaries); err != nil {
			return err
		}
		log.Info().Str("path", plotPath).Msg("wrote timing chart")
	}
	return nil
}

// runBenchLive runs the sweep in the background and feeds each sample to the
// live view.
func runBenchLive(runner *bench.Runner, opts compute.Options) ([]bench.Sample, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	total := len(runner.Sizes) * max(runner.Repeats, 1)
	model := viz.NewBenchModel(opts.DenseLinearAlgebraLibraryType.String(), total)
	model.Cancel = cancel

	p := tea.NewProgram(model)
	go func() {
		_, err := runner.Run(ctx, func(s bench.Sample) { p.Send(viz.SampleMsg(s)) })
		p.Send(viz.DoneMsg{Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, errors.Wrap(err, "live view")
	}
	bm := final.(viz.BenchModel)
	if bm.Err() != nil {
		return nil, bm.Err()
	}
	if ctx.Err() != nil {
		return nil, errors.New("bench interrupted")
	}
	samples := bm.Samples()
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].N < samples[j].N })
	return samples, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderRuns(runs))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(cfg.DataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	x, err := st.LoadSolution(args[0])
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderSolve(*meta, x))
	return nil
}

func generateProblem(cmd *cobra.Command, args []string) error {
	sys, err := problem.Generate(cfg.Problem.Kind, cfg.Problem.N, cfg.Problem.Seed)
	if err != nil {
		return err
	}
	if err := problem.Save(args[0], sys); err != nil {
		return err
	}
	log.Info().Str("kind", sys.Name).Int("n", sys.N).Str("path", args[0]).Msg("wrote problem")
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(cfg.DataDir)
	if outputPath == "" {
		return st.Export(os.Stdout, args[0])
	}
	if err := st.ExportFile(outputPath, args[0]); err != nil {
		return err
	}
	log.Info().Str("path", outputPath).Msg("exported run")
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	kinds := problem.Kinds()
	if len(args) == 1 {
		kinds = args[:1]
	}
	for _, k := range kinds {
		presets := config.ListPresets(k)
		if len(presets) == 0 {
			fmt.Printf("no presets for kind: %s\n", k)
			continue
		}
		fmt.Printf("presets for %s:\n", k)
		for _, p := range presets {
			fmt.Printf("  %s/%s\n", k, p)
		}
	}
	return nil
}
