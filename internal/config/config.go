package config

import (
	"os"
	"slices"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/densesolve/internal/compute"
	"github.com/san-kum/densesolve/internal/problem"
)

const (
	DefaultLibrary  = "gonum"
	DefaultKind     = "random"
	DefaultN        = 64
	DefaultRepeats  = 3
	DefaultLogLevel = "info"
	DefaultDataDir  = "./data"
)

var DefaultSizes = []int{16, 32, 64, 128, 256}

type Config struct {
	Library       string        `yaml:"library"`
	CUDASolverAPI string        `yaml:"cuda_solver_api"`
	LogLevel      string        `yaml:"log_level"`
	DataDir       string        `yaml:"data_dir"`
	Problem       ProblemConfig `yaml:"problem"`
	Bench         BenchConfig   `yaml:"bench"`
}

type ProblemConfig struct {
	Kind string `yaml:"kind"`
	N    int    `yaml:"n"`
	Seed uint64 `yaml:"seed"`
	// File, when set, replaces the generator.
	File string `yaml:"file,omitempty"`
}

type BenchConfig struct {
	Sizes   []int `yaml:"sizes"`
	Repeats int   `yaml:"repeats"`
	// Workers is the number of concurrent backend instances; 0 means one.
	Workers int `yaml:"workers"`
}

func DefaultConfig() *Config {
	return &Config{
		Library:       DefaultLibrary,
		CUDASolverAPI: "auto",
		LogLevel:      DefaultLogLevel,
		DataDir:       DefaultDataDir,
		Problem: ProblemConfig{
			Kind: DefaultKind,
			N:    DefaultN,
			Seed: 1,
		},
		Bench: BenchConfig{
			Sizes:   append([]int(nil), DefaultSizes...),
			Repeats: DefaultRepeats,
			Workers: 1,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "writing config")
}

// SolverOptions converts the library settings into backend options.
func (c *Config) SolverOptions() (compute.Options, error) {
	lib, err := compute.ParseLibraryType(c.Library)
	if err != nil {
		return compute.Options{}, err
	}
	api, err := compute.ParseCUDASolverAPI(c.CUDASolverAPI)
	if err != nil {
		return compute.Options{}, err
	}
	return compute.Options{
		DenseLinearAlgebraLibraryType: lib,
		CUDASolverAPI:                 api,
	}, nil
}

func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	return lvl, errors.Wrapf(err, "log level %q", c.LogLevel)
}

// Validate checks everything that can be checked without building a
// backend.
func (c *Config) Validate() error {
	if _, err := c.SolverOptions(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Problem.N < 0 {
		return errors.Errorf("problem size %d is negative", c.Problem.N)
	}
	for _, n := range c.Bench.Sizes {
		if n < 0 {
			return errors.Errorf("bench size %d is negative", n)
		}
	}
	if c.Bench.Repeats < 0 || c.Bench.Workers < 0 {
		return errors.New("bench repeats and workers must not be negative")
	}
	if c.Problem.File != "" && c.Problem.Kind == "" {
		return nil
	}
	if !slices.Contains(problem.Kinds(), c.Problem.Kind) {
		return errors.Wrapf(problem.ErrUnknownKind, "%q", c.Problem.Kind)
	}
	// indefinite zeroes the diagonal entry (n+1)/2, which needs n >= 1.
	if c.Problem.Kind == "indefinite" {
		if c.Problem.File == "" && c.Problem.N < 1 {
			return errors.Wrapf(problem.ErrBadParameter, "indefinite needs n >= 1, got %d", c.Problem.N)
		}
		for _, n := range c.Bench.Sizes {
			if n < 1 {
				return errors.Wrapf(problem.ErrBadParameter, "indefinite needs bench sizes >= 1, got %d", n)
			}
		}
	}
	return nil
}

func (c *Config) Clone() *Config {
	cp := *c
	cp.Bench.Sizes = append([]int(nil), c.Bench.Sizes...)
	return &cp
}
