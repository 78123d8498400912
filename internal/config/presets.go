package config

import "sort"

func preset(kind string, n int, seed uint64, sizes ...int) *Config {
	cfg := DefaultConfig()
	cfg.Problem = ProblemConfig{Kind: kind, N: n, Seed: seed}
	if len(sizes) > 0 {
		cfg.Bench.Sizes = sizes
	}
	return cfg
}

// Presets are keyed by problem kind, then preset name.
var Presets = map[string]map[string]*Config{
	"random": {
		"small":  preset("random", 8, 1, 4, 8, 16),
		"medium": preset("random", 256, 1, 64, 128, 256),
		"large":  preset("random", 2048, 1, 512, 1024, 2048),
	},
	"laplacian": {
		"small": preset("laplacian", 16, 0),
		"large": preset("laplacian", 1024, 0, 128, 256, 512, 1024),
	},
	"hilbert": {
		"mild":   preset("hilbert", 6, 0, 2, 4, 6, 8),
		"severe": preset("hilbert", 14, 0, 10, 12, 14, 16),
	},
	"indefinite": {
		"small": preset("indefinite", 5, 0, 3, 5, 7),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(kind, name string) *Config {
	kindPresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	cfg, ok := kindPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(kind string) []string {
	kindPresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(kindPresets))
	for name := range kindPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
