package config

import (
	"runtime"
	"time"
)

// Config represents the complete symscan configuration.
// It can be loaded from .symscan/config.yml with environment variable overrides.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Scan     ScanConfig     `yaml:"scan" mapstructure:"scan"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Backends BackendsConfig `yaml:"backends" mapstructure:"backends"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// PathsConfig defines which files to scan and which to ignore.
type PathsConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns; empty means every supported file
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to ignore
}

// ScanConfig tunes the directory aggregator.
type ScanConfig struct {
	Workers      int   `yaml:"workers" mapstructure:"workers"`               // concurrent file extractions
	MaxFileBytes int64 `yaml:"max_file_bytes" mapstructure:"max_file_bytes"` // larger files get READ_ERROR
	CacheSize    int   `yaml:"cache_size" mapstructure:"cache_size"`         // result cache entries, 0 disables
}

// ResolverConfig configures cross-file call resolution.
type ResolverConfig struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	NamespaceScoped bool `yaml:"namespace_scoped" mapstructure:"namespace_scoped"` // C# candidates limited to visible namespaces
}

// BackendsConfig holds per-language backend settings.
type BackendsConfig struct {
	CSharp SemanticConfig `yaml:"csharp" mapstructure:"csharp"`
}

// SemanticConfig configures a subprocess-backed semantic backend.
type SemanticConfig struct {
	Mode      string        `yaml:"mode" mapstructure:"mode"`           // "auto", "syntactic" or "semantic"
	Available bool          `yaml:"available" mapstructure:"available"` // caller asserts the toolchain is installed
	Command   []string      `yaml:"command" mapstructure:"command"`     // argv; "{tool_path}" is substituted
	ToolPath  string        `yaml:"tool_path" mapstructure:"tool_path"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// OutputConfig controls JSON output.
type OutputConfig struct {
	Pretty bool `yaml:"pretty" mapstructure:"pretty"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Include: []string{},
			Ignore: []string{
				"node_modules/**",
				"vendor/**",
				".git/**",
				"dist/**",
				"build/**",
				"bin/**",
				"obj/**",
				"__pycache__/**",
				".venv/**",
				"**/*.min.js",
			},
		},
		Scan: ScanConfig{
			Workers:      runtime.NumCPU(),
			MaxFileBytes: 5 << 20,
			CacheSize:    10000,
		},
		Resolver: ResolverConfig{
			Enabled:         true,
			NamespaceScoped: false,
		},
		Backends: BackendsConfig{
			CSharp: SemanticConfig{
				Mode:     "auto",
				Command:  []string{"dotnet", "run", "--project", "{tool_path}", "--"},
				ToolPath: "roslyn-tool",
				Timeout:  5 * time.Minute,
			},
		},
	}
}
