package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a loader reading .symscan/config.yml under rootDir.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// NewFileLoader creates a loader reading an explicit config file. Unlike the
// directory loader, a missing file is an error.
func NewFileLoader(path string) Loader {
	return &loader{configFile: path}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (SYMSCAN_*)
// 2. Config file (.symscan/config.yml or .symscan/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, ".symscan"))
	}

	// SYMSCAN_SCAN_WORKERS, SYMSCAN_BACKENDS_CSHARP_MODE, ...
	v.SetEnvPrefix("SYMSCAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{
		"scan.workers",
		"scan.max_file_bytes",
		"scan.cache_size",
		"resolver.enabled",
		"resolver.namespace_scoped",
		"backends.csharp.mode",
		"backends.csharp.available",
		"backends.csharp.tool_path",
		"backends.csharp.timeout",
		"output.pretty",
	} {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("paths.include", defaults.Paths.Include)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	v.SetDefault("scan.workers", defaults.Scan.Workers)
	v.SetDefault("scan.max_file_bytes", defaults.Scan.MaxFileBytes)
	v.SetDefault("scan.cache_size", defaults.Scan.CacheSize)

	v.SetDefault("resolver.enabled", defaults.Resolver.Enabled)
	v.SetDefault("resolver.namespace_scoped", defaults.Resolver.NamespaceScoped)

	v.SetDefault("backends.csharp.mode", defaults.Backends.CSharp.Mode)
	v.SetDefault("backends.csharp.available", defaults.Backends.CSharp.Available)
	v.SetDefault("backends.csharp.command", defaults.Backends.CSharp.Command)
	v.SetDefault("backends.csharp.tool_path", defaults.Backends.CSharp.ToolPath)
	v.SetDefault("backends.csharp.timeout", defaults.Backends.CSharp.Timeout)

	v.SetDefault("output.pretty", defaults.Output.Pretty)
}

// LoadConfig loads configuration rooted at the current working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
