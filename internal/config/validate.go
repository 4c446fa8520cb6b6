package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidWorkers indicates a non-positive worker count
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidSize indicates a negative size limit
	ErrInvalidSize = errors.New("invalid size")

	// ErrInvalidMode indicates an unknown backend mode
	ErrInvalidMode = errors.New("invalid backend mode")

	// ErrInvalidTimeout indicates a non-positive backend timeout
	ErrInvalidTimeout = errors.New("invalid backend timeout")

	// ErrEmptyCommand indicates a missing backend command
	ErrEmptyCommand = errors.New("empty backend command")

	// ErrInvalidPattern indicates a glob pattern that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}

	if err := validateScan(&cfg.Scan); err != nil {
		errs = append(errs, err)
	}

	if err := validateSemantic("csharp", &cfg.Backends.CSharp); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validatePaths(cfg *PathsConfig) error {
	var errs []error

	for _, list := range [][]string{cfg.Include, cfg.Ignore} {
		for _, pattern := range list {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err))
			}
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateScan(cfg *ScanConfig) error {
	var errs []error

	if cfg.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidWorkers, cfg.Workers))
	}

	if cfg.MaxFileBytes < 0 {
		errs = append(errs, fmt.Errorf("%w: max_file_bytes cannot be negative, got %d", ErrInvalidSize, cfg.MaxFileBytes))
	}

	if cfg.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("%w: cache_size cannot be negative, got %d", ErrInvalidSize, cfg.CacheSize))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateSemantic(lang string, cfg *SemanticConfig) error {
	var errs []error

	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "auto", "syntactic", "semantic":
	default:
		errs = append(errs, fmt.Errorf("%w: backends.%s.mode must be 'auto', 'syntactic' or 'semantic', got '%s'", ErrInvalidMode, lang, cfg.Mode))
	}

	if cfg.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: backends.%s.timeout must be positive, got %s", ErrInvalidTimeout, lang, cfg.Timeout))
	}

	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		errs = append(errs, fmt.Errorf("%w: backends.%s.command is required", ErrEmptyCommand, lang))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
// The result still matches each sentinel through errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	return &validationError{errs: errs}
}

type validationError struct {
	errs []error
}

func (e *validationError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e *validationError) Unwrap() []error {
	return e.errs
}
