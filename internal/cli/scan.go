package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/symbol-scanner/internal/config"
	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	"github.com/mvp-joe/symbol-scanner/internal/storage"
	"github.com/mvp-joe/symbol-scanner/internal/watcher"
)

// scanOptions holds the scan command's flags.
type scanOptions struct {
	output    string
	noResolve bool
	workers   int
	semantic  []string
	dbPath    string
	envelope  bool
	pretty    bool
	quiet     bool
	watch     bool
}

var scanOpts scanOptions

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Extract symbols, imports and calls from a directory",
	Long: `Scan walks a directory, extracts every supported source file and writes
one JSON document with symbols, imports, calls, errors and a summary.

Configuration is read from <path>/.symscan/config.yml and SYMSCAN_*
environment variables; flags override both.

Examples:
  # Scan the current directory to stdout
  symscan scan

  # Scan a project, pretty-printed, into a file
  symscan scan ./repo --pretty -o symbols.json

  # Use the Roslyn backend for C# and store the run in SQLite
  symscan scan ./repo --semantic csharp --db symscan.db

  # Re-scan whenever sources change
  symscan scan ./repo --watch -o symbols.json
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	f := scanCmd.Flags()
	f.StringVarP(&scanOpts.output, "output", "o", "", "Write JSON to this file instead of stdout")
	f.BoolVar(&scanOpts.noResolve, "no-resolve", false, "Skip cross-file call resolution")
	f.IntVar(&scanOpts.workers, "workers", 0, "Files extracted concurrently (default from config)")
	f.StringSliceVar(&scanOpts.semantic, "semantic", nil, "Languages whose semantic backend is installed (repeatable)")
	f.StringVar(&scanOpts.dbPath, "db", "", "Also store the run in this SQLite database")
	f.BoolVar(&scanOpts.envelope, "envelope", false, "Wrap output with run id, tool and version")
	f.BoolVar(&scanOpts.pretty, "pretty", false, "Indent JSON output")
	f.BoolVarP(&scanOpts.quiet, "quiet", "q", false, "Disable progress bars and summary")
	f.BoolVarP(&scanOpts.watch, "watch", "w", false, "Re-scan when source files change")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted! Cancelling scan...")
			cancel()
		case <-ctx.Done():
		}
	}()

	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	return scanDirectory(ctx, root, scanOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// loadConfig reads --config when given, otherwise <root>/.symscan/config.yml.
func loadConfig(root string) (*config.Config, error) {
	var loader config.Loader
	if cfgFile != "" {
		loader = config.NewFileLoader(cfgFile)
	} else {
		loader = config.NewLoader(root)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// scanDirectory runs one scan, or keeps re-scanning in watch mode until ctx
// is cancelled.
func scanDirectory(ctx context.Context, root string, opts scanOptions, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if opts.workers > 0 {
		cfg.Scan.Workers = opts.workers
	}
	if opts.noResolve {
		cfg.Resolver.Enabled = false
	}
	pretty := opts.pretty || cfg.Output.Pretty

	logger := newLogger(stderr, verbose)
	progress := NewCLIProgressReporter(stderr, opts.quiet)

	p, err := newPipeline(root, cfg, opts.semantic, progress, logger)
	if err != nil {
		return err
	}
	defer p.close()

	var writer *storage.Writer
	if opts.dbPath != "" {
		writer, err = storage.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer writer.Close()
	}

	once := func() error {
		repo, err := p.run(ctx)
		if err != nil {
			return err
		}
		return emit(ctx, p.root, repo, opts, pretty, writer, stdout)
	}

	if err := once(); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	return watchAndRescan(ctx, p, once, logger)
}

// emit writes the result to its destinations under one run id.
func emit(ctx context.Context, root string, repo *extraction.RepositoryExtraction, opts scanOptions, pretty bool, writer *storage.Writer, stdout io.Writer) error {
	runID := newRunID()

	if writer != nil {
		if err := writer.Write(ctx, runID, root, repo); err != nil {
			return err
		}
	}

	var payload any = repo
	if opts.envelope {
		payload = newEnvelope(runID, root, repo)
	}

	if opts.output == "" {
		return writeJSON(stdout, payload, pretty)
	}

	// Write then rename so readers never see a partial document.
	tmp, err := os.CreateTemp(filepath.Dir(opts.output), ".symscan-*.json")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeJSON(tmp, payload, pretty); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), opts.output); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// watchAndRescan re-runs the scan after each debounced batch of changes.
// Rescan failures are logged; watching continues.
func watchAndRescan(ctx context.Context, p *pipeline, rescan func() error, logger *slog.Logger) error {
	fw, err := watcher.NewFileWatcher([]string{p.root},
		watcher.WithFilter(p.matches),
		watcher.WithSkipDir(p.skipDir),
		watcher.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer fw.Stop()

	err = fw.Start(ctx, func(files []string) {
		logger.Info("changes detected, rescanning", "files", len(files))
		if err := rescan(); err != nil && ctx.Err() == nil {
			logger.Error("rescan failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	logger.Info("watching for changes", "root", p.root)
	<-ctx.Done()
	return nil
}
