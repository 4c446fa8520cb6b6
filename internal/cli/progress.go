package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// CLIProgressReporter renders scan progress with progress bars.
// Output goes to w (stderr) so stdout stays valid JSON.
type CLIProgressReporter struct {
	quiet   bool
	w       io.Writer
	mu      sync.Mutex // Protects fileBar; files complete on several goroutines
	fileBar *progressbar.ProgressBar
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(w io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{quiet: quiet, w: w}
}

func (c *CLIProgressReporter) OnScanStart(totalFiles int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fileBar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(c.w),
		progressbar.OptionSetDescription("Extracting files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.w)
		}),
	)
}

func (c *CLIProgressReporter) OnFileScanned(relPath string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fileBar != nil {
		_ = c.fileBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnBackendStart(lang extraction.Language, files int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fileBar != nil {
		c.fileBar.Describe(fmt.Sprintf("Running %s semantic backend (%d files)", lang, files))
	}
}

func (c *CLIProgressReporter) OnBackendComplete(lang extraction.Language, err error) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fileBar != nil {
		c.fileBar.Describe("Extracting files")
	}
	if err != nil {
		fmt.Fprintf(c.w, "\n✗ %s semantic backend failed: %v\n", lang, err)
	}
}

func (c *CLIProgressReporter) OnComplete(summary extraction.Summary, duration time.Duration) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	if c.fileBar != nil {
		_ = c.fileBar.Finish()
		c.fileBar = nil
	}
	c.mu.Unlock()

	res := summary.Resolution
	fmt.Fprintf(c.w, "✓ Scan complete: %s files in %.1fs\n", formatNumber(summary.TotalFiles), duration.Seconds())
	fmt.Fprintf(c.w, "  Symbols: %s\n", formatNumber(summary.TotalSymbols))
	fmt.Fprintf(c.w, "  Imports: %s\n", formatNumber(summary.TotalImports))
	fmt.Fprintf(c.w, "  Calls:   %s (%s resolved)\n", formatNumber(summary.TotalCalls), formatNumber(res.TotalResolved))
	if summary.TotalErrors > 0 {
		fmt.Fprintf(c.w, "  Errors:  %s\n", formatNumber(summary.TotalErrors))
	}
	for _, lang := range summary.FailedLanguages {
		fmt.Fprintf(c.w, "  ✗ %s backend failed\n", lang)
	}
}

// formatNumber formats integer with thousand separators.
// Examples: 1234 -> "1,234", 1234567 -> "1,234,567"
func formatNumber(n int) string {
	str := fmt.Sprintf("%d", n)
	if n < 1000 {
		return str
	}

	var result []byte
	for i := range len(str) {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, str[i])
	}
	return string(result)
}
