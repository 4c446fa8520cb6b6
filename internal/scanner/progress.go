package scanner

import (
	"time"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// ProgressReporter receives callbacks while a scan runs.
// OnFileScanned may be called from several goroutines at once.
type ProgressReporter interface {
	// OnScanStart is called once with the number of files that will be extracted.
	OnScanStart(totalFiles int)

	// OnFileScanned is called after each file is extracted.
	OnFileScanned(relPath string)

	// OnBackendStart is called before a semantic backend batch runs.
	OnBackendStart(lang extraction.Language, files int)

	// OnBackendComplete is called after a semantic batch, with its error if it failed.
	OnBackendComplete(lang extraction.Language, err error)

	// OnComplete is called when extraction (and resolution, if requested) finishes.
	OnComplete(summary extraction.Summary, duration time.Duration)
}

// NoOpProgressReporter is a progress reporter that does nothing.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnScanStart(totalFiles int)                             {}
func (NoOpProgressReporter) OnFileScanned(relPath string)                           {}
func (NoOpProgressReporter) OnBackendStart(lang extraction.Language, files int)     {}
func (NoOpProgressReporter) OnBackendComplete(lang extraction.Language, err error)  {}
func (NoOpProgressReporter) OnComplete(summary extraction.Summary, d time.Duration) {}
