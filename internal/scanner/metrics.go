package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// filesScanned counts extracted files.
	// Labels: language, backend (syntactic, semantic)
	filesScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symscan",
		Subsystem: "scanner",
		Name:      "files_total",
		Help:      "Files extracted by language and backend",
	}, []string{"language", "backend"})

	// extractionErrors counts extraction errors.
	// Labels: code (SYNTAX_ERROR, READ_ERROR, BACKEND_TIMEOUT, ...)
	extractionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symscan",
		Subsystem: "scanner",
		Name:      "errors_total",
		Help:      "Extraction errors by code",
	}, []string{"code"})

	// cacheLookups counts result cache lookups.
	// Labels: result (hit, miss)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symscan",
		Subsystem: "scanner",
		Name:      "cache_lookups_total",
		Help:      "Result cache lookups by outcome",
	}, []string{"result"})

	// backendRuns counts semantic backend batch runs.
	// Labels: language, outcome (ok, unavailable, timeout, failure)
	backendRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symscan",
		Subsystem: "scanner",
		Name:      "backend_runs_total",
		Help:      "Semantic backend runs by language and outcome",
	}, []string{"language", "outcome"})

	// scanDuration measures whole scans.
	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "symscan",
		Subsystem: "scanner",
		Name:      "scan_duration_seconds",
		Help:      "Duration of repository scans",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	})
)
