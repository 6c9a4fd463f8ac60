// Package metrics exposes Prometheus counters for the import pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	importsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strava_sheets_sync",
		Subsystem: "import",
		Name:      "imports_total",
		Help:      "Import runs by outcome.",
	}, []string{"outcome"})

	rowsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strava_sheets_sync",
		Subsystem: "import",
		Name:      "rows_appended_total",
		Help:      "Rows appended to spreadsheets.",
	})

	rowsUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strava_sheets_sync",
		Subsystem: "import",
		Name:      "rows_updated_total",
		Help:      "Existing rows updated in place.",
	})

	rowsUnchanged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strava_sheets_sync",
		Subsystem: "import",
		Name:      "rows_unchanged_total",
		Help:      "Matched rows already up to date.",
	})

	cellWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strava_sheets_sync",
		Subsystem: "import",
		Name:      "cell_write_failures_total",
		Help:      "Individual cell writes that failed during an import.",
	})

	importDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "strava_sheets_sync",
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Wall time of confirmed import runs.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		importsTotal,
		rowsAppended,
		rowsUpdated,
		rowsUnchanged,
		cellWriteFailures,
		importDuration,
	)
}

// RecordImport counts one finished import run and its row-level outcomes.
// Outcome is "success", "partial" (some cell writes failed) or "failure".
func RecordImport(outcome string, appended, updated, unchanged, failures int, elapsed time.Duration) {
	importsTotal.WithLabelValues(outcome).Inc()
	rowsAppended.Add(float64(appended))
	rowsUpdated.Add(float64(updated))
	rowsUnchanged.Add(float64(unchanged))
	cellWriteFailures.Add(float64(failures))
	importDuration.Observe(elapsed.Seconds())
}
