// Package metrics exposes the pipeline's operational counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ftq_files_processed_total",
		Help: "Spreadsheets ingested, regardless of outcome.",
	})

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ftq_parse_failures_total",
		Help: "Spreadsheets rejected as unreadable or malformed.",
	})

	SummariesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ftq_summaries_persisted_total",
		Help: "Batch summaries written to the store.",
	})

	Escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ftq_escalations_total",
		Help: "Escalation signals produced, by severity.",
	}, []string{"severity"})
)
