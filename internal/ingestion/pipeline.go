package ingestion

import (
	"context"
	"log"
	"time"

	"github.com/lineview/ftq-engine/internal/escalation"
	"github.com/lineview/ftq-engine/internal/kpi"
	"github.com/lineview/ftq-engine/internal/metrics"
	"github.com/lineview/ftq-engine/internal/models"
	"github.com/lineview/ftq-engine/internal/normalizer"
)

// BuildSummary assembles the persistable KPI snapshot for one normalized
// batch. Rates are computed from the counts and rounded here, at the
// persistence boundary; they are never stored independently of their
// counts.
func BuildSummary(result *normalizer.Result, lineID string, uploadedAt, fileDate time.Time) *models.Summary {
	rates := kpi.Compute(result.ConformingCount, result.NonConformingCount, result.IncompleteCount).Rounded()
	if fileDate.IsZero() {
		fileDate = uploadedAt
	}
	return &models.Summary{
		LineID:             lineID,
		ConformingCount:    result.ConformingCount,
		NonConformingCount: result.NonConformingCount,
		IncompleteCount:    result.IncompleteCount,
		FTQ:                rates.FTQ,
		ProductionRate:     rates.ProductionRate,
		RejectionRate:      rates.RejectionRate,
		TargetProduction:   result.TargetProduction,
		UploadedAt:         uploadedAt,
		FileDate:           fileDate,
	}
}

// ProcessFile runs the whole per-file unit of work synchronously:
// normalize, compute KPIs, persist the summary with its hourly partials
// in one transaction, then classify and, on a signal, open the Level-1
// incident report and alert operators. A parse failure aborts before
// anything is persisted.
func (h *IngestionService) ProcessFile(ctx context.Context, job models.FileProcessingJob) error {
	metrics.FilesProcessed.Inc()

	result, err := normalizer.NormalizeFile(job.FilePath)
	if err != nil {
		metrics.ParseFailures.Inc()
		return err
	}

	summary := BuildSummary(result, job.LineID, time.Now().UTC(), job.FileDate)
	summaryID, err := h.dbManager.InsertSummary(ctx, summary, result.Hourly, result.Records)
	if err != nil {
		return err
	}
	metrics.SummariesPersisted.Inc()

	signal := escalation.Classify(result.Records, result.Hourly)
	if signal == nil {
		return nil
	}
	metrics.Escalations.WithLabelValues(signal.Severity.String()).Inc()
	log.Printf("Escalation signal (%s) for line %s on file %s: %s", signal.Severity, job.LineID, job.FilePath, signal.DefectLabel)

	if _, err := h.reports.Open(ctx, signal, summaryID, job.LineID); err != nil {
		// The summary is already committed; the incident can be opened
		// manually, so this is reported per file rather than fatal.
		return err
	}
	h.notifier.EscalationRaised(job.LineID, signal)
	return nil
}
