package database

import (
	"context"
	"time"

	"github.com/lineview/ftq-engine/internal/models"
)

const (
	FILE_STATUS_PROCESSING       = "PROCESSING"
	FILE_STATUS_DONE             = "DONE"
	FILE_STATUS_DONE_WITH_ERRORS = "DONE_WITH_ERRORS"
	FILE_STATUS_FATAL            = "FATAL"
)

// DBManager defines the storage operations the ingestion pipeline and
// the aggregator depend on. Incident report persistence lives in the
// escalation.ReportStore interface, which PostgresDBManager also
// implements.
type DBManager interface {
	CreateSchema(ctx context.Context) error

	InsertFileRecord(ctx context.Context, fileName string, processedAt time.Time, status string, checksum string, lineID string, fileDate time.Time) (int, error)
	UpdateFileStatus(ctx context.Context, fileID int, status string, errors any) error
	IsFileAlreadyProcessed(ctx context.Context, checksum string) (bool, error)

	// InsertSummary persists one batch summary with its hourly partials
	// (and optionally its unit records) in a single transaction, guarded
	// by an advisory lock on (lineID, upload hour bucket) so two
	// ingestions of the same file target cannot interleave.
	InsertSummary(ctx context.Context, summary *models.Summary, hourly []models.HourlyPartial, records []models.UnitRecord) (int, error)

	SummariesForLine(ctx context.Context, lineID string, from, to time.Time) ([]models.Summary, error)
	SummariesInRange(ctx context.Context, from, to time.Time) ([]models.Summary, error)
	DistinctLines(ctx context.Context, from, to time.Time) ([]string, error)
}
