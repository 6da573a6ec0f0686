package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lineview/ftq-engine/internal/escalation"
	"github.com/lineview/ftq-engine/internal/models"
)

func ConnectDB(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return dbpool, nil
}

// PostgresDBManager implements DBManager and escalation.ReportStore on a
// pgx connection pool.
type PostgresDBManager struct {
	dbpool *pgxpool.Pool
	// PersistUnitRecords enables traceability storage of individual unit
	// records alongside each summary.
	PersistUnitRecords bool
}

func NewPostgresDBManager(pool *pgxpool.Pool) *PostgresDBManager {
	return &PostgresDBManager{dbpool: pool}
}

func storeErr(op string, err error) error {
	return &models.StoreUnavailableError{Op: op, Err: err}
}

func (m *PostgresDBManager) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS file_records (
			id SERIAL PRIMARY KEY,
			file_name VARCHAR(255) NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL,
			status VARCHAR(50) NOT NULL CHECK (status IN ('DONE', 'DONE_WITH_ERRORS', 'PROCESSING', 'FATAL')),
			checksum VARCHAR(64),
			line_id VARCHAR(100),
			file_date TIMESTAMPTZ,
			errors jsonb
		);`,
		`CREATE TABLE IF NOT EXISTS quality_summaries (
			id SERIAL PRIMARY KEY,
			file_id INTEGER REFERENCES file_records(id),
			line_id VARCHAR(100) NOT NULL DEFAULT '',
			conforming_count INTEGER NOT NULL,
			non_conforming_count INTEGER NOT NULL,
			incomplete_count INTEGER NOT NULL,
			ftq NUMERIC(5, 2) NOT NULL,
			production_rate NUMERIC(5, 2) NOT NULL,
			rejection_rate NUMERIC(5, 2) NOT NULL,
			target_production INTEGER NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL,
			file_date TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quality_summaries_line_uploaded ON quality_summaries (line_id, uploaded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_quality_summaries_file_date ON quality_summaries (file_date);`,
		`CREATE TABLE IF NOT EXISTS hourly_partials (
			summary_id INTEGER NOT NULL REFERENCES quality_summaries(id) ON DELETE CASCADE,
			hour SMALLINT NOT NULL CHECK (hour BETWEEN 0 AND 23),
			conforming_count INTEGER NOT NULL,
			non_conforming_count INTEGER NOT NULL,
			total_count INTEGER NOT NULL,
			PRIMARY KEY (summary_id, hour)
		);`,
		`CREATE TABLE IF NOT EXISTS unit_records (
			summary_id INTEGER NOT NULL REFERENCES quality_summaries(id) ON DELETE CASCADE,
			unit_id VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL,
			process_stage VARCHAR(20) NOT NULL,
			product_ref VARCHAR(100),
			coil_number VARCHAR(100),
			defects jsonb
		);`,
		`CREATE TABLE IF NOT EXISTS incident_level1 (
			id UUID PRIMARY KEY,
			summary_id INTEGER,
			line_id VARCHAR(100),
			severity VARCHAR(10) NOT NULL,
			defect_label TEXT NOT NULL,
			product_ref VARCHAR(100),
			coil_number VARCHAR(100),
			operator TEXT NOT NULL,
			cause TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			closed BOOLEAN NOT NULL DEFAULT FALSE,
			level2_id UUID
		);`,
		`CREATE TABLE IF NOT EXISTS incident_level2 (
			id UUID PRIMARY KEY,
			level1_id UUID NOT NULL REFERENCES incident_level1(id),
			occurrence_cause TEXT NOT NULL,
			non_detection_cause TEXT NOT NULL,
			systemic_cause TEXT NOT NULL,
			analyst TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			closed BOOLEAN NOT NULL DEFAULT FALSE,
			level3_id UUID
		);`,
		`CREATE TABLE IF NOT EXISTS incident_level3 (
			id UUID PRIMARY KEY,
			level2_id UUID NOT NULL REFERENCES incident_level2(id),
			corrective_action TEXT NOT NULL,
			cost NUMERIC(12, 2) NOT NULL DEFAULT 0,
			accepted_by TEXT NOT NULL,
			accepted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			closed BOOLEAN NOT NULL DEFAULT FALSE
		);`,
	}

	for _, query := range queries {
		if _, err := m.dbpool.Exec(ctx, query); err != nil {
			return storeErr("create schema", err)
		}
	}
	return nil
}

func (m *PostgresDBManager) InsertFileRecord(ctx context.Context, fileName string, processedAt time.Time, status string, checksum string, lineID string, fileDate time.Time) (int, error) {
	query := `
	INSERT INTO file_records (file_name, processed_at, status, checksum, line_id, file_date)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id;`

	var fileID int
	err := m.dbpool.QueryRow(ctx, query, fileName, processedAt, status, checksum, lineID, fileDate).Scan(&fileID)
	if err != nil {
		return 0, storeErr("insert file record", err)
	}
	return fileID, nil
}

func (m *PostgresDBManager) UpdateFileStatus(ctx context.Context, fileID int, status string, errors any) error {
	query := `
	UPDATE file_records
	SET status = $1,
		errors = $2
	WHERE id = $3;`

	if _, err := m.dbpool.Exec(ctx, query, status, errors, fileID); err != nil {
		return storeErr("update file status", err)
	}
	return nil
}

func (m *PostgresDBManager) IsFileAlreadyProcessed(ctx context.Context, checksum string) (bool, error) {
	query := `
	SELECT id
	FROM file_records
	WHERE checksum = $1 AND status = 'DONE';`

	var id int
	err := m.dbpool.QueryRow(ctx, query, checksum).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, storeErr("find file record by checksum", err)
	}
	return true, nil
}

// ingestionLockKey hashes (lineID, upload hour bucket) into the advisory
// lock keyspace so two ingestions of the same file target serialize.
func ingestionLockKey(lineID string, uploadedAt time.Time) int64 {
	bucket := uploadedAt.UTC().Truncate(time.Hour)
	digest := xxhash.New()
	digest.WriteString(lineID)
	digest.WriteString("|")
	digest.WriteString(bucket.Format(time.RFC3339))
	return int64(digest.Sum64())
}

func (m *PostgresDBManager) InsertSummary(ctx context.Context, summary *models.Summary, hourly []models.HourlyPartial, records []models.UnitRecord) (int, error) {
	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return 0, storeErr("begin summary transaction", err)
	}
	defer tx.Rollback(ctx)

	// Held until commit; a second ingestion for the same target blocks
	// here instead of creating a duplicate Summary.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ingestionLockKey(summary.LineID, summary.UploadedAt)); err != nil {
		return 0, storeErr("acquire ingestion lock", err)
	}

	insertQuery := `
	INSERT INTO quality_summaries (
		line_id, conforming_count, non_conforming_count, incomplete_count,
		ftq, production_rate, rejection_rate, target_production, uploaded_at, file_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id;`

	var summaryID int
	err = tx.QueryRow(ctx, insertQuery,
		summary.LineID,
		summary.ConformingCount, summary.NonConformingCount, summary.IncompleteCount,
		summary.FTQ, summary.ProductionRate, summary.RejectionRate,
		summary.TargetProduction, summary.UploadedAt, summary.FileDate,
	).Scan(&summaryID)
	if err != nil {
		return 0, storeErr("insert summary", err)
	}

	if len(hourly) > 0 {
		copySource := pgx.CopyFromSlice(len(hourly), func(i int) ([]interface{}, error) {
			partial := hourly[i]
			return []interface{}{summaryID, partial.Hour, partial.ConformingCount, partial.NonConformingCount, partial.TotalCount}, nil
		})
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"hourly_partials"},
			[]string{"summary_id", "hour", "conforming_count", "non_conforming_count", "total_count"},
			copySource,
		)
		if err != nil {
			return 0, storeErr("copy hourly partials", err)
		}
	}

	if m.PersistUnitRecords && len(records) > 0 {
		copySource := pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
			record := records[i]
			return []interface{}{summaryID, record.ID, string(record.Status), string(record.ProcessStage), record.ProductRef, record.CoilNumber, record.Defects}, nil
		})
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"unit_records"},
			[]string{"summary_id", "unit_id", "status", "process_stage", "product_ref", "coil_number", "defects"},
			copySource,
		)
		if err != nil {
			return 0, storeErr("copy unit records", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storeErr("commit summary transaction", err)
	}
	return summaryID, nil
}

const summaryColumns = `id, line_id, conforming_count, non_conforming_count, incomplete_count,
	ftq, production_rate, rejection_rate, target_production, uploaded_at, file_date`

func (m *PostgresDBManager) scanSummaries(rows pgx.Rows) ([]models.Summary, error) {
	defer rows.Close()
	var summaries []models.Summary
	for rows.Next() {
		var s models.Summary
		err := rows.Scan(&s.ID, &s.LineID, &s.ConformingCount, &s.NonConformingCount, &s.IncompleteCount,
			&s.FTQ, &s.ProductionRate, &s.RejectionRate, &s.TargetProduction, &s.UploadedAt, &s.FileDate)
		if err != nil {
			return nil, storeErr("scan summary row", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate summary rows", err)
	}
	return summaries, nil
}

func (m *PostgresDBManager) SummariesForLine(ctx context.Context, lineID string, from, to time.Time) ([]models.Summary, error) {
	query := fmt.Sprintf(`
	SELECT %s
	FROM quality_summaries
	WHERE line_id = $1 AND uploaded_at >= $2 AND uploaded_at <= $3
	ORDER BY uploaded_at;`, summaryColumns)

	rows, err := m.dbpool.Query(ctx, query, lineID, from, to)
	if err != nil {
		return nil, storeErr("query summaries for line", err)
	}
	return m.scanSummaries(rows)
}

func (m *PostgresDBManager) SummariesInRange(ctx context.Context, from, to time.Time) ([]models.Summary, error) {
	query := fmt.Sprintf(`
	SELECT %s
	FROM quality_summaries
	WHERE file_date >= $1 AND file_date < $2
	ORDER BY file_date;`, summaryColumns)

	rows, err := m.dbpool.Query(ctx, query, from, to)
	if err != nil {
		return nil, storeErr("query summaries in range", err)
	}
	return m.scanSummaries(rows)
}

func (m *PostgresDBManager) DistinctLines(ctx context.Context, from, to time.Time) ([]string, error) {
	query := `
	SELECT DISTINCT line_id
	FROM quality_summaries
	WHERE file_date >= $1 AND file_date < $2 AND line_id <> ''
	ORDER BY line_id;`

	rows, err := m.dbpool.Query(ctx, query, from, to)
	if err != nil {
		return nil, storeErr("query distinct lines", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, storeErr("scan line id", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate line ids", err)
	}
	return lines, nil
}

// escalation.ReportStore implementation.

func (m *PostgresDBManager) InsertLevel1(ctx context.Context, report *escalation.Level1Report) error {
	query := `
	INSERT INTO incident_level1 (id, summary_id, line_id, severity, defect_label, product_ref, coil_number, operator, cause, action, created_at, closed)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

	_, err := m.dbpool.Exec(ctx, query,
		report.ID, report.SummaryID, report.LineID, report.Severity, report.DefectLabel,
		report.ProductRef, report.CoilNumber, report.Operator, report.Cause, report.Action,
		report.CreatedAt, report.Closed)
	if err != nil {
		return storeErr("insert level 1 report", err)
	}
	return nil
}

func (m *PostgresDBManager) InsertLevel2(ctx context.Context, report *escalation.Level2Report) error {
	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return storeErr("begin level 2 transaction", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
	INSERT INTO incident_level2 (id, level1_id, occurrence_cause, non_detection_cause, systemic_cause, analyst, created_at, closed)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	_, err = tx.Exec(ctx, insertQuery,
		report.ID, report.Level1ID, report.OccurrenceCause, report.NonDetectionCause,
		report.SystemicCause, report.Analyst, report.CreatedAt, report.Closed)
	if err != nil {
		return storeErr("insert level 2 report", err)
	}

	// The forward reference is set in the same transaction so the chain
	// can never point at a missing record.
	if _, err := tx.Exec(ctx, `UPDATE incident_level1 SET level2_id = $1 WHERE id = $2`, report.ID, report.Level1ID); err != nil {
		return storeErr("link level 2 report", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit level 2 transaction", err)
	}
	return nil
}

func (m *PostgresDBManager) InsertLevel3(ctx context.Context, report *escalation.Level3Report) error {
	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return storeErr("begin level 3 transaction", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
	INSERT INTO incident_level3 (id, level2_id, corrective_action, cost, accepted_by, accepted, created_at, closed)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	_, err = tx.Exec(ctx, insertQuery,
		report.ID, report.Level2ID, report.CorrectiveAction, report.Cost,
		report.AcceptedBy, report.Accepted, report.CreatedAt, report.Closed)
	if err != nil {
		return storeErr("insert level 3 report", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE incident_level2 SET level3_id = $1 WHERE id = $2`, report.ID, report.Level2ID); err != nil {
		return storeErr("link level 3 report", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit level 3 transaction", err)
	}
	return nil
}

func (m *PostgresDBManager) GetLevel1(ctx context.Context, id uuid.UUID) (*escalation.Level1Report, error) {
	query := `
	SELECT id, summary_id, line_id, severity, defect_label, product_ref, coil_number, operator, cause, action, created_at, closed, level2_id
	FROM incident_level1 WHERE id = $1;`

	var report escalation.Level1Report
	var productRef, coilNumber *string
	err := m.dbpool.QueryRow(ctx, query, id).Scan(
		&report.ID, &report.SummaryID, &report.LineID, &report.Severity, &report.DefectLabel,
		&productRef, &coilNumber, &report.Operator, &report.Cause, &report.Action,
		&report.CreatedAt, &report.Closed, &report.Level2ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("level 1 report %s not found", id)
		}
		return nil, storeErr("get level 1 report", err)
	}
	if productRef != nil {
		report.ProductRef = *productRef
	}
	if coilNumber != nil {
		report.CoilNumber = *coilNumber
	}
	return &report, nil
}

func (m *PostgresDBManager) GetLevel2(ctx context.Context, id uuid.UUID) (*escalation.Level2Report, error) {
	query := `
	SELECT id, level1_id, occurrence_cause, non_detection_cause, systemic_cause, analyst, created_at, closed, level3_id
	FROM incident_level2 WHERE id = $1;`

	var report escalation.Level2Report
	err := m.dbpool.QueryRow(ctx, query, id).Scan(
		&report.ID, &report.Level1ID, &report.OccurrenceCause, &report.NonDetectionCause,
		&report.SystemicCause, &report.Analyst, &report.CreatedAt, &report.Closed, &report.Level3ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("level 2 report %s not found", id)
		}
		return nil, storeErr("get level 2 report", err)
	}
	return &report, nil
}

func (m *PostgresDBManager) GetLevel3(ctx context.Context, id uuid.UUID) (*escalation.Level3Report, error) {
	query := `
	SELECT id, level2_id, corrective_action, cost, accepted_by, accepted, created_at, closed
	FROM incident_level3 WHERE id = $1;`

	var report escalation.Level3Report
	err := m.dbpool.QueryRow(ctx, query, id).Scan(
		&report.ID, &report.Level2ID, &report.CorrectiveAction, &report.Cost,
		&report.AcceptedBy, &report.Accepted, &report.CreatedAt, &report.Closed)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("level 3 report %s not found", id)
		}
		return nil, storeErr("get level 3 report", err)
	}
	return &report, nil
}

func (m *PostgresDBManager) markClosed(ctx context.Context, table string, id uuid.UUID) error {
	query := fmt.Sprintf(`UPDATE %s SET closed = TRUE WHERE id = $1`, pgx.Identifier{table}.Sanitize())
	if _, err := m.dbpool.Exec(ctx, query, id); err != nil {
		return storeErr("close report", err)
	}
	return nil
}

func (m *PostgresDBManager) MarkLevel1Closed(ctx context.Context, id uuid.UUID) error {
	return m.markClosed(ctx, "incident_level1", id)
}

func (m *PostgresDBManager) MarkLevel2Closed(ctx context.Context, id uuid.UUID) error {
	return m.markClosed(ctx, "incident_level2", id)
}

func (m *PostgresDBManager) MarkLevel3Closed(ctx context.Context, id uuid.UUID) error {
	return m.markClosed(ctx, "incident_level3", id)
}
