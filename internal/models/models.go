package models

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// UnitStatus is the final quality outcome of one produced unit.
type UnitStatus string

const (
	StatusConforming    UnitStatus = "CONFORMING"
	StatusNonConforming UnitStatus = "NON_CONFORMING"
	StatusIncomplete    UnitStatus = "INCOMPLETE"
)

// ProcessStage is inferred from the free-text report type of a row.
type ProcessStage string

const (
	StageProduction ProcessStage = "PRODUCTION"
	StageSetup      ProcessStage = "SETUP"
	StageAfterSetup ProcessStage = "AFTER_SETUP"
)

// Severity orders escalation signals Low < Medium < High.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// UnitRecord is one produced/inspected physical unit (a reel or discrete
// part). Records live only for the duration of one file ingestion; the
// persisted artifact is the Summary, not the individual records (unless
// traceability persistence is enabled).
type UnitRecord struct {
	ID           string       `json:"id"`
	Status       UnitStatus   `json:"status"`
	ProcessStage ProcessStage `json:"process_stage"`
	// Defects maps defect slot names (defect1..defect5) to raised flags.
	Defects    map[string]bool `json:"defects,omitempty"`
	ProductRef string          `json:"product_ref,omitempty"`
	CoilNumber string          `json:"coil_number,omitempty"`

	// Optional derived quality fields. Nil means the source never supplied
	// them; classifier rules keyed on these never trigger on nil.
	DefectCount    *int     `json:"defect_count,omitempty"`
	QualityScore   *float64 `json:"quality_score,omitempty"`
	Incompleteness *float64 `json:"incompleteness,omitempty"`
}

// HasDefect reports whether any defect flag is raised. A unit can carry
// defect flags and still be Conforming: the flags are independent signals,
// not authoritative rejection markers.
func (u *UnitRecord) HasDefect() bool {
	for _, raised := range u.Defects {
		if raised {
			return true
		}
	}
	return false
}

// PrimaryDefect returns the lowest-numbered raised defect slot, or "".
func (u *UnitRecord) PrimaryDefect() string {
	for i := 1; i <= 5; i++ {
		slot := fmt.Sprintf("defect%d", i)
		if u.Defects[slot] {
			return slot
		}
	}
	return ""
}

// HourlyPartial accumulates per-hour counts within one file's upload
// window. Hours with no contributing rows stay all-zero and are not
// emitted. Immutable once normalization completes.
type HourlyPartial struct {
	Hour               int `json:"hour"`
	ConformingCount    int `json:"conforming_count"`
	NonConformingCount int `json:"non_conforming_count"`
	TotalCount         int `json:"total_count"`
}

// DefectRate returns nonConforming/total, 0 when the hour is empty.
func (h HourlyPartial) DefectRate() float64 {
	if h.TotalCount == 0 {
		return 0
	}
	return float64(h.NonConformingCount) / float64(h.TotalCount)
}

// Summary is the single KPI snapshot for one uploaded batch. Rates are
// always recomputed from the counts before persistence; a re-upload makes
// a new Summary rather than patching an old one.
type Summary struct {
	ID                 int       `json:"id,omitempty"`
	LineID             string    `json:"line_id,omitempty"`
	ConformingCount    int       `json:"conforming_count"`
	NonConformingCount int       `json:"non_conforming_count"`
	IncompleteCount    int       `json:"incomplete_count"`
	FTQ                float64   `json:"ftq"`
	ProductionRate     float64   `json:"production_rate"`
	RejectionRate      float64   `json:"rejection_rate"`
	TargetProduction   int       `json:"target_production"`
	UploadedAt         time.Time `json:"uploaded_at"`
	// FileDate may be supplied explicitly for backfills and then differs
	// from UploadedAt.
	FileDate time.Time `json:"file_date"`
}

// Total returns the number of units contributing to the summary.
func (s *Summary) Total() int {
	return s.ConformingCount + s.NonConformingCount + s.IncompleteCount
}

// EscalationSignal is the classifier's verdict that an incident report
// must be opened. At most one per Summary.
type EscalationSignal struct {
	Severity    Severity `json:"severity"`
	DefectLabel string   `json:"defect_label"`
	ProductRef  string   `json:"product_ref,omitempty"`
	CoilNumber  string   `json:"coil_number,omitempty"`
}

// FileInfo describes one discovered spreadsheet before processing.
type FileInfo struct {
	Path     string
	LineID   string
	FileDate time.Time
}

// FileProcessingJob is a unit of work for the parser worker pool.
type FileProcessingJob struct {
	FilePath string
	FileID   int
	LineID   string
	FileDate time.Time
}

// AppError carries a per-file ingestion error through the async error
// channel so it can be attached to the file record afterwards.
type AppError struct {
	FileID  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("FileID %d: %s - %v", e.FileID, e.Message, e.Err)
	}
	return fmt.Sprintf("FileID %d: %s", e.FileID, e.Message)
}

// MarshalJSON keeps the wrapped error readable in the jsonb errors column.
func (e AppError) MarshalJSON() ([]byte, error) {
	out := map[string]any{"file_id": e.FileID, "message": e.Message}
	if e.Err != nil {
		out["error"] = e.Err.Error()
	}
	return json.Marshal(out)
}

// FileErrorMap collects errors per file id across workers.
type FileErrorMap struct {
	Errors map[int][]AppError
	Mu     sync.Mutex
}

// FileMap tracks fileID -> path for status updates after processing.
type FileMap = map[int]string

// IngestionChannels groups the channels shared by the worker pool.
type IngestionChannels struct {
	Jobs   chan FileProcessingJob
	Errors chan AppError
}

// IngestionWaitGroups groups the wait groups shared by the worker pool.
type IngestionWaitGroups struct {
	ParserWg *sync.WaitGroup
	MainWg   *sync.WaitGroup
}
