package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lineview/ftq-engine/internal/models"
)

// Placeholder for report fields the operator has not filled in yet.
const ToFill = "to fill"

// Level1Report is the initial detection record, opened from an
// escalation signal. It is never deleted; abandoning an investigation at
// this depth sets the terminal flag instead.
type Level1Report struct {
	ID          uuid.UUID  `json:"id"`
	SummaryID   int        `json:"summary_id"`
	LineID      string     `json:"line_id,omitempty"`
	Severity    string     `json:"severity"`
	DefectLabel string     `json:"defect_label"`
	ProductRef  string     `json:"product_ref,omitempty"`
	CoilNumber  string     `json:"coil_number,omitempty"`
	Operator    string     `json:"operator"`
	Cause       string     `json:"cause"`
	Action      string     `json:"action"`
	CreatedAt   time.Time  `json:"created_at"`
	Closed      bool       `json:"closed"`
	Level2ID    *uuid.UUID `json:"level2_id,omitempty"`
}

// Level2Report holds the root-cause analysis breakdown. The three cause
// categories follow the 8D convention: why it occurred, why it was not
// detected, and what in the system allowed it.
type Level2Report struct {
	ID                uuid.UUID  `json:"id"`
	Level1ID          uuid.UUID  `json:"level1_id"`
	OccurrenceCause   string     `json:"occurrence_cause"`
	NonDetectionCause string     `json:"non_detection_cause"`
	SystemicCause     string     `json:"systemic_cause"`
	Analyst           string     `json:"analyst"`
	CreatedAt         time.Time  `json:"created_at"`
	Closed            bool       `json:"closed"`
	Level3ID          *uuid.UUID `json:"level3_id,omitempty"`
}

// Level3Report closes the corrective action loop.
type Level3Report struct {
	ID               uuid.UUID `json:"id"`
	Level2ID         uuid.UUID `json:"level2_id"`
	CorrectiveAction string    `json:"corrective_action"`
	Cost             float64   `json:"cost"`
	AcceptedBy       string    `json:"accepted_by"`
	Accepted         bool      `json:"accepted"`
	CreatedAt        time.Time `json:"created_at"`
	Closed           bool      `json:"closed"`
}

// ReportChain is the fully resolved view of an incident: reading any
// level always includes its ancestors, so the chain is returned whole.
type ReportChain struct {
	Level1 *Level1Report `json:"level1"`
	Level2 *Level2Report `json:"level2,omitempty"`
	Level3 *Level3Report `json:"level3,omitempty"`
}

// ReportStore persists incident report levels. Implementations must make
// InsertLevel2/InsertLevel3 also set the forward reference on the parent
// level atomically.
type ReportStore interface {
	InsertLevel1(ctx context.Context, report *Level1Report) error
	InsertLevel2(ctx context.Context, report *Level2Report) error
	InsertLevel3(ctx context.Context, report *Level3Report) error
	GetLevel1(ctx context.Context, id uuid.UUID) (*Level1Report, error)
	GetLevel2(ctx context.Context, id uuid.UUID) (*Level2Report, error)
	GetLevel3(ctx context.Context, id uuid.UUID) (*Level3Report, error)
	MarkLevel1Closed(ctx context.Context, id uuid.UUID) error
	MarkLevel2Closed(ctx context.Context, id uuid.UUID) error
	MarkLevel3Closed(ctx context.Context, id uuid.UUID) error
}

// ReportService drives the incident lifecycle. Transitions are strictly
// forward (detection -> root cause -> corrective closure), triggered by
// explicit operator action, never automatic and never reversed.
type ReportService struct {
	store ReportStore
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// Open creates the Level-1 record for a classified signal. The defect,
// product and coil fields are seeded from the signal; operator fields
// start as placeholders.
func (s *ReportService) Open(ctx context.Context, signal *models.EscalationSignal, summaryID int, lineID string) (*Level1Report, error) {
	report := &Level1Report{
		ID:          uuid.New(),
		SummaryID:   summaryID,
		LineID:      lineID,
		Severity:    signal.Severity.String(),
		DefectLabel: signal.DefectLabel,
		ProductRef:  signal.ProductRef,
		CoilNumber:  signal.CoilNumber,
		Operator:    ToFill,
		Cause:       ToFill,
		Action:      ToFill,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.InsertLevel1(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to open level 1 report: %w", err)
	}
	return report, nil
}

// Level2Input carries the operator-supplied root-cause analysis fields.
type Level2Input struct {
	OccurrenceCause   string `json:"occurrence_cause"`
	NonDetectionCause string `json:"non_detection_cause"`
	SystemicCause     string `json:"systemic_cause"`
	Analyst           string `json:"analyst"`
}

// AdvanceToLevel2 opens the root-cause analysis for an existing Level-1
// report. A report that is closed or already advanced cannot advance
// again.
func (s *ReportService) AdvanceToLevel2(ctx context.Context, level1ID uuid.UUID, input Level2Input) (*Level2Report, error) {
	level1, err := s.store.GetLevel1(ctx, level1ID)
	if err != nil {
		return nil, err
	}
	if level1.Closed {
		return nil, fmt.Errorf("report %s is closed and cannot advance", level1ID)
	}
	if level1.Level2ID != nil {
		return nil, fmt.Errorf("report %s already has a root-cause analysis", level1ID)
	}

	report := &Level2Report{
		ID:                uuid.New(),
		Level1ID:          level1ID,
		OccurrenceCause:   orToFill(input.OccurrenceCause),
		NonDetectionCause: orToFill(input.NonDetectionCause),
		SystemicCause:     orToFill(input.SystemicCause),
		Analyst:           orToFill(input.Analyst),
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.store.InsertLevel2(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to open level 2 report: %w", err)
	}
	return report, nil
}

// Level3Input carries the closure fields.
type Level3Input struct {
	CorrectiveAction string  `json:"corrective_action"`
	Cost             float64 `json:"cost"`
	AcceptedBy       string  `json:"accepted_by"`
	Accepted         bool    `json:"accepted"`
}

// AdvanceToLevel3 opens the corrective-action closure for an existing
// Level-2 report.
func (s *ReportService) AdvanceToLevel3(ctx context.Context, level2ID uuid.UUID, input Level3Input) (*Level3Report, error) {
	level2, err := s.store.GetLevel2(ctx, level2ID)
	if err != nil {
		return nil, err
	}
	if level2.Closed {
		return nil, fmt.Errorf("analysis %s is closed and cannot advance", level2ID)
	}
	if level2.Level3ID != nil {
		return nil, fmt.Errorf("analysis %s already has a closure record", level2ID)
	}

	report := &Level3Report{
		ID:               uuid.New(),
		Level2ID:         level2ID,
		CorrectiveAction: orToFill(input.CorrectiveAction),
		Cost:             input.Cost,
		AcceptedBy:       orToFill(input.AcceptedBy),
		Accepted:         input.Accepted,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.InsertLevel3(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to open level 3 report: %w", err)
	}
	return report, nil
}

// Close marks the Level-1 report as terminal at its current depth.
// Closing never deletes a level and never regresses the chain.
func (s *ReportService) Close(ctx context.Context, level1ID uuid.UUID) error {
	if _, err := s.store.GetLevel1(ctx, level1ID); err != nil {
		return err
	}
	return s.store.MarkLevel1Closed(ctx, level1ID)
}

// Chain resolves the full report chain starting from the Level-1 id,
// following the forward references as far as they go.
func (s *ReportService) Chain(ctx context.Context, level1ID uuid.UUID) (*ReportChain, error) {
	level1, err := s.store.GetLevel1(ctx, level1ID)
	if err != nil {
		return nil, err
	}
	chain := &ReportChain{Level1: level1}

	if level1.Level2ID == nil {
		return chain, nil
	}
	level2, err := s.store.GetLevel2(ctx, *level1.Level2ID)
	if err != nil {
		return nil, err
	}
	chain.Level2 = level2

	if level2.Level3ID == nil {
		return chain, nil
	}
	level3, err := s.store.GetLevel3(ctx, *level2.Level3ID)
	if err != nil {
		return nil, err
	}
	chain.Level3 = level3
	return chain, nil
}

// ChainFromLevel3 resolves the ancestor chain of a closure record. Every
// read of a deeper level includes its ancestors.
func (s *ReportService) ChainFromLevel3(ctx context.Context, level3ID uuid.UUID) (*ReportChain, error) {
	level3, err := s.store.GetLevel3(ctx, level3ID)
	if err != nil {
		return nil, err
	}
	level2, err := s.store.GetLevel2(ctx, level3.Level2ID)
	if err != nil {
		return nil, err
	}
	level1, err := s.store.GetLevel1(ctx, level2.Level1ID)
	if err != nil {
		return nil, err
	}
	return &ReportChain{Level1: level1, Level2: level2, Level3: level3}, nil
}

func orToFill(value string) string {
	if value == "" {
		return ToFill
	}
	return value
}
