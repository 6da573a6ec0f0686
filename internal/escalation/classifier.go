// Package escalation decides when a quality incident must be opened and
// models the incident report lifecycle across its three investigation
// depths.
package escalation

import (
	"github.com/lineview/ftq-engine/internal/models"
)

// Fixed classification thresholds. These mirror the plant's historical
// escalation rules and are deliberately not configurable.
const (
	highHourRate        = 0.10
	consecutiveHourRate = 0.05
	lastHourHighRate    = 0.15
	lastHourMediumRate  = 0.10

	criticalDefectCount    = 5
	criticalQualityScore   = 0.8
	criticalIncompleteness = 0.2
)

// Classify inspects one batch's unit records and hourly partials and
// returns an escalation signal, or nil when nothing warrants a report.
// The evaluation is deterministic: same input, same verdict. Classify
// only classifies; opening the Level-1 incident report is the caller's
// responsibility.
func Classify(records []models.UnitRecord, hourly []models.HourlyPartial) *models.EscalationSignal {
	highDefectHours := 0
	consecutiveDefectHours := 0
	totalDefects := 0

	for _, partial := range hourly {
		rate := partial.DefectRate()
		if rate > highHourRate {
			highDefectHours++
		}
		// Running counter over array order, which is assumed
		// chronological; any quiet hour resets the streak.
		if rate > consecutiveHourRate {
			consecutiveDefectHours++
		} else {
			consecutiveDefectHours = 0
		}
		totalDefects += partial.NonConformingCount
	}

	lastHourDefectRate := lastHourRate(hourly)
	critical := firstCriticalUnit(records)

	if highDefectHours >= 3 || consecutiveDefectHours >= 4 || lastHourDefectRate > lastHourHighRate || critical != nil {
		signal := &models.EscalationSignal{
			Severity:    models.SeverityHigh,
			DefectLabel: "Multiple quality issues detected",
		}
		if critical != nil {
			if label := critical.PrimaryDefect(); label != "" {
				signal.DefectLabel = label
			}
			signal.ProductRef = critical.ProductRef
			signal.CoilNumber = critical.CoilNumber
		}
		return signal
	}

	if highDefectHours >= 2 || consecutiveDefectHours >= 2 || lastHourDefectRate > lastHourMediumRate {
		return &models.EscalationSignal{
			Severity:    models.SeverityMedium,
			DefectLabel: "Multiple quality issues detected",
		}
	}

	if totalDefects > 0 {
		return &models.EscalationSignal{
			Severity:    models.SeverityLow,
			DefectLabel: "Multiple quality issues detected",
		}
	}

	return nil
}

// lastHourRate returns the defect rate of the partial whose Hour field
// equals the number of partials. This is the plant system's historical
// lookup and is not necessarily the last array element.
// TODO: confirm with operations whether this should be the final element
// (hour == len-1) before changing; dashboards were tuned against the
// current behavior.
func lastHourRate(hourly []models.HourlyPartial) float64 {
	target := len(hourly)
	for _, partial := range hourly {
		if partial.Hour == target {
			return partial.DefectRate()
		}
	}
	return 0
}

// firstCriticalUnit returns the first record that crosses any critical
// threshold. The three derived fields are optional: a nil field never
// triggers its rule.
func firstCriticalUnit(records []models.UnitRecord) *models.UnitRecord {
	for i := range records {
		r := &records[i]
		if r.DefectCount != nil && *r.DefectCount > criticalDefectCount {
			return r
		}
		if r.QualityScore != nil && *r.QualityScore < criticalQualityScore {
			return r
		}
		if r.Incompleteness != nil && *r.Incompleteness > criticalIncompleteness {
			return r
		}
	}
	return nil
}
