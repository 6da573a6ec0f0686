package escalation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lineview/ftq-engine/internal/models"
)

func partial(hour, nonConforming, total int) models.HourlyPartial {
	return models.HourlyPartial{
		Hour:               hour,
		ConformingCount:    total - nonConforming,
		NonConformingCount: nonConforming,
		TotalCount:         total,
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestClassify_High(t *testing.T) {
	t.Run("three high defect hours", func(t *testing.T) {
		hourly := []models.HourlyPartial{
			partial(1, 2, 10),
			partial(2, 2, 10),
			partial(3, 2, 10),
		}

		signal := Classify(nil, hourly)

		assert.NotNil(t, signal)
		assert.Equal(t, models.SeverityHigh, signal.Severity)
		assert.Equal(t, "Multiple quality issues detected", signal.DefectLabel)
	})

	t.Run("four consecutive elevated hours", func(t *testing.T) {
		hourly := []models.HourlyPartial{
			partial(1, 7, 100),
			partial(2, 7, 100),
			partial(3, 7, 100),
			partial(4, 7, 100),
		}

		signal := Classify(nil, hourly)

		assert.NotNil(t, signal)
		assert.Equal(t, models.SeverityHigh, signal.Severity)
	})

	t.Run("critical unit via quality score", func(t *testing.T) {
		records := []models.UnitRecord{
			{
				ID:           "SN-1",
				Status:       models.StatusConforming,
				Defects:      map[string]bool{"defect2": true},
				ProductRef:   "REF-7",
				CoilNumber:   "B-12",
				QualityScore: floatPtr(0.5),
			},
		}

		signal := Classify(records, nil)

		assert.NotNil(t, signal)
		assert.Equal(t, models.SeverityHigh, signal.Severity)
		assert.Equal(t, "defect2", signal.DefectLabel)
		assert.Equal(t, "REF-7", signal.ProductRef)
		assert.Equal(t, "B-12", signal.CoilNumber)
	})

	t.Run("critical unit via defect count", func(t *testing.T) {
		records := []models.UnitRecord{{ID: "SN-1", DefectCount: intPtr(6)}}

		signal := Classify(records, nil)

		assert.NotNil(t, signal)
		assert.Equal(t, models.SeverityHigh, signal.Severity)
	})

	t.Run("critical unit via incompleteness", func(t *testing.T) {
		records := []models.UnitRecord{{ID: "SN-1", Incompleteness: floatPtr(0.3)}}

		signal := Classify(records, nil)

		assert.NotNil(t, signal)
		assert.Equal(t, models.SeverityHigh, signal.Severity)
	})

	t.Run("boundary values do not trigger critical unit", func(t *testing.T) {
		records := []models.UnitRecord{{
			ID:             "SN-1",
			DefectCount:    intPtr(5),
			QualityScore:   floatPtr(0.8),
			Incompleteness: floatPtr(0.2),
		}}

		signal := Classify(records, nil)

		assert.Nil(t, signal)
	})

	t.Run("absent derived fields never trigger", func(t *testing.T) {
		records := []models.UnitRecord{{ID: "SN-1"}}

		assert.Nil(t, Classify(records, nil))
	})
}

func TestClassify_Medium(t *testing.T) {
	t.Run("two high defect hours alone", func(t *testing.T) {
		hourly := []models.HourlyPartial{
			partial(1, 2, 10),
			partial(5, 2, 10),
		}

		signal := Classify(nil, hourly)

		assert.NotNil(t, signal)
		assert.Equal(t, models.SeverityMedium, signal.Severity)
	})

	t.Run("quiet hour resets the consecutive streak", func(t *testing.T) {
		hourly := []models.HourlyPartial{
			partial(1, 7, 100),
			partial(2, 7, 100),
			partial(3, 0, 100),
			partial(4, 7, 100),
			partial(5, 7, 100),
		}

		signal := Classify(nil, hourly)

		// Two runs of two; neither reaches the high threshold of four.
		assert.NotNil(t, signal)
		assert.Equal(t, models.SeverityMedium, signal.Severity)
	})
}

func TestClassify_LastHourLookup(t *testing.T) {
	// The last-hour rate reads the partial whose Hour equals the number
	// of partials, not the final array element.
	t.Run("matching hour present", func(t *testing.T) {
		hourly := []models.HourlyPartial{
			partial(2, 20, 100),
			partial(9, 0, 100),
		}

		signal := Classify(nil, hourly)

		// len == 2 and the hour-2 partial has rate 0.20 > 0.15.
		assert.NotNil(t, signal)
		assert.Equal(t, models.SeverityHigh, signal.Severity)
	})

	t.Run("no matching hour reads as zero", func(t *testing.T) {
		hourly := []models.HourlyPartial{
			partial(5, 20, 100),
			partial(9, 0, 100),
		}

		signal := Classify(nil, hourly)

		// Still a Medium via the 0.10 < 0.20 high-defect-hour count of 1?
		// No: one high hour and a streak of one only leaves the Low tier.
		assert.NotNil(t, signal)
		assert.Equal(t, models.SeverityLow, signal.Severity)
	})
}

func TestClassify_LowAndNone(t *testing.T) {
	t.Run("any defect yields low", func(t *testing.T) {
		hourly := []models.HourlyPartial{partial(1, 1, 100)}

		signal := Classify(nil, hourly)

		assert.NotNil(t, signal)
		assert.Equal(t, models.SeverityLow, signal.Severity)
	})

	t.Run("clean batch yields no signal", func(t *testing.T) {
		hourly := []models.HourlyPartial{
			partial(1, 0, 100),
			partial(2, 0, 100),
		}

		assert.Nil(t, Classify(nil, hourly))
	})

	t.Run("no input yields no signal", func(t *testing.T) {
		assert.Nil(t, Classify(nil, nil))
	})
}

func TestClassify_Deterministic(t *testing.T) {
	records := []models.UnitRecord{{ID: "SN-1", QualityScore: floatPtr(0.7)}}
	hourly := []models.HourlyPartial{partial(1, 2, 10), partial(2, 1, 10)}

	first := Classify(records, hourly)
	second := Classify(records, hourly)

	assert.Equal(t, first, second)
}
