package normalizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lineview/ftq-engine/internal/models"
)

const csvHeader = "Numéro de série;Statut FTQ;Type de rapport;Heure;Quantité;Référence produit;N° Bobine;Défaut 1;Défaut 2;Défaut 3;Défaut 4;Défaut 5;Allongement;Aspect;Couleur"

type CSVRow struct {
	Serial     string
	Status     string
	ReportType string
	Time       string
	Quantity   string
	ProductRef string
	CoilNumber string
	Defects    [5]string
	Elongation string
	Aspect     string
	Color      string
}

func newDefaultCSVRow() CSVRow {
	return CSVRow{
		Serial:     "SN-001",
		Status:     "Conforme",
		ReportType: "Rapport de production",
		Time:       "08:15",
		Quantity:   "1",
		ProductRef: "REF-A12",
		CoilNumber: "B-771",
	}
}

func createTestCSVContent(rows []CSVRow) string {
	var content strings.Builder
	content.WriteString(csvHeader + "\n")

	for _, rowData := range rows {
		row := []string{
			rowData.Serial,
			rowData.Status,
			rowData.ReportType,
			rowData.Time,
			rowData.Quantity,
			rowData.ProductRef,
			rowData.CoilNumber,
			rowData.Defects[0],
			rowData.Defects[1],
			rowData.Defects[2],
			rowData.Defects[3],
			rowData.Defects[4],
			rowData.Elongation,
			rowData.Aspect,
			rowData.Color,
		}
		content.WriteString(fmt.Sprintf("%s\n", strings.Join(row, ";")))
	}

	return content.String()
}

func rowWithStatus(status string) CSVRow {
	row := newDefaultCSVRow()
	row.Status = status
	return row
}

func TestNormalize_Counts(t *testing.T) {
	content := createTestCSVContent([]CSVRow{
		rowWithStatus("Conforme"),
		rowWithStatus("NOK"),
		rowWithStatus("NOK"),
		rowWithStatus("Incomplet"),
	})

	result, err := Normalize(strings.NewReader(content))

	assert.NoError(t, err)
	assert.Equal(t, 1, result.ConformingCount)
	assert.Equal(t, 2, result.NonConformingCount)
	assert.Equal(t, 1, result.IncompleteCount)
	assert.Equal(t, 4, result.Total())
	assert.Len(t, result.Records, 4)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   models.UnitStatus
	}{
		{"conforme", "Conforme", models.StatusConforming},
		{"conforme uppercase", "CONFORME", models.StatusConforming},
		{"ok literal", "OK", models.StatusConforming},
		{"ok lowercase", "ok", models.StatusConforming},
		{"incomplet", "Incomplet", models.StatusIncomplete},
		{"nok", "NOK", models.StatusNonConforming},
		{"empty", "", models.StatusNonConforming},
		{"arbitrary", "rejet", models.StatusNonConforming},
		// Regression: when a cell matches both substrings the conforming
		// branch wins. Do not reorder without checking downstream KPIs.
		{"conforme wins over incomplet", "conforme mais incomplet", models.StatusConforming},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStatus(tt.status))
		})
	}
}

func TestClassifyStage(t *testing.T) {
	tests := []struct {
		reportType string
		want       models.ProcessStage
	}{
		{"Rapport de production", models.StageProduction},
		{"Réglage machine", models.StageSetup},
		{"Après réglage", models.StageAfterSetup},
		{"After setup check", models.StageAfterSetup},
		{"", models.StageAfterSetup},
		{"autre chose", models.StageAfterSetup},
	}

	for _, tt := range tests {
		t.Run(tt.reportType, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStage(tt.reportType))
		})
	}
}

func TestNormalize_Defects(t *testing.T) {
	t.Run("fixed defect columns keep their slot", func(t *testing.T) {
		row := newDefaultCSVRow()
		row.Defects[2] = "1"

		result, err := Normalize(strings.NewReader(createTestCSVContent([]CSVRow{row})))

		assert.NoError(t, err)
		record := result.Records[0]
		assert.True(t, record.Defects["defect3"])
		assert.False(t, record.Defects["defect1"])
		assert.True(t, record.HasDefect())
		assert.Equal(t, "defect3", record.PrimaryDefect())
	})

	t.Run("failed quality check collapses onto defect1", func(t *testing.T) {
		row := newDefaultCSVRow()
		row.Color = "NOK"

		result, err := Normalize(strings.NewReader(createTestCSVContent([]CSVRow{row})))

		assert.NoError(t, err)
		assert.True(t, result.Records[0].Defects["defect1"])
	})

	t.Run("defect flags do not override a conforming status", func(t *testing.T) {
		row := newDefaultCSVRow()
		row.Status = "Conforme"
		row.Defects[0] = "x"

		result, err := Normalize(strings.NewReader(createTestCSVContent([]CSVRow{row})))

		assert.NoError(t, err)
		assert.Equal(t, 1, result.ConformingCount)
		assert.True(t, result.Records[0].HasDefect())
		assert.Equal(t, models.StatusConforming, result.Records[0].Status)
	})
}

func TestNormalize_HourlyPartials(t *testing.T) {
	rowAt := func(status, hour string) CSVRow {
		row := rowWithStatus(status)
		row.Time = hour
		return row
	}

	t.Run("rows bucket by leading hour", func(t *testing.T) {
		content := createTestCSVContent([]CSVRow{
			rowAt("Conforme", "08:05"),
			rowAt("NOK", "08:40"),
			rowAt("Conforme", "09:10"),
		})

		result, err := Normalize(strings.NewReader(content))

		assert.NoError(t, err)
		assert.Len(t, result.Hourly, 2)
		assert.Equal(t, models.HourlyPartial{Hour: 8, ConformingCount: 1, NonConformingCount: 1, TotalCount: 2}, result.Hourly[0])
		assert.Equal(t, models.HourlyPartial{Hour: 9, ConformingCount: 1, NonConformingCount: 0, TotalCount: 1}, result.Hourly[1])
	})

	t.Run("unparseable hour still counts in file totals", func(t *testing.T) {
		content := createTestCSVContent([]CSVRow{
			rowAt("Conforme", "08:05"),
			rowAt("NOK", "no time"),
			rowAt("NOK", "99:00"),
		})

		result, err := Normalize(strings.NewReader(content))

		assert.NoError(t, err)
		assert.Equal(t, 3, result.Total())
		assert.Len(t, result.Hourly, 1)
		assert.Equal(t, 1, result.Hourly[0].TotalCount)
	})

	t.Run("partial sums stay consistent", func(t *testing.T) {
		content := createTestCSVContent([]CSVRow{
			rowAt("Conforme", "10:00"),
			rowAt("NOK", "10:30"),
			rowAt("Incomplet", "10:45"),
		})

		result, err := Normalize(strings.NewReader(content))

		assert.NoError(t, err)
		partial := result.Hourly[0]
		// Incomplete rows count in the hour total but in neither side.
		assert.Equal(t, 3, partial.TotalCount)
		assert.Equal(t, partial.ConformingCount+partial.NonConformingCount, 2)
	})
}

func TestNormalize_TargetProduction(t *testing.T) {
	t.Run("uses quantity column when present", func(t *testing.T) {
		rows := []CSVRow{newDefaultCSVRow(), newDefaultCSVRow()}
		rows[0].Quantity = "40"
		rows[1].Quantity = "25"

		result, err := Normalize(strings.NewReader(createTestCSVContent(rows)))

		assert.NoError(t, err)
		assert.Equal(t, 65, result.TargetProduction)
	})

	t.Run("falls back to heuristic floor", func(t *testing.T) {
		rows := make([]CSVRow, 3)
		for i := range rows {
			rows[i] = newDefaultCSVRow()
			rows[i].Quantity = ""
		}

		result, err := Normalize(strings.NewReader(createTestCSVContent(rows)))

		assert.NoError(t, err)
		// ceil(3*1.2) = 4, clamped up to the floor of 100.
		assert.Equal(t, 100, result.TargetProduction)
	})

	t.Run("heuristic exceeds floor for large batches", func(t *testing.T) {
		rows := make([]CSVRow, 90)
		for i := range rows {
			rows[i] = newDefaultCSVRow()
			rows[i].Quantity = ""
		}

		result, err := Normalize(strings.NewReader(createTestCSVContent(rows)))

		assert.NoError(t, err)
		assert.Equal(t, 108, result.TargetProduction)
	})
}

func TestNormalize_ColumnFallbacks(t *testing.T) {
	t.Run("alternate export headers resolve", func(t *testing.T) {
		content := "Serial;FinalStatus;Time\nSN-9;OK;07:00\n"

		result, err := Normalize(strings.NewReader(content))

		assert.NoError(t, err)
		assert.Equal(t, 1, result.ConformingCount)
		assert.Equal(t, "SN-9", result.Records[0].ID)
		assert.Equal(t, 7, result.Hourly[0].Hour)
	})

	t.Run("missing columns degrade to defaults", func(t *testing.T) {
		content := "FinalStatus\nOK\n\nNOK\n"

		result, err := Normalize(strings.NewReader(content))

		assert.NoError(t, err)
		assert.Equal(t, 1, result.ConformingCount)
		assert.Empty(t, result.Hourly)
		// Synthetic ids are assigned in row order when no serial exists.
		assert.Equal(t, "unit-1", result.Records[0].ID)
	})

	t.Run("comma separated exports are accepted", func(t *testing.T) {
		content := "Serial,FinalStatus,Time\nSN-1,Conforme,06:10\n"

		result, err := Normalize(strings.NewReader(content))

		assert.NoError(t, err)
		assert.Equal(t, 1, result.ConformingCount)
	})
}

func TestNormalize_Idempotent(t *testing.T) {
	content := createTestCSVContent([]CSVRow{
		rowWithStatus("Conforme"),
		rowWithStatus("NOK"),
		rowWithStatus("Incomplet"),
	})

	first, err1 := Normalize(strings.NewReader(content))
	second, err2 := Normalize(strings.NewReader(content))

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.Equal(t, first, second)
}

func TestNormalize_ParseError(t *testing.T) {
	t.Run("empty input fails on header", func(t *testing.T) {
		_, err := Normalize(strings.NewReader(""))

		var perr *models.ParseError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("structural corruption yields no partial result", func(t *testing.T) {
		content := csvHeader + "\nSN-1;Conforme\n\"broken\n"

		result, err := Normalize(strings.NewReader(content))

		var perr *models.ParseError
		assert.ErrorAs(t, err, &perr)
		assert.Nil(t, result)
	})
}

func TestNormalizeFile_MissingFile(t *testing.T) {
	_, err := NormalizeFile("does/not/exist.csv")

	var perr *models.ParseError
	assert.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Path, "exist.csv")
}
