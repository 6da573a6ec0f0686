package normalizer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lineview/ftq-engine/internal/models"
)

// Result is everything the normalizer extracts from one file. It is
// produced whole or not at all: a parse failure never returns a partial
// Result.
type Result struct {
	ConformingCount    int
	NonConformingCount int
	IncompleteCount    int
	Records            []models.UnitRecord
	Hourly             []models.HourlyPartial
	TargetProduction   int
}

// Total returns the number of normalized units.
func (r *Result) Total() int {
	return r.ConformingCount + r.NonConformingCount + r.IncompleteCount
}

var leadingHour = regexp.MustCompile(`^(\d{1,2}):`)

// NormalizeFile opens and normalizes one spreadsheet export.
func NormalizeFile(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &models.ParseError{Path: path, Err: err}
	}
	defer file.Close()

	result, err := Normalize(file)
	if err != nil {
		if perr, ok := err.(*models.ParseError); ok {
			perr.Path = path
			return nil, perr
		}
		return nil, &models.ParseError{Path: path, Err: err}
	}
	return result, nil
}

// Normalize turns a raw table into canonical unit records plus per-hour
// partial sums. Column names vary across source-system exports, so every
// logical field is resolved through an ordered fallback list; a missing
// column degrades to empty/zero rather than failing the file.
func Normalize(r io.Reader) (*Result, error) {
	buffered := bufio.NewReader(r)
	delim, err := sniffDelimiter(buffered)
	if err != nil {
		return nil, &models.ParseError{Err: err}
	}

	reader := csv.NewReader(buffered)
	reader.Comma = delim
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, &models.ParseError{Err: fmt.Errorf("failed to read header row: %w", err)}
	}
	accessor := NewRowAccessor(header)

	result := &Result{}
	hourly := make(map[int]*models.HourlyPartial)
	quantitySum := 0
	rowIndex := 0

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Structural corruption voids the whole file: the counts
			// already accumulated cannot be trusted.
			return nil, &models.ParseError{Err: fmt.Errorf("failed to read row %d: %w", rowIndex+2, err)}
		}
		rowIndex++

		record := normalizeRow(accessor, row, rowIndex)

		switch record.Status {
		case models.StatusConforming:
			result.ConformingCount++
		case models.StatusIncomplete:
			result.IncompleteCount++
		default:
			result.NonConformingCount++
		}

		// Rows without a parseable hour still count in the file totals,
		// they are only excluded from the hourly partials.
		if hour, ok := parseHour(accessor.Get(row, FieldTime)); ok {
			partial, exists := hourly[hour]
			if !exists {
				partial = &models.HourlyPartial{Hour: hour}
				hourly[hour] = partial
			}
			partial.TotalCount++
			if record.Status == models.StatusConforming {
				partial.ConformingCount++
			} else if record.Status == models.StatusNonConforming {
				partial.NonConformingCount++
			}
		}

		if qty, err := strconv.Atoi(accessor.Get(row, FieldQuantity)); err == nil && qty > 0 {
			quantitySum += qty
		}

		result.Records = append(result.Records, record)
	}

	result.Hourly = sortedPartials(hourly)
	result.TargetProduction = targetProduction(quantitySum, result.Total())
	return result, nil
}

// normalizeRow classifies one row. Status is decided first and exactly
// once; the defect flags are computed afterwards and never feed back into
// the status.
func normalizeRow(accessor *RowAccessor, row []string, rowIndex int) models.UnitRecord {
	id := accessor.Get(row, FieldSerial)
	if id == "" {
		id = fmt.Sprintf("unit-%d", rowIndex)
	}

	record := models.UnitRecord{
		ID:           id,
		Status:       classifyStatus(accessor.Get(row, FieldStatus)),
		ProcessStage: classifyStage(accessor.Get(row, FieldReportType)),
		Defects:      make(map[string]bool),
		ProductRef:   accessor.Get(row, FieldProductRef),
		CoilNumber:   accessor.Get(row, FieldCoilNumber),
	}

	for i := 1; i <= 5; i++ {
		if isFlagSet(accessor.DefectCell(row, i)) {
			record.Defects[fmt.Sprintf("defect%d", i)] = true
		}
	}
	// A failed secondary quality check (elongation, aspect, color...)
	// always lands on defect1, whichever check it was. Per-defect
	// granularity only exists for the five fixed columns.
	for _, cell := range accessor.QualityCheckCells(row) {
		if strings.Contains(strings.ToLower(cell), "nok") {
			record.Defects["defect1"] = true
			break
		}
	}

	return record
}

// classifyStatus maps free-text status cells onto the three outcomes.
// When a cell matches both the conforming and incomplete substrings,
// conforming wins; this precedence is pinned by a regression test and
// must not be reordered.
func classifyStatus(raw string) models.UnitStatus {
	text := strings.ToLower(strings.TrimSpace(raw))
	if strings.Contains(text, "conforme") || text == "ok" {
		return models.StatusConforming
	}
	if strings.Contains(text, "incomplet") {
		return models.StatusIncomplete
	}
	return models.StatusNonConforming
}

// classifyStage infers the process stage from the free-text report type.
// "après réglage" is checked before "réglage" so the longer phrase is not
// swallowed by the shorter one.
func classifyStage(raw string) models.ProcessStage {
	text := strings.ToLower(raw)
	switch {
	case strings.Contains(text, "production"):
		return models.StageProduction
	case strings.Contains(text, "après réglage") || strings.Contains(text, "after setup"):
		return models.StageAfterSetup
	case strings.Contains(text, "réglage") || strings.Contains(text, "setup"):
		return models.StageSetup
	default:
		return models.StageAfterSetup
	}
}

func isFlagSet(cell string) bool {
	switch strings.ToLower(cell) {
	case "1", "x", "true", "oui", "yes":
		return true
	}
	return false
}

// parseHour extracts the hour from a leading "HH:" pattern.
func parseHour(cell string) (int, bool) {
	match := leadingHour.FindStringSubmatch(cell)
	if match == nil {
		return 0, false
	}
	hour, err := strconv.Atoi(match[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

// targetProduction prefers the summed quantity column; an absent or
// all-zero column falls back to max(100, ceil(total*1.2)).
func targetProduction(quantitySum, totalUnits int) int {
	if quantitySum > 0 {
		return quantitySum
	}
	fallback := int(math.Ceil(float64(totalUnits) * 1.2))
	if fallback < 100 {
		fallback = 100
	}
	return fallback
}

func sortedPartials(hourly map[int]*models.HourlyPartial) []models.HourlyPartial {
	partials := make([]models.HourlyPartial, 0, len(hourly))
	for _, partial := range hourly {
		partials = append(partials, *partial)
	}
	sort.Slice(partials, func(i, j int) bool { return partials[i].Hour < partials[j].Hour })
	return partials
}

// sniffDelimiter peeks at the header line and picks ';' (the usual export
// format) unless the line only uses ','.
func sniffDelimiter(r *bufio.Reader) (rune, error) {
	peeked, err := r.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return 0, fmt.Errorf("failed to peek header: %w", err)
	}
	line := string(peeked)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if !strings.Contains(line, ";") && strings.Contains(line, ",") {
		return ',', nil
	}
	return ';', nil
}
