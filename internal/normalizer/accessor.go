package normalizer

import "strings"

// Logical fields resolved from heterogeneous export headers. Each field
// has an ordered fallback list; the first header that matches wins and
// the resolution is done once per file, not per row.
const (
	FieldSerial     = "serial"
	FieldStatus     = "status"
	FieldReportType = "report_type"
	FieldTime       = "time"
	FieldQuantity   = "quantity"
	FieldProductRef = "product_ref"
	FieldCoilNumber = "coil_number"
)

var fieldFallbacks = map[string][]string{
	FieldSerial:     {"Numéro de série", "Serial Number", "Serial"},
	FieldStatus:     {"Statut FTQ", "FinalStatus", "Statut"},
	FieldReportType: {"Type de rapport", "ReportType"},
	FieldTime:       {"Heure", "Time"},
	FieldQuantity:   {"Quantité", "Quantity"},
	FieldProductRef: {"Référence produit", "ProductRef", "Produit"},
	FieldCoilNumber: {"N° Bobine", "CoilNumber", "Bobine"},
}

// Fixed boolean defect slots, each with its own fallback header.
var defectFallbacks = [5][]string{
	{"Défaut 1", "Defect1"},
	{"Défaut 2", "Defect2"},
	{"Défaut 3", "Defect3"},
	{"Défaut 4", "Defect4"},
	{"Défaut 5", "Defect5"},
}

// Secondary quality-check columns. A cell containing "nok" in any of
// these raises defect1 regardless of which check failed, so distinct
// check failures collapse onto a single slot.
var qualityCheckFallbacks = [][]string{
	{"Allongement", "Elongation"},
	{"Aspect"},
	{"Couleur", "Color"},
}

// RowAccessor maps logical fields to column indexes for one file's
// header. Missing columns resolve to empty strings, never errors.
type RowAccessor struct {
	fields        map[string]int
	defectCols    [5]int
	qualityChecks []int
}

// NewRowAccessor resolves every logical field against the header using
// its fallback list. Header matching is case-insensitive and ignores
// surrounding whitespace.
func NewRowAccessor(header []string) *RowAccessor {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	resolve := func(candidates []string) int {
		for _, candidate := range candidates {
			if col, ok := index[strings.ToLower(candidate)]; ok {
				return col
			}
		}
		return -1
	}

	acc := &RowAccessor{fields: make(map[string]int, len(fieldFallbacks))}
	for field, candidates := range fieldFallbacks {
		acc.fields[field] = resolve(candidates)
	}
	for i, candidates := range defectFallbacks {
		acc.defectCols[i] = resolve(candidates)
	}
	for _, candidates := range qualityCheckFallbacks {
		if col := resolve(candidates); col >= 0 {
			acc.qualityChecks = append(acc.qualityChecks, col)
		}
	}
	return acc
}

// Get returns the cell for a logical field, or "" when the column is
// absent or the row is too short.
func (a *RowAccessor) Get(row []string, field string) string {
	col, ok := a.fields[field]
	if !ok || col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// DefectCell returns the cell of fixed defect slot n (1-based), or "".
func (a *RowAccessor) DefectCell(row []string, n int) string {
	if n < 1 || n > 5 {
		return ""
	}
	col := a.defectCols[n-1]
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// QualityCheckCells returns the cells of every resolved quality-check
// column present in the row.
func (a *RowAccessor) QualityCheckCells(row []string) []string {
	var cells []string
	for _, col := range a.qualityChecks {
		if col < len(row) {
			cells = append(cells, strings.TrimSpace(row[col]))
		}
	}
	return cells
}
