package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lineview/ftq-engine/internal/aggregation"
	"github.com/lineview/ftq-engine/internal/escalation"
	"github.com/lineview/ftq-engine/internal/models"
)

// KPIService adapts the in-process aggregation and incident operations
// to HTTP. It holds no state of its own.
type KPIService struct {
	Aggregator *aggregation.Aggregator
	Reports    *escalation.ReportService
}

func NewKPIService(aggregator *aggregation.Aggregator, reports *escalation.ReportService) *KPIService {
	return &KPIService{Aggregator: aggregator, Reports: reports}
}

// GetLineKPIs serves the single-line rolling-hours series.
func (h *KPIService) GetLineKPIs(w http.ResponseWriter, r *http.Request) {
	lineID := mux.Vars(r)["line"]

	rng, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	series, err := h.Aggregator.Aggregate(r.Context(), rng, lineID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// GetPivotKPIs serves the multi-line day-pivot series.
func (h *KPIService) GetPivotKPIs(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	series, err := h.Aggregator.Aggregate(r.Context(), rng, "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// GetIncident returns the full report chain for a Level-1 id.
func (h *KPIService) GetIncident(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid incident id", http.StatusBadRequest)
		return
	}

	chain, err := h.Reports.Chain(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chain)
}

// AdvanceIncidentLevel2 opens the root-cause analysis for an incident.
func (h *KPIService) AdvanceIncidentLevel2(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid incident id", http.StatusBadRequest)
		return
	}

	var input escalation.Level2Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	report, err := h.Reports.AdvanceToLevel2(r.Context(), id, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// AdvanceIncidentLevel3 opens the corrective-action closure. The path id
// is still the Level-1 id; the chain is resolved to find the analysis to
// advance.
func (h *KPIService) AdvanceIncidentLevel3(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid incident id", http.StatusBadRequest)
		return
	}

	var input escalation.Level3Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	chain, err := h.Reports.Chain(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if chain.Level2 == nil {
		http.Error(w, "Incident has no root-cause analysis yet", http.StatusConflict)
		return
	}

	report, err := h.Reports.AdvanceToLevel3(r.Context(), chain.Level2.ID, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// CloseIncident marks the incident terminal at its current level.
func (h *KPIService) CloseIncident(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid incident id", http.StatusBadRequest)
		return
	}

	if err := h.Reports.Close(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *KPIService) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseRange reads start/end query parameters as YYYY-MM-DD dates.
// Validation itself belongs to the aggregator; this only converts.
func parseRange(r *http.Request) (aggregation.Range, error) {
	var rng aggregation.Range

	if startStr := r.URL.Query().Get("start"); startStr != "" {
		start, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return rng, &models.InvalidRangeError{Reason: "invalid 'start' format, use YYYY-MM-DD"}
		}
		rng.Start = start
	}
	if endStr := r.URL.Query().Get("end"); endStr != "" {
		end, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return rng, &models.InvalidRangeError{Reason: "invalid 'end' format, use YYYY-MM-DD"}
		}
		rng.End = end
	}
	return rng, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeError maps the core error taxonomy onto HTTP statuses: bad
// ranges are the caller's fault, store failures are retryable, anything
// else is internal.
func writeError(w http.ResponseWriter, err error) {
	var rangeErr *models.InvalidRangeError
	if errors.As(err, &rangeErr) {
		http.Error(w, "Invalid date range", http.StatusBadRequest)
		return
	}
	var storeErr *models.StoreUnavailableError
	if errors.As(err, &storeErr) {
		http.Error(w, "Storage temporarily unavailable, retry later", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
