package server

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(kpiHandler *KPIService) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", kpiHandler.Healthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/kpis", kpiHandler.GetPivotKPIs).Methods(http.MethodGet)
	router.HandleFunc("/lines/{line}/kpis", kpiHandler.GetLineKPIs).Methods(http.MethodGet)

	router.HandleFunc("/incidents/{id}", kpiHandler.GetIncident).Methods(http.MethodGet)
	router.HandleFunc("/incidents/{id}/level2", kpiHandler.AdvanceIncidentLevel2).Methods(http.MethodPost)
	router.HandleFunc("/incidents/{id}/level3", kpiHandler.AdvanceIncidentLevel3).Methods(http.MethodPost)
	router.HandleFunc("/incidents/{id}/close", kpiHandler.CloseIncident).Methods(http.MethodPost)

	return handlers.CombinedLoggingHandler(os.Stdout, router)
}
