package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/lineview/ftq-engine/internal/aggregation"
	"github.com/lineview/ftq-engine/internal/config"
	"github.com/lineview/ftq-engine/internal/database"
	"github.com/lineview/ftq-engine/internal/escalation"
	"github.com/lineview/ftq-engine/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer dbpool.Close()

	dbManager := database.NewPostgresDBManager(dbpool)
	if err := dbManager.CreateSchema(ctx); err != nil {
		log.Fatalf("Failed to setup database: %v", err)
	}

	aggregator := aggregation.New(dbManager)
	reports := escalation.NewReportService(dbManager)
	router := server.SetupRoutes(server.NewKPIService(aggregator, reports))

	log.Printf("Server starting on port %s", cfg.APIPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.APIPort), router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
