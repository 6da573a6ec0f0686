package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/lineview/ftq-engine/internal/config"
	"github.com/lineview/ftq-engine/internal/database"
	"github.com/lineview/ftq-engine/internal/escalation"
	"github.com/lineview/ftq-engine/internal/ingestion"
	"github.com/lineview/ftq-engine/internal/notify"
)

func setup(ctx context.Context) (string, *config.Config, *ingestion.IngestionService, func(), error) {
	if len(os.Args) < 2 {
		return "", nil, nil, nil, fmt.Errorf("please provide the drop directory path as a command-line argument")
	}
	filesPath := os.Args[1]

	cfg, err := config.New()
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	dbManager := database.NewPostgresDBManager(dbpool)
	dbManager.PersistUnitRecords = cfg.PersistUnitRecords
	if err := dbManager.CreateSchema(ctx); err != nil {
		dbpool.Close()
		return "", nil, nil, nil, fmt.Errorf("failed to setup database: %w", err)
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.SlackToken != "" && cfg.SlackChannel != "" {
		notifier = notify.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel)
		log.Printf("Escalation alerts will be posted to Slack channel %s", cfg.SlackChannel)
	}

	handler := ingestion.NewIngestionService(
		dbManager,
		escalation.NewReportService(dbManager),
		notifier,
		ingestion.Setup{},
		ingestion.NewAsyncWorker(dbManager),
		ingestion.NewFileProcessor(dbManager),
		*cfg,
	)

	cleanupFunc := func() {
		dbpool.Close()
	}

	return filesPath, cfg, handler, cleanupFunc, nil
}

// watch re-runs the batch on a cron schedule until the process is
// stopped. Checksum dedupe makes repeated scans of the same directory
// cheap.
func watch(ctx context.Context, schedule string, filesPath string, handler *ingestion.IngestionService) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid watch_schedule '%s': %w", schedule, err)
	}

	for {
		now := time.Now()
		next := sched.Next(now)
		log.Printf("Next scan at %s (in %s)", next.Format("Mon Jan 2 15:04"), next.Sub(now).Round(time.Minute))
		time.Sleep(next.Sub(now))

		if err := handler.Execute(ctx, filesPath); err != nil {
			log.Printf("Scheduled ingestion failed: %v", err)
		}
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}
	startTime := time.Now()

	ctx := context.Background()
	filesPath, cfg, handler, cleanupFunc, err := setup(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanupFunc()

	log.Println("Starting ingestion batch...")
	if err := handler.Execute(ctx, filesPath); err != nil {
		log.Fatalf("Error during ingestion: %v\n", err)
	}
	log.Printf("Execution time: %s\n", time.Since(startTime))

	if cfg.WatchSchedule != "" {
		if err := watch(ctx, cfg.WatchSchedule, filesPath, handler); err != nil {
			log.Fatal(err)
		}
	}
}
