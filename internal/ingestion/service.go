package ingestion

import (
	"context"
	"log"

	"github.com/lineview/ftq-engine/internal/config"
	"github.com/lineview/ftq-engine/internal/database"
	"github.com/lineview/ftq-engine/internal/escalation"
	"github.com/lineview/ftq-engine/internal/notify"
)

// IngestionService orchestrates one batch run over the drop directory:
// discovery, dedupe, the per-file pipeline across a parser pool, error
// collection and the final per-file status update.
type IngestionService struct {
	dbManager     database.DBManager
	reports       *escalation.ReportService
	notifier      notify.Notifier
	setupService  ISetup
	asyncWorker   Worker
	fileProcessor Processor
	config        config.Config
}

func NewIngestionService(
	dbManager database.DBManager,
	reports *escalation.ReportService,
	notifier notify.Notifier,
	setupService ISetup,
	worker Worker,
	processor Processor,
	cfg config.Config,
) *IngestionService {
	return &IngestionService{
		dbManager:     dbManager,
		reports:       reports,
		notifier:      notifier,
		setupService:  setupService,
		asyncWorker:   worker,
		fileProcessor: processor,
		config:        cfg,
	}
}

// Execute runs one full batch over filesPath.
func (h *IngestionService) Execute(ctx context.Context, filesPath string) error {
	// Step 0: Set up the shared channels and maps for this run.
	environmentConfig, err := h.setupService.build()
	if err != nil {
		return err
	}
	channels, waitGroups, fileMap, fileErrorsMap := environmentConfig.GetValues()

	// Step 1: Discover the spreadsheets to process.
	fileInfos, err := h.fileProcessor.ScanForFiles(filesPath)
	if err != nil {
		log.Printf("Failed to scan files: %v", err)
		return err
	}

	// Step 2: Wire the worker pool. Must happen before any Run call.
	h.asyncWorker.WithChannels(channels).WithWaitGroups(waitGroups)

	// Step 3: Dispatch jobs: checksum dedupe, file record registration,
	// then one job per new file.
	dispatcherRunner, _, err := h.asyncWorker.SetupJobDispatcherWorker(ctx, fileInfos, *fileMap)
	if err != nil {
		return err
	}
	dispatcherRunner.Run()

	// Step 4: Start the error collector (shares MainWg with the
	// dispatcher).
	errorRunner, mainWaitGroup, err := h.asyncWorker.SetupErrorWorker()
	if err != nil {
		return err
	}
	errorRunner.Run(fileErrorsMap)

	// Step 5: Start the parser workers; each job runs the synchronous
	// normalize -> KPI -> persist -> classify pipeline.
	parserRunner, parserWaitGroup, err := h.asyncWorker.SetupParserWorkers(ctx, h.config.NumParserWorkers, h.ProcessFile)
	if err != nil {
		return err
	}
	parserRunner.Run()

	// Step 6: Wait for the pipeline to drain, closing channels in
	// dependency order.
	log.Println("Waiting for parser workers to finish...")
	parserWaitGroup.Wait()

	close(channels.Errors)

	log.Println("Waiting for error worker to finish...")
	mainWaitGroup.Wait()

	// Step 7: Record the outcome of every file in this run.
	h.fileProcessor.UpdateFileStatus(ctx, fileErrorsMap, fileMap)

	log.Println("Ingestion batch finished.")
	return nil
}
