package ingestion

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lineview/ftq-engine/internal/database"
	"github.com/lineview/ftq-engine/internal/models"
	"github.com/lineview/ftq-engine/pkg/checksum"
)

type Runner[T any] struct {
	Run T
}

// Worker defines the interface for the asynchronous parts of a batch
// run: dispatching jobs, parsing files in parallel and collecting
// errors. Each file is still processed as one synchronous unit; the
// pool only parallelizes across distinct files.
type Worker interface {
	WithChannels(channels *models.IngestionChannels) Worker
	WithWaitGroups(waitGroups *models.IngestionWaitGroups) Worker
	SetupJobDispatcherWorker(ctx context.Context, fileInfos []models.FileInfo, fileMap map[int]string) (Runner[func()], *sync.WaitGroup, error)
	SetupParserWorkers(ctx context.Context, numberOfWorkers int, process func(context.Context, models.FileProcessingJob) error) (Runner[func()], *sync.WaitGroup, error)
	SetupErrorWorker() (Runner[func(*models.FileErrorMap)], *sync.WaitGroup, error)
}

type AsyncWorker struct {
	dbManager  database.DBManager
	channels   *models.IngestionChannels
	waitGroups *models.IngestionWaitGroups
}

func NewAsyncWorker(dbManager database.DBManager) *AsyncWorker {
	return &AsyncWorker{dbManager: dbManager}
}

func (w *AsyncWorker) WithChannels(channels *models.IngestionChannels) Worker {
	w.channels = channels
	return w
}

func (w *AsyncWorker) WithWaitGroups(waitGroups *models.IngestionWaitGroups) Worker {
	w.waitGroups = waitGroups
	return w
}

// PreprocessAndDispatchJobs checks each discovered file against the
// store (checksum dedupe), registers a file record and hands the job to
// the parser pool. Already-processed files are skipped silently.
func (w *AsyncWorker) PreprocessAndDispatchJobs(ctx context.Context, fileInfos []models.FileInfo, fileMap map[int]string) {
	defer close(w.channels.Jobs)
	defer w.waitGroups.MainWg.Done()

	for _, fileInfo := range fileInfos {
		sum, err := checksum.FileChecksum(fileInfo.Path)
		if err != nil {
			log.Printf("ERROR: Failed to calculate checksum for %s: %v. Skipping file.", fileInfo.Path, err)
			continue
		}

		isProcessed, err := w.dbManager.IsFileAlreadyProcessed(ctx, sum)
		if err != nil {
			log.Printf("ERROR: Failed to check if file %s is already processed: %v. Skipping file.", fileInfo.Path, err)
			continue
		}
		if isProcessed {
			log.Printf("INFO: File %s (checksum: %s) has already been processed. Skipping.", fileInfo.Path, sum)
			continue
		}

		fileID, err := w.dbManager.InsertFileRecord(
			ctx,
			fileInfo.Path,
			time.Now().UTC(),
			database.FILE_STATUS_PROCESSING,
			sum,
			fileInfo.LineID,
			fileInfo.FileDate,
		)
		if err != nil {
			log.Printf("ERROR: Failed to insert file record for %s: %v. Skipping file.", fileInfo.Path, err)
			continue
		}

		fileMap[fileID] = fileInfo.Path

		log.Printf("Dispatching job for file: %s (FileID: %d, line: %s)", fileInfo.Path, fileID, fileInfo.LineID)
		w.channels.Jobs <- models.FileProcessingJob{
			FilePath: fileInfo.Path,
			FileID:   fileID,
			LineID:   fileInfo.LineID,
			FileDate: fileInfo.FileDate,
		}
	}
}

func (w *AsyncWorker) SetupJobDispatcherWorker(ctx context.Context, fileInfos []models.FileInfo, fileMap map[int]string) (Runner[func()], *sync.WaitGroup, error) {
	return Runner[func()]{
		Run: func() {
			w.waitGroups.MainWg.Add(1)
			go w.PreprocessAndDispatchJobs(ctx, fileInfos, fileMap)
		},
	}, w.waitGroups.MainWg, nil
}

// ParserWorker drains the jobs channel, running the full per-file
// pipeline for each job.
func (w *AsyncWorker) ParserWorker(ctx context.Context, process func(context.Context, models.FileProcessingJob) error) {
	defer w.waitGroups.ParserWg.Done()
	for job := range w.channels.Jobs {
		log.Printf("Parser worker started job for file %s (ID: %d)\n", job.FilePath, job.FileID)
		if err := process(ctx, job); err != nil {
			w.channels.Errors <- models.AppError{FileID: job.FileID, Message: "Failed to process file", Err: err}
		}
		log.Printf("Parser worker finished job for file %s (ID: %d)\n", job.FilePath, job.FileID)
	}
}

func (w *AsyncWorker) SetupParserWorkers(ctx context.Context, numberOfWorkers int, process func(context.Context, models.FileProcessingJob) error) (Runner[func()], *sync.WaitGroup, error) {
	return Runner[func()]{
		Run: func() {
			for i := 1; i <= numberOfWorkers; i++ {
				w.waitGroups.ParserWg.Add(1)
				go w.ParserWorker(ctx, process)
			}
		},
	}, w.waitGroups.ParserWg, nil
}

// ErrorWorker collects per-file errors for the final status update. The
// per-file cap keeps one malformed file from flooding memory.
func (w *AsyncWorker) ErrorWorker(fileErrorsMap *models.FileErrorMap) {
	defer w.waitGroups.MainWg.Done()
	for appErr := range w.channels.Errors {
		log.Printf("Caught error: %s\n", appErr.Error())
		if appErr.FileID != -1 && len(fileErrorsMap.Errors[appErr.FileID]) < 100 {
			fileErrorsMap.Mu.Lock()
			fileErrorsMap.Errors[appErr.FileID] = append(fileErrorsMap.Errors[appErr.FileID], appErr)
			fileErrorsMap.Mu.Unlock()
		} else if appErr.FileID != -1 {
			log.Printf("File %d has too many errors, skipping\n", appErr.FileID)
		}
	}
}

func (w *AsyncWorker) SetupErrorWorker() (Runner[func(*models.FileErrorMap)], *sync.WaitGroup, error) {
	return Runner[func(*models.FileErrorMap)]{
		Run: func(fileErrorsMap *models.FileErrorMap) {
			w.waitGroups.MainWg.Add(1)
			go w.ErrorWorker(fileErrorsMap)
		},
	}, w.waitGroups.MainWg, nil
}
