package ingestion

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lineview/ftq-engine/internal/database"
	"github.com/lineview/ftq-engine/internal/models"
)

// Processor defines the interface for file discovery and status updates.
type Processor interface {
	ScanForFiles(rootPath string) ([]models.FileInfo, error)
	UpdateFileStatus(ctx context.Context, fileErrorsMap *models.FileErrorMap, fileMap *models.FileMap) error
}

// FileProcessor discovers shift spreadsheets in the drop directory and
// records their processing outcome.
type FileProcessor struct {
	dbManager database.DBManager
}

func NewFileProcessor(dbManager database.DBManager) *FileProcessor {
	return &FileProcessor{dbManager: dbManager}
}

// ScanForFiles walks the drop directory and returns every spreadsheet
// with the line id and shift date read off the file name. Files whose
// name carries no date are not backfills: their file date is the wall
// clock at ingestion time.
func (fp *FileProcessor) ScanForFiles(rootPath string) ([]models.FileInfo, error) {
	var fileInfos []models.FileInfo
	log.Printf("Scanning for files in: %s", rootPath)

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
			log.Printf("WARN: Skipping %s: not a spreadsheet export", path)
			return nil
		}

		lineID, fileDate := parseFileName(filepath.Base(path))
		fileInfos = append(fileInfos, models.FileInfo{Path: path, LineID: lineID, FileDate: fileDate})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", rootPath, err)
	}

	log.Printf("Found %d files to process.", len(fileInfos))
	return fileInfos, nil
}

// parseFileName splits "line-3_2026-08-12.csv" into the line id and the
// shift date. Either part may be missing; a missing date leaves the file
// date zero so the caller substitutes the ingestion time.
func parseFileName(name string) (string, time.Time) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	lineID := base
	var fileDate time.Time

	if idx := strings.LastIndex(base, "_"); idx >= 0 {
		if parsed, err := time.Parse("2006-01-02", base[idx+1:]); err == nil {
			fileDate = parsed
			lineID = base[:idx]
		}
	}
	return lineID, fileDate
}

// UpdateFileStatus records the outcome per file once all workers are
// done: DONE, or DONE_WITH_ERRORS when any error was collected for it.
func (fp *FileProcessor) UpdateFileStatus(ctx context.Context, fileErrorsMap *models.FileErrorMap, fileMap *models.FileMap) error {
	for fileID := range *fileMap {
		appErrors := fileErrorsMap.Errors[fileID]
		status := database.FILE_STATUS_DONE
		if len(appErrors) > 0 {
			status = database.FILE_STATUS_DONE_WITH_ERRORS
		}

		if err := fp.dbManager.UpdateFileStatus(ctx, fileID, status, appErrors); err != nil {
			log.Printf("Failed to update status for fileID %d: %v\n", fileID, err)
		}
	}
	return nil
}
