package ingestion

import (
	"sync"

	"github.com/lineview/ftq-engine/internal/models"
)

type ISetup interface {
	build() (SetupReturn, error)
}

// SetupReturn bundles the shared structures of one batch run.
type SetupReturn struct {
	Channels      *models.IngestionChannels
	WaitGroups    *models.IngestionWaitGroups
	FileMap       *models.FileMap
	FileErrorsMap *models.FileErrorMap
}

func (s *SetupReturn) GetValues() (*models.IngestionChannels, *models.IngestionWaitGroups, *models.FileMap, *models.FileErrorMap) {
	return s.Channels, s.WaitGroups, s.FileMap, s.FileErrorsMap
}

type Setup struct{}

// Instantiate the channels and shared maps used by one concurrent batch
// run. Kept behind an interface so tests can inject their own.
func (h Setup) build() (SetupReturn, error) {
	channels := models.IngestionChannels{
		Jobs:   make(chan models.FileProcessingJob, 100),
		Errors: make(chan models.AppError, 100),
	}

	var parserWg, mainWg sync.WaitGroup
	fileMap := make(models.FileMap)
	fileErrorsMap := models.FileErrorMap{Errors: make(map[int][]models.AppError)}
	return SetupReturn{
		Channels:      &channels,
		WaitGroups:    &models.IngestionWaitGroups{ParserWg: &parserWg, MainWg: &mainWg},
		FileMap:       &fileMap,
		FileErrorsMap: &fileErrorsMap,
	}, nil
}
