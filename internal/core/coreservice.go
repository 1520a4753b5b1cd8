package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/issuereport/internal/backend/database"
	"github.com/jo-hoe/issuereport/internal/backend/storage"
)

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	objectStorage   storage.ObjectStorage
	allocator       *SequenceAllocator
	writer          *ReportWriter
}

// ReportDetails is a stored report together with its image reference, if any.
type ReportDetails struct {
	Report *database.Report `json:"report"`
	Image  *database.Image  `json:"image,omitempty"`
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}
	objectStorage, err := storage.NewStorage(config.Storage.Type, config.Storage.Location(), config.PublicBaseURL)
	if err != nil {
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return NewCoreServiceWith(config, databaseService, objectStorage), nil
}

// NewCoreServiceWith builds the service around already constructed clients.
func NewCoreServiceWith(config *ServiceConfig, databaseService database.DatabaseService, objectStorage storage.ObjectStorage) *CoreService {
	allocator := NewSequenceAllocator(databaseService)
	return &CoreService{
		config:          config,
		databaseService: databaseService,
		objectStorage:   objectStorage,
		allocator:       allocator,
		writer:          NewReportWriter(databaseService, objectStorage, allocator),
	}
}

func (service *CoreService) SubmitReport(ctx context.Context, input ReportInput, attachments []Attachment) (*CreatedReport, error) {
	return service.writer.CreateReport(ctx, input, attachments)
}

func (service *CoreService) GetReportDetails(ctx context.Context, reportID int64) (*ReportDetails, error) {
	report, err := service.databaseService.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	images, err := service.databaseService.GetImagesByReportID(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to load image of report %d: %w", reportID, err)
	}
	details := &ReportDetails{Report: report}
	if len(images) > 0 {
		details.Image = images[0]
	}
	return details, nil
}

func (service *CoreService) GetObject(ctx context.Context, objectPath string) (*storage.Object, error) {
	return service.objectStorage.Download(ctx, objectPath)
}

func (service *CoreService) Close() error {
	return errors.Join(service.objectStorage.Close(), service.databaseService.Close())
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}
