package database

import (
	"context"
	"errors"
)

var (
	ErrCounterNotFound   = errors.New("report counter not found")
	ErrCounterExists     = errors.New("report counter already exists")
	ErrDuplicateReportID = errors.New("report id already exists")
	ErrReportNotFound    = errors.New("report not found")
	ErrDuplicateImage    = errors.New("report already has an image")
)

// DatabaseService is the persistence boundary for reports. Every statement
// commits on its own; nothing spans multiple calls in a transaction.
type DatabaseService interface {
	CreateDatabase() error
	DoesDatabaseExist() bool
	Close() error

	// GetCounter returns the persisted next_id or ErrCounterNotFound.
	GetCounter(ctx context.Context) (int64, error)
	// CreateCounter inserts the singleton counter row, failing with
	// ErrCounterExists when it is already present.
	CreateCounter(ctx context.Context, nextID int64) error
	UpdateCounter(ctx context.Context, nextID int64) error

	// InsertReport fails with ErrDuplicateReportID when report.ReportID is taken.
	InsertReport(ctx context.Context, report *Report) error
	// GetMaxReportID returns 0 when no report is stored.
	GetMaxReportID(ctx context.Context) (int64, error)
	GetReport(ctx context.Context, reportID int64) (*Report, error)

	// InsertImage fails with ErrDuplicateImage when the report already owns one.
	InsertImage(ctx context.Context, image *Image) error
	GetImagesByReportID(ctx context.Context, reportID int64) ([]*Image, error)
}
