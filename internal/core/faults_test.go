package core

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jo-hoe/issuereport/internal/backend/database"
	"github.com/jo-hoe/issuereport/internal/backend/storage"
)

// faultyDatabase wraps a real DatabaseService and injects failures.
type faultyDatabase struct {
	database.DatabaseService

	mu               sync.Mutex
	getCounterErr    error
	createCounterErr error
	updateCounterErr error
	forcedConflicts  int
	insertErr        error
	maxErr           error
	insertImageErr   error
	insertAttempts   []int64
}

func (f *faultyDatabase) GetCounter(ctx context.Context) (int64, error) {
	if f.getCounterErr != nil {
		return 0, f.getCounterErr
	}
	return f.DatabaseService.GetCounter(ctx)
}

func (f *faultyDatabase) CreateCounter(ctx context.Context, nextID int64) error {
	if f.createCounterErr != nil {
		return f.createCounterErr
	}
	return f.DatabaseService.CreateCounter(ctx, nextID)
}

func (f *faultyDatabase) UpdateCounter(ctx context.Context, nextID int64) error {
	if f.updateCounterErr != nil {
		return f.updateCounterErr
	}
	return f.DatabaseService.UpdateCounter(ctx, nextID)
}

func (f *faultyDatabase) InsertReport(ctx context.Context, report *database.Report) error {
	f.mu.Lock()
	f.insertAttempts = append(f.insertAttempts, report.ReportID)
	conflict := f.forcedConflicts > 0
	if conflict {
		f.forcedConflicts--
	}
	f.mu.Unlock()

	if conflict {
		return fmt.Errorf("%w: %d", database.ErrDuplicateReportID, report.ReportID)
	}
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.DatabaseService.InsertReport(ctx, report)
}

func (f *faultyDatabase) GetMaxReportID(ctx context.Context) (int64, error) {
	if f.maxErr != nil {
		return 0, f.maxErr
	}
	return f.DatabaseService.GetMaxReportID(ctx)
}

func (f *faultyDatabase) InsertImage(ctx context.Context, image *database.Image) error {
	if f.insertImageErr != nil {
		return f.insertImageErr
	}
	return f.DatabaseService.InsertImage(ctx, image)
}

// failingStorage rejects every upload.
type failingStorage struct {
	storage.ObjectStorage
	err error
}

func (s *failingStorage) Upload(ctx context.Context, reportID int64, filename string, content []byte) (string, error) {
	return "", s.err
}

func newTestDatabase(t *testing.T) database.DatabaseService {
	t.Helper()
	ds, err := database.NewDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func newTestStorage(t *testing.T) storage.ObjectStorage {
	t.Helper()
	store, err := storage.NewStorage("sqlite", ":memory:", "http://reports.test")
	if err != nil {
		t.Fatalf("NewStorage error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
