package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jo-hoe/issuereport/internal/backend/database"
	"github.com/jo-hoe/issuereport/internal/backend/storage"
)

type ReportInput struct {
	Name                string
	ContactDetails      string
	IssueCategory       string
	Description         string
	ManualLocationInput string
}

// Attachment is a submitted file. Content is only read when the writer
// actually considers the attachment.
type Attachment struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// BytesAttachment wraps in-memory content as an Attachment.
func BytesAttachment(filename string, content []byte) Attachment {
	return Attachment{
		Filename: filename,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func (a Attachment) read() ([]byte, error) {
	if a.Open == nil {
		return nil, nil
	}
	reader, err := a.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()
	return io.ReadAll(reader)
}

type CreatedReport struct {
	ReportID   int64
	Allocation Allocation
	// Recovered is set when the allocated id collided and the report was
	// stored under a corrected id.
	Recovered bool
	ImageURL  string
}

type ReportWriter struct {
	databaseService database.DatabaseService
	objectStorage   storage.ObjectStorage
	allocator       *SequenceAllocator
	now             func() time.Time
	newImageID      func() string
}

func NewReportWriter(databaseService database.DatabaseService, objectStorage storage.ObjectStorage, allocator *SequenceAllocator) *ReportWriter {
	return &ReportWriter{
		databaseService: databaseService,
		objectStorage:   objectStorage,
		allocator:       allocator,
		now:             time.Now,
		newImageID:      uuid.NewString,
	}
}

// CreateReport stores a new report and at most one image for it.
//
// If the image upload or the image row fails, the report row stays
// committed and the error is returned.
func (w *ReportWriter) CreateReport(ctx context.Context, input ReportInput, attachments []Attachment) (*CreatedReport, error) {
	allocation := w.allocator.AllocateNext(ctx)
	if allocation.Degraded() {
		slog.Warn("report id allocated in degraded mode", "id", allocation.ID, "outcome", allocation.Outcome.String())
	}

	today := database.FormatDate(w.now())
	report := &database.Report{
		ReportID:            allocation.ID,
		Name:                input.Name,
		ContactDetails:      input.ContactDetails,
		IssueCategory:       input.IssueCategory,
		Description:         input.Description,
		ManualLocationInput: input.ManualLocationInput,
		Status:              database.StatusSubmitted,
		SubmittedAt:         today,
		UpdatedAt:           today,
	}

	recovered, err := w.insertReport(ctx, report)
	if err != nil {
		return nil, err
	}
	created := &CreatedReport{
		ReportID:   report.ReportID,
		Allocation: allocation,
		Recovered:  recovered,
	}

	imageURL, err := w.storeFirstImage(ctx, report.ReportID, today, attachments)
	if err != nil {
		return nil, fmt.Errorf("report %d stored but its image was not: %w", report.ReportID, err)
	}
	created.ImageURL = imageURL

	slog.Info("report created", "report_id", created.ReportID, "allocation", allocation.Outcome.String(),
		"recovered", recovered, "has_image", imageURL != "")
	return created, nil
}

// insertReport inserts the row and, on an id conflict, retries exactly once
// with max(report_id)+1. It reports whether the retry path was taken.
func (w *ReportWriter) insertReport(ctx context.Context, report *database.Report) (bool, error) {
	err := w.databaseService.InsertReport(ctx, report)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, database.ErrDuplicateReportID) {
		return false, err
	}

	conflictingID := report.ReportID
	maxID, err := w.databaseService.GetMaxReportID(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to look up max report id after conflict on %d: %w", conflictingID, err)
	}
	report.ReportID = maxID + 1
	bump := w.allocator.BumpToAtLeast(ctx, report.ReportID+1)
	slog.Warn("report id conflict, retrying with corrected id",
		"conflicting_id", conflictingID, "retry_id", report.ReportID, "counter_bump", bump.String())

	if err := w.databaseService.InsertReport(ctx, report); err != nil {
		return false, fmt.Errorf("report insert retry with id %d failed: %w", report.ReportID, err)
	}
	return true, nil
}

// storeFirstImage uploads the first attachment with a filename and content.
// Later attachments are ignored since a report owns at most one image.
func (w *ReportWriter) storeFirstImage(ctx context.Context, reportID int64, today string, attachments []Attachment) (string, error) {
	for _, attachment := range attachments {
		// Names that cannot become an object path are skipped like unnamed files.
		if _, err := storage.ObjectPath(reportID, attachment.Filename); err != nil {
			continue
		}
		content, err := attachment.read()
		if err != nil {
			return "", fmt.Errorf("failed to read attachment %s: %w", attachment.Filename, err)
		}
		if len(content) == 0 {
			continue
		}

		imageURL, err := w.objectStorage.Upload(ctx, reportID, attachment.Filename, content)
		if err != nil {
			return "", err
		}
		image := &database.Image{
			ImageID:    w.newImageID(),
			ReportID:   reportID,
			ImageURL:   imageURL,
			UploadedAt: today,
		}
		if err := w.databaseService.InsertImage(ctx, image); err != nil {
			return "", fmt.Errorf("image insert failed: %w", err)
		}
		return imageURL, nil
	}
	return "", nil
}
