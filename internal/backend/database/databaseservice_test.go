package database

import (
	"context"
	"errors"
	"testing"
)

func sampleReport(id int64) *Report {
	return &Report{
		ReportID:            id,
		Name:                "Jane Doe",
		ContactDetails:      "jane@example.com",
		IssueCategory:       "pothole",
		Description:         "Deep pothole near the bus stop",
		ManualLocationInput: "Main St 12",
		Status:              StatusSubmitted,
		SubmittedAt:         "2026-10-16",
		UpdatedAt:           "2026-10-16",
	}
}

// runDatabaseContract exercises the behavior every DatabaseService must share.
func runDatabaseContract(t *testing.T, newDB func(t *testing.T) DatabaseService) {
	t.Run("counter lifecycle", func(t *testing.T) {
		ds := newDB(t)
		ctx := context.Background()

		if _, err := ds.GetCounter(ctx); !errors.Is(err, ErrCounterNotFound) {
			t.Fatalf("expected ErrCounterNotFound on empty store, got %v", err)
		}
		if err := ds.UpdateCounter(ctx, 4); !errors.Is(err, ErrCounterNotFound) {
			t.Fatalf("expected ErrCounterNotFound when updating missing counter, got %v", err)
		}
		if err := ds.CreateCounter(ctx, 2); err != nil {
			t.Fatalf("CreateCounter error: %v", err)
		}
		if err := ds.CreateCounter(ctx, 9); !errors.Is(err, ErrCounterExists) {
			t.Fatalf("expected ErrCounterExists on second create, got %v", err)
		}
		if err := ds.UpdateCounter(ctx, 3); err != nil {
			t.Fatalf("UpdateCounter error: %v", err)
		}
		got, err := ds.GetCounter(ctx)
		if err != nil {
			t.Fatalf("GetCounter error: %v", err)
		}
		if got != 3 {
			t.Fatalf("expected counter 3, got %d", got)
		}
	})

	t.Run("report insert conflict and max", func(t *testing.T) {
		ds := newDB(t)
		ctx := context.Background()

		maxID, err := ds.GetMaxReportID(ctx)
		if err != nil {
			t.Fatalf("GetMaxReportID on empty store error: %v", err)
		}
		if maxID != 0 {
			t.Fatalf("expected max 0 on empty store, got %d", maxID)
		}

		for _, id := range []int64{3, 12, 7} {
			if err := ds.InsertReport(ctx, sampleReport(id)); err != nil {
				t.Fatalf("InsertReport(%d) error: %v", id, err)
			}
		}
		err = ds.InsertReport(ctx, sampleReport(7))
		if !errors.Is(err, ErrDuplicateReportID) {
			t.Fatalf("expected ErrDuplicateReportID, got %v", err)
		}

		maxID, err = ds.GetMaxReportID(ctx)
		if err != nil {
			t.Fatalf("GetMaxReportID error: %v", err)
		}
		if maxID != 12 {
			t.Fatalf("expected max 12, got %d", maxID)
		}
	})

	t.Run("report round trip", func(t *testing.T) {
		ds := newDB(t)
		ctx := context.Background()

		want := sampleReport(5)
		want.ContactDetails = ""
		if err := ds.InsertReport(ctx, want); err != nil {
			t.Fatalf("InsertReport error: %v", err)
		}
		got, err := ds.GetReport(ctx, 5)
		if err != nil {
			t.Fatalf("GetReport error: %v", err)
		}
		if *got != *want {
			t.Fatalf("report mismatch:\n got  %+v\n want %+v", *got, *want)
		}

		if _, err := ds.GetReport(ctx, 99); !errors.Is(err, ErrReportNotFound) {
			t.Fatalf("expected ErrReportNotFound, got %v", err)
		}
	})

	t.Run("one image per report", func(t *testing.T) {
		ds := newDB(t)
		ctx := context.Background()

		if err := ds.InsertReport(ctx, sampleReport(1)); err != nil {
			t.Fatalf("InsertReport error: %v", err)
		}
		images, err := ds.GetImagesByReportID(ctx, 1)
		if err != nil {
			t.Fatalf("GetImagesByReportID error: %v", err)
		}
		if len(images) != 0 {
			t.Fatalf("expected no images, got %d", len(images))
		}

		first := &Image{ImageID: "img-1", ReportID: 1, ImageURL: "http://host/storage/1/a.png", UploadedAt: "2026-10-16"}
		if err := ds.InsertImage(ctx, first); err != nil {
			t.Fatalf("InsertImage error: %v", err)
		}
		second := &Image{ImageID: "img-2", ReportID: 1, ImageURL: "http://host/storage/1/b.png", UploadedAt: "2026-10-16"}
		if err := ds.InsertImage(ctx, second); !errors.Is(err, ErrDuplicateImage) {
			t.Fatalf("expected ErrDuplicateImage, got %v", err)
		}

		images, err = ds.GetImagesByReportID(ctx, 1)
		if err != nil {
			t.Fatalf("GetImagesByReportID error: %v", err)
		}
		if len(images) != 1 {
			t.Fatalf("expected 1 image, got %d", len(images))
		}
		if *images[0] != *first {
			t.Fatalf("image mismatch: got %+v, want %+v", *images[0], *first)
		}
	})
}
