package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// counterKey is the fixed identity of the singleton counter row.
const counterKey = 1

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// Every connection to ":memory:" would get its own database.
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS report_counters (
			id INTEGER PRIMARY KEY,
			next_id INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			report_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			contact_details TEXT,
			issue_category TEXT,
			description TEXT,
			manual_location_input TEXT,
			status TEXT NOT NULL,
			submitted_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS report_images (
			image_id TEXT PRIMARY KEY,
			report_id INTEGER NOT NULL UNIQUE REFERENCES reports(report_id),
			image_url TEXT NOT NULL,
			uploaded_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) GetCounter(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, "SELECT next_id FROM report_counters WHERE id = ?", counterKey)
	var nextID int64
	if err := row.Scan(&nextID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrCounterNotFound
		}
		return 0, err
	}
	return nextID, nil
}

func (s *SQLiteDatabase) CreateCounter(ctx context.Context, nextID int64) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO report_counters (id, next_id) VALUES (?, ?)", counterKey, nextID)
	if isUniqueViolation(err) {
		return ErrCounterExists
	}
	return err
}

func (s *SQLiteDatabase) UpdateCounter(ctx context.Context, nextID int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE report_counters SET next_id = ? WHERE id = ?", nextID, counterKey)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCounterNotFound
	}
	return nil
}

func (s *SQLiteDatabase) InsertReport(ctx context.Context, report *Report) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO reports
		(report_id, name, contact_details, issue_category, description, manual_location_input, status, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ReportID,
		report.Name,
		nullString(report.ContactDetails),
		nullString(report.IssueCategory),
		nullString(report.Description),
		nullString(report.ManualLocationInput),
		string(report.Status),
		report.SubmittedAt,
		report.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %d", ErrDuplicateReportID, report.ReportID)
	}
	return err
}

func (s *SQLiteDatabase) GetMaxReportID(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, "SELECT report_id FROM reports ORDER BY report_id DESC LIMIT 1")
	var maxID int64
	if err := row.Scan(&maxID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return maxID, nil
}

func (s *SQLiteDatabase) GetReport(ctx context.Context, reportID int64) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT report_id, name, contact_details, issue_category, description,
		manual_location_input, status, submitted_at, updated_at FROM reports WHERE report_id = ?`, reportID)

	var report Report
	var contact, category, description, location sql.NullString
	var status string
	err := row.Scan(&report.ReportID, &report.Name, &contact, &category, &description,
		&location, &status, &report.SubmittedAt, &report.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	report.ContactDetails = contact.String
	report.IssueCategory = category.String
	report.Description = description.String
	report.ManualLocationInput = location.String
	report.Status = Status(status)
	return &report, nil
}

func (s *SQLiteDatabase) InsertImage(ctx context.Context, image *Image) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO report_images (image_id, report_id, image_url, uploaded_at) VALUES (?, ?, ?, ?)",
		image.ImageID, image.ReportID, image.ImageURL, image.UploadedAt)
	if isUniqueColumnViolation(err, "report_images.report_id") {
		return fmt.Errorf("%w: %d", ErrDuplicateImage, image.ReportID)
	}
	return err
}

func (s *SQLiteDatabase) GetImagesByReportID(ctx context.Context, reportID int64) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT image_id, report_id, image_url, uploaded_at FROM report_images WHERE report_id = ?", reportID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var images []*Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ImageID, &img.ReportID, &img.ImageURL, &img.UploadedAt); err != nil {
			return nil, err
		}
		images = append(images, &img)
	}
	return images, rows.Err()
}

// isUniqueViolation reports whether err is a primary key or unique
// constraint failure. The message check covers errors wrapped by
// database/sql that no longer expose the driver type.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isUniqueColumnViolation narrows isUniqueViolation to a UNIQUE column
// constraint, leaving primary key collisions unmatched.
func isUniqueColumnViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
