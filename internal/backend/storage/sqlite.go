package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStorage keeps uploaded files as blobs, one row per object path.
type SQLiteStorage struct {
	db            *sql.DB
	publicBaseURL string
}

func NewSQLiteStorage(connectionString, publicBaseURL string) (*SQLiteStorage, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("sqlite storage requires a connection string")
	}
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS stored_objects (
		path TEXT PRIMARY KEY,
		content_type TEXT NOT NULL,
		data BLOB NOT NULL,
		uploaded_at TEXT NOT NULL
	)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create object table: %w", err)
	}

	return &SQLiteStorage{db: db, publicBaseURL: publicBaseURL}, nil
}

func (s *SQLiteStorage) Upload(ctx context.Context, reportID int64, filename string, content []byte) (string, error) {
	objectPath, err := ObjectPath(reportID, filename)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO stored_objects (path, content_type, data, uploaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content_type = excluded.content_type, data = excluded.data, uploaded_at = excluded.uploaded_at`,
		objectPath, ContentTypeFor(filename), content, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("storage upload of %s failed: %w", objectPath, err)
	}
	return PublicURL(s.publicBaseURL, objectPath), nil
}

func (s *SQLiteStorage) Download(ctx context.Context, objectPath string) (*Object, error) {
	row := s.db.QueryRowContext(ctx, "SELECT path, content_type, data FROM stored_objects WHERE path = ?", objectPath)
	var object Object
	if err := row.Scan(&object.Path, &object.ContentType, &object.Data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return &object, nil
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
