package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type FilesystemStorage struct {
	directory     string
	publicBaseURL string
}

func NewFilesystemStorage(directory, publicBaseURL string) (*FilesystemStorage, error) {
	if directory == "" {
		return nil, fmt.Errorf("filesystem storage requires a directory")
	}
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", directory, err)
	}
	return &FilesystemStorage{
		directory:     directory,
		publicBaseURL: publicBaseURL,
	}, nil
}

func (s *FilesystemStorage) Upload(ctx context.Context, reportID int64, filename string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	objectPath, err := ObjectPath(reportID, filename)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.directory, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("storage upload of %s failed: %w", objectPath, err)
	}
	if err := os.WriteFile(target, content, 0o640); err != nil {
		return "", fmt.Errorf("storage upload of %s failed: %w", objectPath, err)
	}
	return PublicURL(s.publicBaseURL, objectPath), nil
}

func (s *FilesystemStorage) Download(ctx context.Context, objectPath string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleaned := filepath.Clean(filepath.FromSlash(objectPath))
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, objectPath)
	}

	data, err := os.ReadFile(filepath.Join(s.directory, cleaned))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return &Object{
		Path:        filepath.ToSlash(cleaned),
		ContentType: ContentTypeFor(cleaned),
		Data:        data,
	}, nil
}

func (s *FilesystemStorage) Close() error {
	return nil
}
