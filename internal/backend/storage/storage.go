package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultContentType = "application/octet-stream"

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrInvalidFilename = errors.New("invalid filename")
)

// Object is a stored file together with the content type it was uploaded with.
type Object struct {
	Path        string
	ContentType string
	Data        []byte
}

// ObjectStorage stores report attachments under "{report_id}/{filename}".
// Uploading to an existing path overwrites it.
type ObjectStorage interface {
	Upload(ctx context.Context, reportID int64, filename string, content []byte) (string, error)
	Download(ctx context.Context, objectPath string) (*Object, error)
	Close() error
}

func NewStorage(storageType, location, publicBaseURL string) (ObjectStorage, error) {
	var (
		store ObjectStorage
		err   error
	)
	switch storageType {
	case "filesystem":
		store, err = NewFilesystemStorage(location, publicBaseURL)
	case "sqlite":
		store, err = NewSQLiteStorage(location, publicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("object storage initialized (type=%s)", storageType)
	return store, nil
}

// ObjectPath builds the storage path of a report attachment.
func ObjectPath(reportID int64, filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return path.Join(strconv.FormatInt(reportID, 10), name), nil
}

// ContentTypeFor infers the content type from the filename extension.
func ContentTypeFor(filename string) string {
	if contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); contentType != "" {
		return contentType
	}
	return defaultContentType
}

// PublicURL returns the URL under which the object is served by the API.
func PublicURL(publicBaseURL, objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(publicBaseURL, "/") + "/storage/" + strings.Join(segments, "/")
}
