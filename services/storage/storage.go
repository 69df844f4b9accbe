// Package storage abstracts the private attachment disk. Attachments are
// never public; downloads go through the API after an entitlement check, so
// every object is stored private and read back server-side.
package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
)

// Disk is the narrow interface the attachment service depends on.
type Disk interface {
	// Name identifies the disk, recorded on each attachment row.
	Name() string

	// Store writes the object at key and returns nothing but an error; keys
	// are opaque to callers.
	Store(ctx context.Context, key string, data io.Reader, size int64, contentType string) error

	// Exists reports whether the object is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Download reads the whole object back.
	Download(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// ContentType maps a filename extension to a MIME type, falling back to
// application/octet-stream.
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
