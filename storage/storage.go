// Package storage uploads user images to local disk or an S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedType is returned for files that are not jpeg, png, gif or webp.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrTooLarge is returned when a file exceeds the configured size limit.
	ErrTooLarge = errors.New("image too large")
)

// FileUpload is one uploaded file as received from the client.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Empty reports whether there is nothing to store.
func (f FileUpload) Empty() bool {
	return f.Reader == nil || f.Size == 0
}

// ImageStore persists an image and returns its public URL. An empty upload
// yields "" and no error.
type ImageStore interface {
	Upload(ctx context.Context, file FileUpload) (string, error)
}

var extByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var typeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// detectType resolves the content type from the header or, failing that, the file extension.
func detectType(f FileUpload) (contentType, ext string, err error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(f.ContentType, ";", 2)[0]))
	if e, ok := extByType[ct]; ok {
		return ct, e, nil
	}
	e := strings.ToLower(path.Ext(f.Name))
	if t, ok := typeByExt[e]; ok {
		return t, extByType[t], nil
	}
	return "", "", ErrUnsupportedType
}

func checkUpload(f FileUpload, maxBytes int64) (contentType, ext string, err error) {
	if maxBytes > 0 && f.Size > maxBytes {
		return "", "", ErrTooLarge
	}
	return detectType(f)
}

// objectKey builds keys like "images/2024/05/<uuid>.png".
func objectKey(prefix, ext string, now time.Time) string {
	return path.Join(prefix, now.Format("2006"), now.Format("01"), uuid.NewString()+ext)
}
