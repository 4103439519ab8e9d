package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes images under Dir and serves them from PublicPath.
type LocalStore struct {
	Dir        string
	PublicPath string
	MaxBytes   int64
	Prefix     string
}

func NewLocalStore(dir, publicPath string, maxBytes int64) *LocalStore {
	return &LocalStore{Dir: dir, PublicPath: publicPath, MaxBytes: maxBytes, Prefix: "images"}
}

func (s *LocalStore) Upload(ctx context.Context, file FileUpload) (string, error) {
	const op = "storage/local/Upload"
	if file.Empty() {
		return "", nil
	}
	_, ext, err := checkUpload(file, s.MaxBytes)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := objectKey(s.Prefix, ext, time.Now())
	dst := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	reader := file.Reader
	if s.MaxBytes > 0 {
		reader = io.LimitReader(reader, s.MaxBytes+1)
	}
	n, err := io.Copy(out, reader)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.MaxBytes > 0 && n > s.MaxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return strings.TrimRight(s.PublicPath, "/") + "/" + key, nil
}

var _ ImageStore = (*LocalStore)(nil)
