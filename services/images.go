package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/postapi/postapi/storage"
)

// uploadImages stores every non-empty file and returns their URLs in order.
func uploadImages(ctx context.Context, store storage.ImageStore, files []storage.FileUpload) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		if f.Empty() {
			continue
		}
		url, err := uploadImage(ctx, store, f)
		if err != nil {
			return nil, err
		}
		if url != "" {
			urls = append(urls, url)
		}
	}
	return urls, nil
}

func uploadImage(ctx context.Context, store storage.ImageStore, f storage.FileUpload) (string, error) {
	if f.Empty() {
		return "", nil
	}
	if store == nil {
		return "", fmt.Errorf("upload %q: no image store configured: %w", f.Name, ErrUnavailable)
	}
	url, err := store.Upload(ctx, f)
	switch {
	case err == nil:
		return url, nil
	case errors.Is(err, storage.ErrUnsupportedType):
		return "", &ValidationError{Field: "images", Rule: "image"}
	case errors.Is(err, storage.ErrTooLarge):
		return "", &ValidationError{Field: "images", Rule: "max_size"}
	default:
		return "", fmt.Errorf("upload %q: %w: %w", f.Name, ErrUnavailable, err)
	}
}
