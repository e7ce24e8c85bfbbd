// Package storage issues presigned URLs for document files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("file storage is not configured")

// Upload is a presigned PUT target and the key the file will be stored under.
type Upload struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileStore issues short-lived URLs for direct transfers.
type FileStore interface {
	PresignUpload(ctx context.Context, scope, fileName string) (Upload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

// ObjectKey builds a collision-free key under scope, keeping the extension of
// fileName.
func ObjectKey(scope, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	scope = strings.Trim(scope, "/")
	if scope == "" {
		scope = "uploads"
	}
	return fmt.Sprintf("%s/%s%s", scope, uuid.NewString(), ext)
}

// Disabled is the FileStore used when S3 is not configured.
type Disabled struct{}

func (Disabled) PresignUpload(context.Context, string, string) (Upload, error) {
	return Upload{}, ErrDisabled
}

func (Disabled) PresignDownload(context.Context, string) (string, error) {
	return "", ErrDisabled
}
