// Package storage keeps uploaded documents (CVs, report versions, internship
// specifications) and hands back a stable key plus a public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/config"
)

// ErrEmptyKey is returned for operations on an empty object key.
var ErrEmptyKey = errors.New("storage: empty key")

// Object describes a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Storage is implemented by every driver.
type Storage interface {
	Put(ctx context.Context, dir, filename string, r io.Reader, contentType string) (*Object, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the driver selected by cfg.Driver.
func New(cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Driver {
	case "oss":
		return NewOSS(cfg, logger)
	case "local", "":
		return NewLocal(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

// BuildKey returns "<dir>/<yyyy>/<mm>/<uuid><ext>" with a lower-cased
// extension taken from filename.
func BuildKey(dir, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	now := time.Now().UTC()
	dir = strings.Trim(dir, "/")
	if dir == "" {
		dir = "files"
	}
	return fmt.Sprintf("%s/%04d/%02d/%s%s", dir, now.Year(), int(now.Month()), uuid.NewString(), ext)
}

func joinURL(base, key string) string {
	if base == "" {
		return key
	}
	return strings.TrimRight(base, "/") + "/" + key
}
