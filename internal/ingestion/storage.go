// Package ingestion runs orgaudit scoring: it loads an organization
// inventory from storage, grades it and stores the resulting reports.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/orgaudit/orgaudit/pkg/config"
)

var (
	// ErrUnknownBackend is returned by NewStorage for an unrecognized backend.
	ErrUnknownBackend = errors.New("unknown storage backend")
	// ErrInvalidKey is returned for object keys that escape the storage root.
	ErrInvalidKey = errors.New("invalid storage key")
)

// StorageClient abstracts blob storage for inventories and run reports.
type StorageClient interface {
	PutInventory(ctx context.Context, org, name string, data []byte) error
	GetInventory(ctx context.Context, org, name string) ([]byte, error)
	PutReport(ctx context.Context, org, runID, name string, data []byte) error
	GetReport(ctx context.Context, org, runID, name string) ([]byte, error)
}

// NewStorage builds the StorageClient selected by cfg.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (StorageClient, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.Path), nil
	case "s3":
		return NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		})
	case "gcs":
		return NewGCSStorage(ctx, cfg.Bucket)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
}

func inventoryKey(org, name string) string {
	return org + "/inventories/" + name + ".json"
}

func reportKey(org, runID, name string) string {
	return org + "/runs/" + runID + "/" + name
}

// ContentType returns the MIME type stored artifacts are served with.
func ContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".csv"):
		return "text/csv"
	case strings.HasSuffix(name, ".md"):
		return "text/markdown"
	default:
		return "application/json"
	}
}

// LocalStorage implements StorageClient using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

// path maps key under BaseDir, refusing keys that resolve outside it.
func (s *LocalStorage) path(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.BaseDir, rel), nil
}

func (s *LocalStorage) put(key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *LocalStorage) get(key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// PutInventory stores an inventory document.
func (s *LocalStorage) PutInventory(ctx context.Context, org, name string, data []byte) error {
	return s.put(inventoryKey(org, name), data)
}

// GetInventory retrieves an inventory document.
func (s *LocalStorage) GetInventory(ctx context.Context, org, name string) ([]byte, error) {
	return s.get(inventoryKey(org, name))
}

// PutReport stores one report artifact of a run.
func (s *LocalStorage) PutReport(ctx context.Context, org, runID, name string, data []byte) error {
	return s.put(reportKey(org, runID, name), data)
}

// GetReport retrieves one report artifact of a run.
func (s *LocalStorage) GetReport(ctx context.Context, org, runID, name string) ([]byte, error) {
	return s.get(reportKey(org, runID, name))
}
