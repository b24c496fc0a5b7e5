package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"test-solver/internal/config"
	"test-solver/internal/domain"
	"test-solver/internal/logger"
	"test-solver/internal/util"

	"go.uber.org/zap"
)

// LocalFileStorage implements domain.FileStorage on a local directory.
// Stored files are addressable under the configured public base URL;
// Download also follows plain http(s) URLs for externally hosted files.
type LocalFileStorage struct {
	baseDir       string
	publicBaseURL string
	httpClient    *http.Client
}

// NewLocalFileStorage creates a LocalFileStorage rooted at cfg.BaseDir,
// creating the directory when missing.
func NewLocalFileStorage(cfg config.StorageConfig) (domain.FileStorage, error) {
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, domain.NewStorageError(fmt.Sprintf("failed to create storage directory %s", cfg.BaseDir), err)
	}
	return &LocalFileStorage{
		baseDir:       cfg.BaseDir,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Upload implements domain.FileStorage
func (s *LocalFileStorage) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	storedName := util.NewULID() + "_" + sanitizeFilename(filename)
	path := filepath.Join(s.baseDir, storedName)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", domain.NewStorageError(fmt.Sprintf("failed to write file %s", storedName), err)
	}

	logger.Get().Debug("Stored uploaded file",
		zap.String("filename", filename),
		zap.String("stored_name", storedName),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)))

	return s.publicBaseURL + "/" + storedName, nil
}

// Download implements domain.FileStorage
func (s *LocalFileStorage) Download(ctx context.Context, fileURL string) ([]byte, error) {
	if storedName, ok := s.localName(fileURL); ok {
		data, err := os.ReadFile(filepath.Join(s.baseDir, storedName))
		if err != nil {
			return nil, domain.NewStorageError(fmt.Sprintf("failed to read stored file %s", storedName), err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, domain.NewStorageError(fmt.Sprintf("invalid file URL %s", fileURL), err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewStorageError(fmt.Sprintf("failed to download file from %s", fileURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewStorageError(fmt.Sprintf("failed to download file from %s: status %d", fileURL, resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewStorageError(fmt.Sprintf("failed to read response body from %s", fileURL), err)
	}
	return data, nil
}

// Delete implements domain.FileStorage
func (s *LocalFileStorage) Delete(ctx context.Context, fileURL string) error {
	storedName, ok := s.localName(fileURL)
	if !ok {
		// Externally hosted files are not ours to delete.
		return nil
	}

	if err := os.Remove(filepath.Join(s.baseDir, storedName)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return domain.NewStorageError(fmt.Sprintf("failed to delete file %s", storedName), err)
	}
	return nil
}

// localName resolves a file URL back to a name under baseDir. The stored
// name never contains path separators, which keeps reads inside baseDir.
func (s *LocalFileStorage) localName(fileURL string) (string, bool) {
	if !strings.HasPrefix(fileURL, s.publicBaseURL+"/") {
		return "", false
	}
	name := strings.TrimPrefix(fileURL, s.publicBaseURL+"/")
	if name == "" || strings.ContainsAny(name, "/\\") {
		return "", false
	}
	return name, true
}

func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
