// Package storage adapts the external object store behind one small
// interface. The implementation rides on viant/afs, so the same code serves
// file://, s3:// and gs:// base URLs.
package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/highwayhash"
	"github.com/viant/afs"

	"github.com/docuplane/docintel/internal/common"
)

// Service is the storage collaborator contract consumed by ingest and the
// worker. storage_path values are opaque URLs into the configured store.
type Service interface {
	// UploadFile stores a document under a tenant/integration scoped key
	// and returns its storage path.
	UploadFile(ctx context.Context, tenantID, integrationID uuid.UUID, data []byte, filename, mimeType string) (string, error)
	// Download fetches a previously stored object by its storage path.
	Download(ctx context.Context, storagePath string) ([]byte, error)
	// ContentHash fingerprints a file buffer for dedupe and audit.
	ContentHash(data []byte) []byte
}

// defaultHashKey keys highwayhash when no STORAGE_HASH_KEY is configured.
// Fingerprints are for dedupe, not secrecy, so a fixed key is acceptable.
var defaultHashKey = []byte("docintel-content-fingerprint-v01")

type afsStorage struct {
	fs      afs.Service
	baseURL string
	hashKey []byte
	logger  *slog.Logger
}

// New builds the afs-backed storage service from configuration.
func New(cfg common.StorageConfig, logger *slog.Logger) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	key := defaultHashKey
	if cfg.HashKey != "" {
		decoded, err := hex.DecodeString(cfg.HashKey)
		if err != nil || len(decoded) != 32 {
			return nil, common.NewValidationError("STORAGE_HASH_KEY", "must be 32 hex-encoded bytes")
		}
		key = decoded
	}
	return &afsStorage{
		fs:      afs.New(),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		hashKey: key,
		logger:  logger,
	}, nil
}

func (s *afsStorage) UploadFile(ctx context.Context, tenantID, integrationID uuid.UUID, data []byte, filename, mimeType string) (string, error) {
	hash := s.ContentHash(data)
	object := fmt.Sprintf("%s/%s/%s-%s",
		tenantID, integrationID, hex.EncodeToString(hash[:8]), sanitizeFilename(filename))
	url := s.baseURL + "/" + object

	if err := s.fs.Upload(ctx, url, 0o644, bytes.NewReader(data)); err != nil {
		s.logger.Error("upload failed", "url", url, "mime_type", mimeType, "error", err)
		return "", &common.StorageError{Op: "upload " + object, Err: err}
	}
	s.logger.Info("file uploaded", "storage_path", url, "bytes", len(data))
	return url, nil
}

func (s *afsStorage) Download(ctx context.Context, storagePath string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, storagePath)
	if err != nil {
		s.logger.Error("download failed", "storage_path", storagePath, "error", err)
		return nil, &common.StorageError{Op: "download " + storagePath, Err: err}
	}
	return data, nil
}

func (s *afsStorage) ContentHash(data []byte) []byte {
	sum := highwayhash.Sum(data, s.hashKey)
	return sum[:]
}

// sanitizeFilename keeps object keys URL-safe without losing the original
// extension.
func sanitizeFilename(name string) string {
	base := path.Base(name)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
