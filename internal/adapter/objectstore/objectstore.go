// Package objectstore uploads pipeline artifacts (final dubbed videos,
// review bundles) to the configured object store and returns a presigned
// URL, idempotently keying each object by the content hash of the file
// being uploaded.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/reelsub/dubpipe/internal/pipeline/fingerprint"
	"github.com/reelsub/dubpipe/pkg/storage"
)

// DefaultExpirySeconds is used when a caller does not specify an expiry for
// the presigned URL.
const DefaultExpirySeconds = 3600

// Presigner issues a presigned URL for an object already at key in the
// store, valid for expiresSeconds.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expiresSeconds int) (string, error)
}

// Store uploads content-addressed objects through a [storage.FileStore] and
// a [Presigner]. Both are satisfied by an S3-compatible client against a
// TOS (or S3, MinIO, R2) bucket; Presigner is separate from FileStore
// because presigning is not part of that interface's minimal contract.
type Store struct {
	files     storage.FileStore
	presigner Presigner
}

// New builds a Store over files and presigner.
func New(files storage.FileStore, presigner Presigner) *Store {
	return &Store{files: files, presigner: presigner}
}

// Upload uploads the file at localPath, deriving its object key from the
// file's content hash: {prefix or parent-dir}/{stem}-{sha256[:8]}{suffix}.
// If overwrite is false and the key already exists, the upload is skipped
// and a presigned URL for the existing object is returned. expiresSeconds
// of 0 selects DefaultExpirySeconds.
func (s *Store) Upload(ctx context.Context, localPath, prefix string, overwrite bool, expiresSeconds int) (string, error) {
	if expiresSeconds == 0 {
		expiresSeconds = DefaultExpirySeconds
	}

	key, err := objectKey(localPath, prefix)
	if err != nil {
		return "", fmt.Errorf("objectstore: derive key for %s: %w", localPath, err)
	}

	if !overwrite {
		exists, err := s.files.Exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("objectstore: head %s: %w", key, err)
		}
		if exists {
			return s.presigner.PresignGet(ctx, key, expiresSeconds)
		}
	}

	if err := s.put(ctx, localPath, key); err != nil {
		return "", fmt.Errorf("objectstore: upload %s: %w", localPath, err)
	}

	return s.presigner.PresignGet(ctx, key, expiresSeconds)
}

func (s *Store) put(ctx context.Context, localPath, key string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := s.files.Write(ctx, key)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// objectKey derives the content-addressed object key for localPath.
// prefix, when non-empty, replaces the file's parent directory name.
func objectKey(localPath, prefix string) (string, error) {
	digest, err := fingerprint.HashFile(localPath)
	if err != nil {
		return "", err
	}
	short := strings.TrimPrefix(digest, fingerprint.Prefix)[:8]

	base := filepath.Base(localPath)
	suffix := filepath.Ext(base)
	stem := strings.TrimSuffix(base, suffix)

	dir := prefix
	if dir == "" {
		dir = filepath.Base(filepath.Dir(localPath))
	}

	return fmt.Sprintf("%s/%s-%s%s", dir, stem, short, suffix), nil
}

