package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Presigner issues GetObject presigned URLs against the same bucket/prefix
// an [*storage.S3Store] writes to. It is constructed independently of the
// store since presigning uses [s3.PresignClient] rather than [s3.Client],
// and storage.S3Store keeps its bucket/prefix unexported.
type S3Presigner struct {
	client *s3.PresignClient
	bucket string
	prefix string
}

// NewS3Presigner builds a Presigner over client, which should be configured
// with the same credentials/region/endpoint as the [s3.Client] passed to
// storage.NewS3. prefix must match the prefix given to storage.NewS3 so
// both components derive the same object key from a path.
func NewS3Presigner(client *s3.Client, bucket, prefix string) *S3Presigner {
	return &S3Presigner{client: s3.NewPresignClient(client), bucket: bucket, prefix: prefix}
}

func (p *S3Presigner) key(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}

// PresignGet implements Presigner.
func (p *S3Presigner) PresignGet(ctx context.Context, key string, expiresSeconds int) (string, error) {
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &p.bucket,
		Key:    strPtr(p.key(key)),
	}, s3.WithPresignExpires(time.Duration(expiresSeconds)*time.Second))
	if err != nil {
		return "", fmt.Errorf("objectstore: presign %s: %w", key, err)
	}
	return req.URL, nil
}

func strPtr(s string) *string { return &s }

// LocalPresigner stands in for S3 presigning when artifacts are kept on the
// local filesystem (dev runs, or environments with no object store
// configured): it returns a file:// URL rooted at dir rather than an
// actual time-limited signed link. expiresSeconds is accepted to satisfy
// Presigner but has no effect, since a file:// URL does not expire.
type LocalPresigner struct {
	Dir string
}

// PresignGet implements Presigner.
func (p *LocalPresigner) PresignGet(_ context.Context, key string, _ int) (string, error) {
	abs, err := filepath.Abs(filepath.Join(p.Dir, key))
	if err != nil {
		return "", fmt.Errorf("objectstore: resolve local path for %s: %w", key, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
