// Package blob backs up and restores the index artifact pair in an
// S3-compatible object store. Every operation is best-effort: an
// unconfigured or failing store degrades to "skipped", never fatal, because
// the local artifacts remain authoritative.
package blob

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vendexa/vendex/engine/vecindex"
)

// Store wraps an S3-compatible client for one (bucket, prefix) pair.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	log    *slog.Logger
}

// New creates a Store. With an empty endpoint or bucket the store is
// disabled and every operation reports false.
func New(endpoint, accessKey, secretKey, bucket, prefix string, useSSL bool, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{bucket: bucket, prefix: prefix, log: log}

	if endpoint == "" || bucket == "" {
		log.Warn("blob: not configured, remote backup disabled")
		return s
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		log.Error("blob: client init failed, remote backup disabled", "err", err)
		return s
	}
	s.client = client
	log.Info("blob: initialized", "bucket", bucket, "prefix", prefix)
	return s
}

// Enabled reports whether a client is configured.
func (s *Store) Enabled() bool { return s != nil && s.client != nil }

func (s *Store) keys(indexName string) (indexKey, metaKey string) {
	return path.Join(s.prefix, indexName, vecindex.IndexFileName),
		path.Join(s.prefix, indexName, vecindex.MetaFileName)
}

// UploadIndex pushes both artifacts of an index. Returns true only when both
// uploads succeed.
func (s *Store) UploadIndex(ctx context.Context, indexName, indexPath, metaPath string) bool {
	if !s.Enabled() {
		s.log.Warn("blob: upload skipped, store not available")
		return false
	}
	indexKey, metaKey := s.keys(indexName)

	for _, up := range []struct{ key, file string }{
		{indexKey, indexPath},
		{metaKey, metaPath},
	} {
		if _, err := s.client.FPutObject(ctx, s.bucket, up.key, up.file, minio.PutObjectOptions{}); err != nil {
			s.log.Error("blob: upload failed", "key", up.key, "err", err)
			return false
		}
		s.log.Info("blob: uploaded", "key", fmt.Sprintf("%s/%s", s.bucket, up.key))
	}
	return true
}

// DownloadIndex fetches both artifacts of an index to the local paths.
// Returns true only when both downloads succeed.
func (s *Store) DownloadIndex(ctx context.Context, indexName, indexPath, metaPath string) bool {
	if !s.Enabled() {
		s.log.Warn("blob: download skipped, store not available")
		return false
	}
	indexKey, metaKey := s.keys(indexName)

	for _, dl := range []struct{ key, file string }{
		{indexKey, indexPath},
		{metaKey, metaPath},
	} {
		if err := s.client.FGetObject(ctx, s.bucket, dl.key, dl.file, minio.GetObjectOptions{}); err != nil {
			s.log.Warn("blob: download failed", "key", dl.key, "err", err)
			return false
		}
		s.log.Info("blob: downloaded", "key", fmt.Sprintf("%s/%s", s.bucket, dl.key))
	}
	return true
}

// IndexExists reports whether the vector artifact is present remotely.
func (s *Store) IndexExists(ctx context.Context, indexName string) bool {
	if !s.Enabled() {
		return false
	}
	indexKey, _ := s.keys(indexName)
	_, err := s.client.StatObject(ctx, s.bucket, indexKey, minio.StatObjectOptions{})
	return err == nil
}
