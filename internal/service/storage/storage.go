package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/specforge/specforge/internal/config"
)

// InlineScheme prefixes inline-encoded image fallbacks; those are
// never persisted.
const InlineScheme = "data:"

// ObjectStore wraps the S3-compatible blob store that holds uploaded
// attachment images.
type ObjectStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// New connects to the configured endpoint and makes sure the
// attachment bucket exists.
func New(ctx context.Context, cfg config.StorageConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}

	return &ObjectStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Put uploads a blob and returns its durable URL.
func (s *ObjectStore) Put(ctx context.Context, data []byte, suggestedName, contentType string) (string, error) {
	objectName := uuid.NewString()
	if ext := path.Ext(suggestedName); ext != "" {
		objectName += ext
	}

	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectName, err)
	}

	url := fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, objectName)
	log.Printf("[storage] uploaded %s (%d bytes)", objectName, len(data))
	return url, nil
}

// Delete removes the blob addressed by a URL previously returned by
// Put.
func (s *ObjectStore) Delete(ctx context.Context, url string) error {
	objectName, ok := s.objectNameFromURL(url)
	if !ok {
		return fmt.Errorf("not a storage-backed url: %s", url)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", objectName, err)
	}
	return nil
}

func (s *ObjectStore) objectNameFromURL(url string) (string, bool) {
	marker := "/" + s.bucket + "/"
	idx := strings.LastIndex(url, marker)
	if idx < 0 {
		return "", false
	}
	name := url[idx+len(marker):]
	return name, name != ""
}

// IsStorageURL reports whether a reference points at the blob store.
// Image references are either inline data URLs or absolute URLs
// returned by Put, whatever the configured bucket, so classification
// goes by scheme.
func IsStorageURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// IsInlineData reports whether a reference is an inline-encoded
// fallback.
func IsInlineData(url string) bool {
	return strings.HasPrefix(url, InlineScheme)
}

// DecodeDataURL splits an inline data URL into its MIME type and raw
// bytes, for the upload-at-send-time path.
func DecodeDataURL(url string) (string, []byte, error) {
	if !IsInlineData(url) {
		return "", nil, fmt.Errorf("not a data url")
	}
	rest := strings.TrimPrefix(url, InlineScheme)
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return "", nil, fmt.Errorf("unsupported data url encoding")
	}
	mime := rest[:semi]
	raw, err := base64.StdEncoding.DecodeString(rest[semi+len(";base64,"):])
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return mime, raw, nil
}
