package storage

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"coachflow/internal/services"
)

const minioPageSize = 1000

// MinIOConfig holds the settings for a MinIO bucket.
type MinIOConfig struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

// MinIO stores objects in a MinIO bucket.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO returns a MinIO backend.
func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "init minio", "endpoint and bucket are required", nil)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "init minio", cfg.Endpoint, err)
	}
	return &MinIO{client: client, bucket: cfg.Bucket}, nil
}

// ListPage lists up to minioPageSize objects after token. The token is the
// last key of the previous page.
func (m *MinIO) ListPage(ctx context.Context, prefix, token string) (Page, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var page Page
	for info := range m.client.ListObjects(listCtx, m.bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  true,
		StartAfter: token,
	}) {
		if info.Err != nil {
			return Page{}, classifyMinIO(info.Err, "list", prefix)
		}
		page.Objects = append(page.Objects, Object{
			Name:        info.Key,
			Size:        info.Size,
			ContentType: info.ContentType,
			Updated:     info.LastModified,
		})
		if len(page.Objects) == minioPageSize {
			page.NextToken = info.Key
			break
		}
	}
	return page, nil
}

// Get downloads an object.
func (m *MinIO) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinIO(err, "get", name)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinIO(err, "get", name)
	}
	return data, nil
}

// Put uploads data.
func (m *MinIO) Put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return classifyMinIO(err, "put", name)
	}
	return nil
}

// Copy copies src to dst within the bucket.
func (m *MinIO) Copy(ctx context.Context, src, dst string) error {
	_, err := m.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: m.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: m.bucket, Object: src},
	)
	if err != nil {
		return classifyMinIO(err, "copy", src)
	}
	return nil
}

// Delete removes an object. MinIO reports success for missing keys.
func (m *MinIO) Delete(ctx context.Context, name string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinIO(err, "delete", name)
	}
	return nil
}

func classifyMinIO(err error, operation, name string) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchObject":
		return notFound(name)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return services.Wrap(services.ErrUnauthorized, "storage", operation, name, err)
	case "SlowDown", "SlowDownRead", "SlowDownWrite":
		return services.Wrap(services.ErrRateLimited, "storage", operation, name, err)
	case "NoSuchBucket":
		return services.Wrap(services.ErrConfiguration, "storage", operation, "bucket does not exist", err)
	}
	if resp.StatusCode == 404 {
		return notFound(name)
	}
	if resp.StatusCode >= 400 {
		return services.Wrap(services.HTTPStatusMarker(resp.StatusCode), "storage", operation, name, err)
	}
	return services.Wrap(services.ErrTransient, "storage", operation, name, err)
}
