package provider

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/arencloud/janus/internal/models"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Compat talks to any S3-compatible backend (AWS, MinIO, MCG) through
// minio-go. Direct uploads use a presigned PUT scoped to the exact key.
type S3Compat struct {
	mc     *minio.Client
	bucket string
	ttl    time.Duration
}

func NewS3(cfg models.StorageConfig, opts Options) (*S3Compat, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: s3 requires bucket and credentials", ErrInvalidConfig)
	}
	endpoint, secure := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &S3Compat{mc: mc, bucket: cfg.Bucket, ttl: opts.ttl()}, nil
}

func (s *S3Compat) Name() string         { return S3 }
func (s *S3Compat) SupportsDirect() bool { return true }

func (s *S3Compat) NegotiateDirect(ctx context.Context, key, contentType string, size int64) (*DirectUpload, error) {
	u, err := s.mc.PresignedPutObject(ctx, s.bucket, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	headers := map[string]string{}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	return &DirectUpload{URL: u.String(), Method: "PUT", Headers: headers}, nil
}

func (s *S3Compat) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	info, err := s.mc.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return info.Key, nil
}

func (s *S3Compat) Delete(ctx context.Context, key string) error {
	if err := s.mc.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// List enumerates one level under prefix; common prefixes become synthetic
// folder entries.
func (s *S3Compat) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	p := strings.Trim(prefix, "/")
	if p != "" {
		p += "/"
	}
	out := []ObjectInfo{}
	for obj := range s.mc.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: p, Recursive: false}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, p)
		isDir := strings.HasSuffix(name, "/")
		name = strings.TrimSuffix(name, "/")
		if name == "" {
			continue
		}
		oi := ObjectInfo{
			Key:        strings.TrimSuffix(obj.Key, "/"),
			Name:       name,
			ModifiedAt: obj.LastModified,
			IsDir:      isDir,
		}
		if !isDir {
			oi.Size = obj.Size
		}
		out = append(out, oi)
	}
	return out, nil
}

// Move is a server-side copy followed by a delete of the source.
func (s *S3Compat) Move(ctx context.Context, srcKey, dstKey string) error {
	src := minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey}
	dst := minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey}
	if _, err := s.mc.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return s.Delete(ctx, srcKey)
}

// normalizeEndpoint strips an http(s) scheme from the configured endpoint;
// when a scheme is present it wins over the UseSSL flag.
func normalizeEndpoint(endpoint string, useSSL bool) (host string, secure bool) {
	secure = useSSL
	if endpoint == "" {
		return "", secure
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		if u, err := url.Parse(endpoint); err == nil {
			if u.Scheme == "https" {
				secure = true
			} else if u.Scheme == "http" {
				secure = false
			}
			return u.Host, secure
		}
	}
	return endpoint, secure
}

var (
	_ Adapter = (*S3Compat)(nil)
	_ Lister  = (*S3Compat)(nil)
	_ Mover   = (*S3Compat)(nil)
)
