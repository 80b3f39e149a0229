// Package storage moves batch and fine-tune files in and out of provider
// object stores (S3 for Bedrock, GCS for Vertex).
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config describes one S3 endpoint. Endpoint may carry a scheme; without
// one the connection is TLS.
type S3Config struct {
	Endpoint    string
	Region      string
	Credentials aws.Credentials
	PathStyle   bool
	Transport   http.RoundTripper
}

// S3 is a thin object client over minio-go.
type S3 struct {
	client *minio.Client
}

// S3Endpoint returns the regional S3 host.
func S3Endpoint(region string) string {
	return fmt.Sprintf("https://s3.%s.amazonaws.com", region)
}

// NewS3 builds a client for cfg.
func NewS3(cfg S3Config) (*S3, error) {
	host, secure, err := resolveEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	opts := &minio.Options{
		Creds:     miniocreds.NewStaticV4(cfg.Credentials.AccessKeyID, cfg.Credentials.SecretAccessKey, cfg.Credentials.SessionToken),
		Secure:    secure,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(host, opts)
	if err != nil {
		return nil, fmt.Errorf("storage: s3 client: %w", err)
	}
	return &S3{client: client}, nil
}

func resolveEndpoint(raw string) (host string, secure bool, err error) {
	host, secure = strings.TrimSpace(raw), true
	if strings.Contains(host, "://") {
		parsed, errParse := url.Parse(host)
		if errParse != nil {
			return "", false, fmt.Errorf("storage: parse endpoint %q: %w", raw, errParse)
		}
		switch strings.ToLower(parsed.Scheme) {
		case "http":
			secure = false
		case "https":
		default:
			return "", false, fmt.Errorf("storage: unsupported endpoint scheme %q", parsed.Scheme)
		}
		if parsed.Host == "" {
			return "", false, fmt.Errorf("storage: endpoint %q is missing host information", raw)
		}
		host = parsed.Host
	}
	host = strings.TrimRight(host, "/")
	if host == "" {
		return "", false, fmt.Errorf("storage: empty endpoint")
	}
	return host, secure, nil
}

// Put writes data to bucket/key and returns the object's s3:// URI.
func (s *S3) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put s3://%s/%s: %w", bucket, key, err)
	}
	return S3URI(bucket, key), nil
}

// Get reads bucket/key fully.
func (s *S3) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.Open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("storage: read s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Open returns a reader over bucket/key. The object is stat'ed first so a
// missing key fails here rather than on the first read. The caller closes it.
func (s *S3) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: get s3://%s/%s: %w", bucket, key, err)
	}
	if _, err = obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("storage: stat s3://%s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

// S3URI formats s3://bucket/key.
func S3URI(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimLeft(key, "/")
}

// SplitS3URI splits s3://bucket/key. A URL-encoded id is decoded first.
func SplitS3URI(uri string) (bucket, key string, ok bool) {
	return splitURI(uri, "s3://")
}

func splitURI(uri, scheme string) (bucket, key string, ok bool) {
	if decoded, err := url.PathUnescape(uri); err == nil {
		uri = decoded
	}
	rest, found := strings.CutPrefix(uri, scheme)
	if !found {
		return "", "", false
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
