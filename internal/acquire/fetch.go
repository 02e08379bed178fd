package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ziadkadry99/auto-migrate/internal/config"
	"github.com/ziadkadry99/auto-migrate/internal/walker"
)

// ErrNotFound is returned by fetchers when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Fetcher returns the bytes behind a fetch URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// MultiFetcher dispatches on the URL scheme.
type MultiFetcher map[string]Fetcher

func (m MultiFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse fetch url: %w", err)
	}
	f, ok := m[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("no fetcher for scheme %q", u.Scheme)
	}
	return f.Fetch(ctx, rawURL)
}

// NewMultiFetcher wires the http and https schemes, plus s3 when an object
// storage endpoint is configured. Local files are opt-in via WithLocalFiles.
func NewMultiFetcher(storage config.ObjectStorageConfig) (MultiFetcher, error) {
	h := NewHTTPFetcher(30 * time.Second)
	m := MultiFetcher{
		"http":  h,
		"https": h,
	}
	if storage.Endpoint != "" {
		mf, err := NewMinioFetcher(storage)
		if err != nil {
			return nil, err
		}
		m["s3"] = mf
	}
	return m, nil
}

// WithLocalFiles adds the file scheme. Only for callers that trust every
// descriptor, such as a local CLI ingest.
func (m MultiFetcher) WithLocalFiles() MultiFetcher {
	m["file"] = FileFetcher{}
	return m
}

// IsRemoteURL reports whether rawURL uses a scheme that is safe to accept
// from a remote client: http, https or s3.
func IsRemoteURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "s3":
		return true
	}
	return false
}

// HTTPFetcher downloads over HTTP(S).
type HTTPFetcher struct {
	client  *http.Client
	maxSize int64
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		maxSize: walker.DefaultMaxFileSize,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return readLimited(resp.Body, f.maxSize)
}

// MinioFetcher reads s3://bucket/key URLs from an S3-compatible store.
type MinioFetcher struct {
	client  *minio.Client
	maxSize int64
}

// NewMinioFetcher creates an s3 fetcher from object storage settings.
func NewMinioFetcher(cfg config.ObjectStorageConfig) (*MinioFetcher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	opts := &minio.Options{Secure: cfg.UseSSL, Region: region}
	if cfg.AccessKey != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}
	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &MinioFetcher{client: client, maxSize: walker.DefaultMaxFileSize}, nil
}

func (f *MinioFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer obj.Close()

	data, err := readLimited(obj, f.maxSize)
	if err != nil {
		code := minio.ToErrorResponse(errors.Unwrap(err)).Code
		if code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func parseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 url: %w", err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url %q must be s3://bucket/key", rawURL)
	}
	return bucket, key, nil
}

// FileFetcher reads file:// URLs from the local filesystem.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse file url: %w", err)
	}
	data, err := os.ReadFile(filepath.FromSlash(u.Path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u.Path, err)
	}
	return data, nil
}

// FileURL builds the file:// URL for a local path.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("object exceeds %d bytes", max)
	}
	return data, nil
}
