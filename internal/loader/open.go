// Package loader turns input locations into tables.
//
// Open resolves a location (local path, file://, http(s)://, s3://bucket/key
// or "-" for stdin) to a byte stream, transparently decompressing .gz and
// .bz2 inputs. The csvload and htmltable subpackages decode that stream and
// share the type inference in this package.
package loader

import (
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures s3:// locations. Empty credentials fall back to the
// AWS default chain. Endpoint and PathStyle target S3-compatible stores
// such as MinIO.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Options controls Open.
type Options struct {
	S3 S3Config

	// HTTPClient is used for http(s) locations. Nil means http.DefaultClient.
	HTTPClient *http.Client
	// Timeout bounds an http(s) fetch. Zero means no extra timeout.
	Timeout time.Duration

	// Stdin is read for the "-" location.
	Stdin io.Reader
}

// Open returns a reader for location. The caller must close it.
func Open(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	rc, err := openRaw(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	return decompress(Compression(location), rc)
}

func openRaw(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	switch {
	case location == "-":
		if opts.Stdin == nil {
			return io.NopCloser(strings.NewReader("")), nil
		}
		return io.NopCloser(opts.Stdin), nil
	case strings.HasPrefix(location, "s3://"):
		bucket, key, err := ParseS3URI(location)
		if err != nil {
			return nil, err
		}
		return openS3(ctx, opts.S3, bucket, key)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return openHTTP(ctx, location, opts)
	case strings.HasPrefix(location, "file://"):
		location = strings.TrimPrefix(location, "file://")
	}
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", location, err)
	}
	return f, nil
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", uri, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 uri: %s", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 uri without key: %s", uri)
	}
	return u.Host, key, nil
}

func newS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if c.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.PathStyle
	}), nil
}

func openS3(ctx context.Context, c S3Config, bucket, key string) (io.ReadCloser, error) {
	client, err := newS3Client(ctx, c)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

// openHTTP fetches location. On non-2xx responses the error includes the
// status code and up to 4KB of the body.
func openHTTP(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	cancel := context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "xtract/1.0")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("http get: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// Compression detects the compression of location from its extension:
// "gzip", "bzip2" or "".
func Compression(location string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		location = u.Path
	}
	switch strings.ToLower(path.Ext(location)) {
	case ".gz", ".gzip":
		return "gzip"
	case ".bz2", ".bzip2":
		return "bzip2"
	}
	return ""
}

// Format detects the input format from the extension of location, ignoring
// any compression suffix: "csv", "html" or "" when unknown.
func Format(location string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		location = u.Path
	}
	location = strings.ToLower(location)
	if Compression(location) != "" {
		location = strings.TrimSuffix(location, path.Ext(location))
	}
	switch path.Ext(location) {
	case ".csv", ".tsv", ".txt":
		return "csv"
	case ".html", ".htm":
		return "html"
	}
	return ""
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func decompress(kind string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch kind {
	case "":
		return rc, nil
	case "gzip":
		gr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &multiCloser{Reader: gr, closers: []io.Closer{gr, rc}}, nil
	case "bzip2":
		return &multiCloser{Reader: bzip2.NewReader(rc), closers: []io.Closer{rc}}, nil
	}
	rc.Close()
	return nil, fmt.Errorf("compression type not supported: %s", kind)
}
