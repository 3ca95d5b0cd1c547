package loader

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestOpen_LocalFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(p, []byte("a\n1\n"), 0o644))

	rc, err := Open(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", readAll(t, rc))

	rc, err = Open(context.Background(), "file://"+p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", readAll(t, rc))
}

func TestOpen_Gzip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, zw.Close())

	p := filepath.Join(t.TempDir(), "data.csv.gz")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))

	rc, err := Open(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", readAll(t, rc))
}

func TestOpen_GzipCorrupt(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "bad.gz")
	require.NoError(t, os.WriteFile(p, []byte("not gzip"), 0o644))

	_, err := Open(context.Background(), p, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gzip")
}

func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_Stdin(t *testing.T) {
	t.Parallel()

	rc, err := Open(context.Background(), "-", Options{Stdin: strings.NewReader("x\n")})
	require.NoError(t, err)
	assert.Equal(t, "x\n", readAll(t, rc))
}

func TestOpen_HTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv" {
			http.Error(w, "no such object", http.StatusNotFound)
			return
		}
		assert.Equal(t, "xtract/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("a\n1\n"))
	}))
	defer srv.Close()

	rc, err := Open(context.Background(), srv.URL+"/data.csv", Options{HTTPClient: srv.Client()})
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", readAll(t, rc))

	_, err = Open(context.Background(), srv.URL+"/missing.csv", Options{HTTPClient: srv.Client()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http status 404")
	assert.Contains(t, err.Error(), "no such object")
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://raw/in/2024/orders.csv")
	require.NoError(t, err)
	assert.Equal(t, "raw", bucket)
	assert.Equal(t, "in/2024/orders.csv", key)

	for _, bad := range []string{"s3://raw", "s3://raw/", "s3:///key", "http://raw/key"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

func TestCompressionAndFormat(t *testing.T) {
	tests := []struct {
		in          string
		compression string
		format      string
	}{
		{"orders.csv", "", "csv"},
		{"ORDERS.CSV.GZ", "gzip", "csv"},
		{"s3://b/k/orders.tsv.bz2", "bzip2", "csv"},
		{"https://example.com/page.html?x=1", "", "html"},
		{"page.htm.gz", "gzip", "html"},
		{"blob.bin", "", ""},
		{"-", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.compression, Compression(tt.in), tt.in)
		assert.Equal(t, tt.format, Format(tt.in), tt.in)
	}
}
