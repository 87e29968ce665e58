// Package fetch opens result locations handed back by completed remote jobs as byte streams.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/dv360-adoption/internal/errs"
	"github.com/dvloznov/dv360-adoption/internal/logger"
)

// MediaDownloader downloads an export bundle by its media resource name.
type MediaDownloader interface {
	Download(ctx context.Context, resourceName string) (io.ReadCloser, error)
}

// Fetcher opens report CSVs and SDF archives.
type Fetcher struct {
	httpClient    *http.Client
	storageClient *storage.Client
	media         MediaDownloader
	tempDir       string
}

// NewFetcher creates a Fetcher. storageClient may be nil when gs:// locations are not expected;
// media may be nil when archived results are not expected.
func NewFetcher(httpClient *http.Client, storageClient *storage.Client, media MediaDownloader) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{
		httpClient:    httpClient,
		storageClient: storageClient,
		media:         media,
	}
}

// WithTempDir sets where archives are spooled before extraction.
func (f *Fetcher) WithTempDir(dir string) *Fetcher {
	f.tempDir = dir
	return f
}

// Open returns the result at location as a stream. When archived is true, location is a
// media resource name and the stream is the first file inside the downloaded zip.
// The caller must close the returned reader.
func (f *Fetcher) Open(ctx context.Context, location string, archived bool) (io.ReadCloser, error) {
	if location == "" {
		return nil, fmt.Errorf("fetch: empty result location: %w", errs.ErrInvalidParameter)
	}
	if archived {
		return f.openArchive(ctx, location)
	}

	switch {
	case strings.HasPrefix(location, "gs://"):
		return f.openGCS(ctx, location)
	case strings.HasPrefix(location, "https://"), strings.HasPrefix(location, "http://"):
		return f.openURL(ctx, location)
	default:
		return nil, fmt.Errorf("fetch: unsupported result location %q: %w", location, errs.ErrInvalidParameter)
	}
}

func (f *Fetcher) openURL(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: building request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: GET report: %v: %w", err, errs.ErrTransport)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch: GET report: unexpected status %s: %w", resp.Status, errs.ErrTransport)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Int64("content_length", resp.ContentLength).
		Msg("Opened report stream")

	return &transportReader{ReadCloser: resp.Body}, nil
}

func (f *Fetcher) openGCS(ctx context.Context, gcsURI string) (io.ReadCloser, error) {
	bucket, object, err := SplitGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}
	if f.storageClient == nil {
		return nil, fmt.Errorf("fetch: no storage client configured for %s: %w", gcsURI, errs.ErrInvalidParameter)
	}

	rc, err := f.storageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading object %s/%s: %v: %w", bucket, object, err, errs.ErrTransport)
	}
	return &transportReader{ReadCloser: rc}, nil
}

// SplitGCSURI splits gs://bucket/path/to/object into bucket and object path.
func SplitGCSURI(gcsURI string) (string, string, error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s: %w", gcsURI, errs.ErrInvalidParameter)
	}

	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s: %w", gcsURI, errs.ErrInvalidParameter)
	}
	return parts[0], parts[1], nil
}

// transportReader tags mid-stream read failures as transport errors.
type transportReader struct {
	io.ReadCloser
}

func (r *transportReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("fetch: reading stream: %v: %w", err, errs.ErrTransport)
	}
	return n, err
}
