package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/dv360-adoption/internal/errs"
	"github.com/dvloznov/dv360-adoption/internal/logger"
	"github.com/klauspost/compress/zip"
)

func (f *Fetcher) openArchive(ctx context.Context, resourceName string) (io.ReadCloser, error) {
	if f.media == nil {
		return nil, fmt.Errorf("fetch: no media downloader configured for %s: %w", resourceName, errs.ErrInvalidParameter)
	}

	body, err := f.media.Download(ctx, resourceName)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	rc, name, err := ExtractFirstEntry(&transportReader{ReadCloser: body}, f.tempDir)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("resource_name", resourceName).
		Str("entry", name).
		Msg("Extracted archive entry")

	return rc, nil
}

// ExtractFirstEntry spools the zip archive read from r into a temp file in dir and returns
// the first file entry as a stream together with its name. Closing the stream removes the
// temp file. Further entries are ignored.
func ExtractFirstEntry(r io.Reader, dir string) (io.ReadCloser, string, error) {
	tmp, err := os.CreateTemp(dir, "sdf-*.zip")
	if err != nil {
		return nil, "", fmt.Errorf("fetch: creating spool file: %w", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	size, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		if errors.Is(err, errs.ErrTransport) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("fetch: spooling archive: %w", err)
	}

	zr, err := zip.NewReader(tmp, size)
	if err != nil {
		cleanup()
		return nil, "", fmt.Errorf("fetch: opening archive: %v: %w", err, errs.ErrStructuralStream)
	}

	var entry *zip.File
	for _, zf := range zr.File {
		if !zf.FileInfo().IsDir() {
			entry = zf
			break
		}
	}
	if entry == nil {
		cleanup()
		return nil, "", fmt.Errorf("fetch: archive has no file entries: %w", errs.ErrStructuralStream)
	}

	rc, err := entry.Open()
	if err != nil {
		cleanup()
		return nil, "", fmt.Errorf("fetch: opening entry %s: %v: %w", entry.Name, err, errs.ErrStructuralStream)
	}

	return &archiveEntry{entry: rc, spool: tmp}, entry.Name, nil
}

// archiveEntry streams one decompressed entry and owns the spool file.
type archiveEntry struct {
	entry io.ReadCloser
	spool *os.File
}

func (a *archiveEntry) Read(p []byte) (int, error) {
	n, err := a.entry.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("fetch: decompressing entry: %v: %w", err, errs.ErrStructuralStream)
	}
	return n, err
}

func (a *archiveEntry) Close() error {
	err := a.entry.Close()
	if cerr := a.spool.Close(); err == nil {
		err = cerr
	}
	if rerr := os.Remove(a.spool.Name()); err == nil {
		err = rerr
	}
	return err
}
