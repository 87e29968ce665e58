package pipeline

import (
	"context"
	"io"

	"github.com/dvloznov/dv360-adoption/internal/fetch"
)

// StreamOpener opens the payload at a completed job's result location.
// When archived is true the location names a zip bundle and the returned stream is
// its first file.
type StreamOpener interface {
	Open(ctx context.Context, location string, archived bool) (io.ReadCloser, error)
}

var _ StreamOpener = (*fetch.Fetcher)(nil)
