// Package fetcher downloads remote roster exports and decodes CSV, XLSX and JSON payloads.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// DownloadIfChanged fetches the URL unless the server reports etag still
	// current. An empty etag always downloads. Returns (body, newETag,
	// changed, error); when nothing changed body is nil.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}
