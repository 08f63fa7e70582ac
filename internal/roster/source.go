// Package roster fetches the shared roster sheet and decodes it into records.
package roster

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rostermap/internal/fetcher"
	"github.com/sells-group/rostermap/internal/model"
)

// Format is the export format requested from the sheet.
type Format string

const (
	FormatGViz Format = "gviz"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const sheetsBaseURL = "https://docs.google.com/spreadsheets/d/"

// Source produces the current roster snapshot.
type Source interface {
	// Fetch returns the roster rows in sheet order. Transport and decoding
	// failures are *UnavailableError; malformed rows are logged and skipped.
	Fetch(ctx context.Context) ([]model.Record, error)
}

// Options configures a SheetSource.
type Options struct {
	// URL overrides the export URL built from SheetID.
	URL     string
	SheetID string
	// Sheet selects a tab: a gid for csv/xlsx exports, a name for gviz.
	Sheet   string
	Format  Format
	Columns Columns
	// HeaderRows are dropped from csv and xlsx exports. The gviz endpoint
	// strips headers itself. Default 1.
	HeaderRows int
}

// SheetSource reads the roster from a Google Sheets export.
type SheetSource struct {
	fetcher fetcher.Fetcher
	opts    Options
	url     string

	mu   sync.Mutex
	etag string
	last []model.Record
}

var _ Source = (*SheetSource)(nil)

// NewSheetSource validates opts and builds the export URL.
func NewSheetSource(f fetcher.Fetcher, opts Options) (*SheetSource, error) {
	if opts.Format == "" {
		opts.Format = FormatGViz
	}
	switch opts.Format {
	case FormatGViz, FormatCSV, FormatXLSX:
	default:
		return nil, eris.Errorf("roster: unknown format %q", opts.Format)
	}
	if opts.Columns == (Columns{}) {
		opts.Columns = DefaultColumns()
	}
	if opts.Columns.ID < 0 {
		return nil, eris.New("roster: id column is required")
	}
	if opts.HeaderRows <= 0 {
		opts.HeaderRows = 1
	}

	u := opts.URL
	if u == "" {
		if opts.SheetID == "" {
			return nil, eris.New("roster: either url or sheet_id is required")
		}
		u = ExportURL(opts.SheetID, opts.Sheet, opts.Format)
	}

	return &SheetSource{fetcher: f, opts: opts, url: u}, nil
}

// ExportURL returns the Google Sheets export URL for a sheet and format.
func ExportURL(sheetID, sheet string, format Format) string {
	base := sheetsBaseURL + url.PathEscape(sheetID)
	q := url.Values{}
	switch format {
	case FormatCSV, FormatXLSX:
		q.Set("format", string(format))
		if sheet != "" {
			q.Set("gid", sheet)
		}
		return base + "/export?" + q.Encode()
	default:
		q.Set("tqx", "out:json")
		if sheet != "" {
			q.Set("sheet", sheet)
		}
		return base + "/gviz/tq?" + q.Encode()
	}
}

// URL returns the export URL the source reads.
func (s *SheetSource) URL() string { return s.url }

// Fetch implements Source. When the server reports the export unchanged via
// ETag, the previous snapshot is returned without decoding.
func (s *SheetSource) Fetch(ctx context.Context) ([]model.Record, error) {
	s.mu.Lock()
	etag := s.etag
	s.mu.Unlock()

	body, newTag, changed, err := s.fetcher.DownloadIfChanged(ctx, s.url, etag)
	if err != nil {
		return nil, &UnavailableError{URL: s.url, Err: err}
	}
	if !changed {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.last != nil {
			zap.L().Debug("roster: export not modified", zap.String("etag", etag))
			return append([]model.Record(nil), s.last...), nil
		}
		// A 304 without a remembered snapshot; force a full download.
		s.etag = ""
		return nil, &UnavailableError{URL: s.url, Err: eris.New("not modified but no previous snapshot")}
	}
	defer body.Close() //nolint:errcheck

	rows, err := s.decode(ctx, body)
	if err != nil {
		return nil, &UnavailableError{URL: s.url, Err: err}
	}

	records := s.toRecords(rows)

	s.mu.Lock()
	s.etag = newTag
	s.last = records
	s.mu.Unlock()

	zap.L().Info("roster: fetched",
		zap.String("format", string(s.opts.Format)),
		zap.Int("rows", len(rows)),
		zap.Int("records", len(records)),
	)
	return append([]model.Record(nil), records...), nil
}

func (s *SheetSource) decode(ctx context.Context, body io.Reader) ([][]string, error) {
	switch s.opts.Format {
	case FormatCSV:
		return fetcher.ReadCSV(ctx, body, fetcher.CSVOptions{SkipRows: s.opts.HeaderRows, TrimSpace: true})
	case FormatXLSX:
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, eris.Wrap(err, "roster: read xlsx body")
		}
		return fetcher.ReadXLSXBytes(data, fetcher.XLSXOptions{SkipRows: s.opts.HeaderRows})
	default:
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(body); err != nil {
			return nil, eris.Wrap(err, "roster: read gviz body")
		}
		return decodeGViz(buf.Bytes())
	}
}

// toRecords maps rows to records, skipping rows without an id and rows that
// repeat an id already seen in this snapshot. Row numbers are 1-based
// positions among data rows.
func (s *SheetSource) toRecords(rows [][]string) []model.Record {
	cols := s.opts.Columns
	seen := make(map[string]int, len(rows))
	records := make([]model.Record, 0, len(rows))

	for i, row := range rows {
		n := i + 1
		if blankRow(row) {
			continue
		}

		id := normalizeID(cell(row, cols.ID))
		if id == "" {
			logMalformed(&MalformedRecordError{Row: n, Reason: "missing id"})
			continue
		}
		if first, dup := seen[id]; dup {
			logMalformed(&MalformedRecordError{Row: n, ID: id, Reason: "duplicate id, first seen on row " + strconv.Itoa(first)})
			continue
		}
		seen[id] = n

		rec := model.Record{
			Row:     n,
			ID:      id,
			Name:    cell(row, cols.Name),
			Address: cell(row, cols.Address),
			Status:  cell(row, cols.Status),
		}
		if raw := cell(row, cols.Coordinates); raw != "" {
			if c, ok := parseCoordinates(raw); ok {
				rec.Coordinates = c
			} else {
				zap.L().Warn("roster: ignoring unparsable coordinates",
					zap.Int("row", n), zap.String("id", id), zap.String("value", raw))
			}
		}
		records = append(records, rec)
	}
	return records
}

func logMalformed(err *MalformedRecordError) {
	zap.L().Warn("roster: skipping malformed row",
		zap.Int("row", err.Row),
		zap.String("id", err.ID),
		zap.String("reason", err.Reason),
	)
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
