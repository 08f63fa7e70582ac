package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune // default ','
	SkipRows  int  // leading rows (headers) to drop
	TrimSpace bool
}

// ReadCSV reads every row of a CSV document. Rows may have differing field
// counts; callers must bounds-check column indices.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: read row %d", i)
		}
		if i < opts.SkipRows {
			continue
		}

		if opts.TrimSpace {
			for j, field := range record {
				record[j] = strings.TrimSpace(field)
			}
		}
		rows = append(rows, record)
	}
}
