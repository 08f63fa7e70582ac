package fetcher

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
)

// MaxJSONBody caps how much of a response DecodeJSON will read. API answers
// are a few kilobytes; anything near this is not the document we asked for.
const MaxJSONBody = 1 << 20

// DecodeJSON decodes the first JSON value in r into a T, reading at most
// limit bytes (MaxJSONBody when limit <= 0).
func DecodeJSON[T any](r io.Reader, limit int64) (*T, error) {
	if limit <= 0 {
		limit = MaxJSONBody
	}
	var v T
	if err := json.NewDecoder(io.LimitReader(r, limit)).Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.New("json: empty body")
		}
		return nil, eris.Wrap(err, "json: decode")
	}
	return &v, nil
}
