package roster

import (
	"strconv"
	"strings"

	"github.com/sells-group/rostermap/internal/model"
)

// Columns maps record fields to zero-based column indices. A negative index
// means the sheet has no such column.
type Columns struct {
	ID          int `mapstructure:"id" yaml:"id"`
	Name        int `mapstructure:"name" yaml:"name"`
	Address     int `mapstructure:"address" yaml:"address"`
	Status      int `mapstructure:"status" yaml:"status"`
	Coordinates int `mapstructure:"coordinates" yaml:"coordinates"`
}

// DefaultColumns is the layout of the shared roster sheet.
func DefaultColumns() Columns {
	return Columns{ID: 0, Name: 1, Address: 2, Status: 3, Coordinates: 4}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// normalizeID renders numeric serials the way people type them: "7" rather
// than "7.0".
func normalizeID(id string) string {
	if strings.HasSuffix(id, ".0") {
		if _, err := strconv.ParseFloat(id, 64); err == nil {
			return strings.TrimSuffix(id, ".0")
		}
	}
	return id
}

// parseCoordinates accepts "lat, lon" (comma or whitespace separated). It
// returns false for anything unparsable or outside WGS84 bounds.
func parseCoordinates(s string) (*model.Coordinates, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if len(parts) != 2 {
		return nil, false
	}
	lat, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 || (lat == 0 && lon == 0) {
		return nil, false
	}
	return &model.Coordinates{Lat: lat, Lon: lon}, true
}
